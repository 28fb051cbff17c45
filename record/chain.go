// Package record implements the TLS 1.3 record layer: frame-level parsing,
// AEAD encryption/decryption over scatter-gather buffer chains, and
// sequence-number/nonce bookkeeping (spec §4.1, §6 "Record format" and
// "Nonce construction").
//
// The chain type below is the "implementer must provide such a type"
// abstraction called for in the original design notes: a linked list of
// buffer segments, each independently shareable, with headroom/tailroom
// accounting so AEAD tags and record headers can be written in place when
// ownership allows. It is purpose-built rather than reused wholesale from
// github.com/widaT/linkedbuf because linkedbuf models a single logical
// byte stream (used here in reader.go as the transport-byte accumulation
// queue), not a chain of independently shared segments; the two are
// complementary, not redundant.
package record

// Segment is one link of a Chain: a window [off, off+length) into an
// owned backing array, plus whether some other Chain may be observing the
// same backing array (Shared). Tailroom is cap(backing)-off-length.
type Segment struct {
	backing []byte
	off     int
	length  int
	Shared  bool
	Next    *Segment
}

func newSegment(backing []byte, off, length int, shared bool) *Segment {
	return &Segment{backing: backing, off: off, length: length, Shared: shared}
}

// Bytes returns the segment's data window.
func (s *Segment) Bytes() []byte {
	return s.backing[s.off : s.off+s.length]
}

func (s *Segment) Len() int { return s.length }

// Tailroom is how many bytes can be appended to this segment without
// reallocating its backing array.
func (s *Segment) Tailroom() int {
	return cap(s.backing) - s.off - s.length
}

// Headroom is how many unused bytes precede the segment's data window.
func (s *Segment) Headroom() int {
	return s.off
}

// append grows the segment's data window into its own tailroom and writes
// p at the new tail. Caller must have checked Tailroom() >= len(p).
func (s *Segment) append(p []byte) {
	dst := s.backing[s.off+s.length : s.off+s.length+len(p)]
	copy(dst, p)
	s.length += len(p)
}

// Chain is a singly linked list of Segments representing one logical byte
// range, e.g. a TLS record's plaintext or the associated data fed to an
// AEAD. A Chain with a single Segment supports true in-place, zero-copy
// AEAD operation; a Chain spanning multiple Segments (the common case when
// a caller handed us several transport reads joined together) is flattened
// before being passed to primitives that require contiguous memory.
type Chain struct {
	head *Segment
	tail *Segment
}

// NewChain allocates a single fresh, unshared segment with the requested
// headroom, content length (zero-filled), and tailroom — the shape AEAD
// encryption wants when it cannot reuse the caller's buffer (spec §4.1,
// "a fresh output chain sized headroom + length + tag_len is allocated").
func NewChain(headroom, length, tailroom int) *Chain {
	backing := make([]byte, headroom+length+tailroom)
	seg := newSegment(backing, headroom, length, false)
	return &Chain{head: seg, tail: seg}
}

// WrapBytes builds a single-segment Chain around an existing slice. shared
// marks whether the caller retains another reference to the same backing
// array; it drives the zero-copy decision in Encrypt/Decrypt.
func WrapBytes(b []byte, shared bool) *Chain {
	seg := newSegment(b, 0, len(b), shared)
	return &Chain{head: seg, tail: seg}
}

// Segments returns the chain's links in order, for callers (like AAD
// assembly) that want to walk the chain without flattening it.
func (c *Chain) Segments() []*Segment {
	var out []*Segment
	for s := c.head; s != nil; s = s.Next {
		out = append(out, s)
	}
	return out
}

// Len is the total content length across all segments.
func (c *Chain) Len() int {
	n := 0
	for s := c.head; s != nil; s = s.Next {
		n += s.length
	}
	return n
}

// SingleSegment reports whether the chain has exactly one link, and
// returns it.
func (c *Chain) SingleSegment() (*Segment, bool) {
	if c.head != nil && c.head == c.tail {
		return c.head, true
	}
	return nil, false
}

// IsShared reports whether any segment in the chain may alias memory the
// caller still holds a reference to.
func (c *Chain) IsShared() bool {
	for s := c.head; s != nil; s = s.Next {
		if s.Shared {
			return true
		}
	}
	return false
}

// SharedCount returns the number of individually shared segments.
func (c *Chain) SharedCount() int {
	n := 0
	for s := c.head; s != nil; s = s.Next {
		if s.Shared {
			n++
		}
	}
	return n
}

// PrependChain links other in front of c (other's tail feeds into c's old
// head), returning the new chain. Mirrors IOBuf::prependChain.
func (c *Chain) PrependChain(other *Chain) *Chain {
	if other == nil || other.head == nil {
		return c
	}
	if c == nil || c.head == nil {
		return other
	}
	other.tail.Next = c.head
	return &Chain{head: other.head, tail: c.tail}
}

// AppendChain links other onto the back of c.
func (c *Chain) AppendChain(other *Chain) *Chain {
	if other == nil || other.head == nil {
		return c
	}
	if c == nil || c.head == nil {
		return other
	}
	c.tail.Next = other.head
	return &Chain{head: c.head, tail: other.tail}
}

// Flatten copies the chain's content into a single contiguous slice with
// the requested extra headroom/tailroom. Used whenever a primitive (e.g.
// a stdlib cipher.AEAD, which only accepts contiguous buffers) needs
// memory the chain's own segmentation cannot supply directly.
func (c *Chain) Flatten(headroom, tailroom int) *Chain {
	length := c.Len()
	out := NewChain(headroom, length, tailroom)
	dst := out.head.Bytes()
	pos := 0
	for s := c.head; s != nil; s = s.Next {
		copy(dst[pos:], s.Bytes())
		pos += s.length
	}
	return out
}

// Bytes flattens the chain (if necessary) and returns its content as one
// slice. Convenience for call sites that don't care about zero-copy.
func (c *Chain) Bytes() []byte {
	if seg, ok := c.SingleSegment(); ok {
		return seg.Bytes()
	}
	return c.Flatten(0, 0).head.Bytes()
}

// TrimTail removes the last n bytes from the chain, shrinking (and
// possibly unlinking) tail segments. Used to strip a detached AEAD tag
// before decryption.
func (c *Chain) TrimTail(n int) {
	remaining := n
	// Walk to find segments from the end; since Chain is singly linked,
	// collect then walk again.
	segs := c.Segments()
	for i := len(segs) - 1; i >= 0 && remaining > 0; i-- {
		s := segs[i]
		if s.length >= remaining {
			s.length -= remaining
			remaining = 0
		} else {
			remaining -= s.length
			s.length = 0
		}
	}
	// Relink, dropping now-empty tail segments except always keep at least one.
	var newHead, newTail *Segment
	for i, s := range segs {
		if s.length == 0 && i != 0 {
			continue
		}
		if newHead == nil {
			newHead = s
			newTail = s
		} else {
			newTail.Next = s
			newTail = s
		}
	}
	newTail.Next = nil
	c.head, c.tail = newHead, newTail
}
