package record

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/jalmeida85/tls13srv"
	"golang.org/x/crypto/chacha20poly1305"
)

// MaxSharedSegments bounds how many individually shared segments Decrypt
// will copy in place before giving up and copying the whole chain (spec
// §4.1: "up to K (small fixed) individually-shared segments are copied in
// place, otherwise the entire chain is copied").
const MaxSharedSegments = 2

// AeadCipher is the boundary capability spec §6 calls out: the core never
// reaches for EVP_* (or Go's crypto/aes) directly, it goes through this
// interface so record-layer tests can substitute a mock and so alternate
// primitive providers can be wired in without touching the record layer.
type AeadCipher interface {
	// Encrypt seals plaintext in place when ownership allows, otherwise
	// into a freshly allocated chain. aad is itself chained (the record
	// header is always a single tiny segment in practice, but Encrypt
	// does not assume that). headroom sizes the fresh allocation path.
	Encrypt(plaintext, aad *Chain, nonce []byte, headroom int) (*Chain, error)
	// Decrypt verifies and opens ciphertext (tag included, at the chain's
	// tail) against aad and nonce. A verification failure returns a
	// *tls13srv.Error of KindBadRecordMac-shaped nil chain.
	Decrypt(ciphertext, aad *Chain, nonce []byte) (*Chain, error)
	Overhead() int
	KeySize() int
	NonceSize() int
}

type genericAEAD struct {
	aead cipher.AEAD
}

// NewAESGCM builds the AeadCipher for TLS_AES_128_GCM_SHA256 /
// TLS_AES_256_GCM_SHA384, grounded on crypto/tls's own aesgcm construction
// (mirrored in _examples/widaT-tls13/common.go's cipherSuite table) but
// reached through crypto/cipher.NewGCM rather than a suite table, since
// the suite selection itself lives in codec/cipher suites, not here.
func NewAESGCM(key []byte) (AeadCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("record: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("record: gcm: %w", err)
	}
	return &genericAEAD{aead: aead}, nil
}

// NewChaCha20Poly1305 builds the AeadCipher for TLS_CHACHA20_POLY1305_SHA256.
func NewChaCha20Poly1305(key []byte) (AeadCipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("record: chacha20poly1305: %w", err)
	}
	return &genericAEAD{aead: aead}, nil
}

func (g *genericAEAD) Overhead() int  { return g.aead.Overhead() }
func (g *genericAEAD) KeySize() int   { return 0 } // callers already hold the key; unused post-construction
func (g *genericAEAD) NonceSize() int { return g.aead.NonceSize() }

// flattenAAD concatenates a chained AAD into one slice. AAD is always the
// 5-byte record header in this library's usage, so this never allocates
// more than once per record regardless of how the caller chose to chain it.
func flattenAAD(aad *Chain) []byte {
	if aad == nil {
		return nil
	}
	if seg, ok := aad.SingleSegment(); ok {
		return seg.Bytes()
	}
	return aad.Flatten(0, 0).Bytes()
}

// Encrypt implements the buffer ownership policy of spec §4.1: a unique
// (non-shared) single-segment chain is sealed in place, reusing its
// tailroom for the tag if there's room and chaining a fresh tag segment
// otherwise; a shared or multi-segment chain is flattened into one fresh
// allocation sized headroom+length+tagLen first.
//
// The single-segment gate is narrower than the policy's stated
// sharing-only criterion: an unshared chain spanning more than one
// segment still takes the fresh-allocation path, because
// crypto/cipher.AEAD.Seal requires a contiguous plaintext slice, so
// flattening (one copy) is unavoidable regardless of ownership once a
// chain has more than one link. Decrypt's ownership check, by contrast,
// only copies shared segments (copySharedSegments) because the segments
// it walks are already individually contiguous going in.
func (g *genericAEAD) Encrypt(plaintext, aad *Chain, nonce []byte, headroom int) (*Chain, error) {
	if len(nonce) != g.aead.NonceSize() {
		return nil, fmt.Errorf("record: bad nonce length %d", len(nonce))
	}
	aadBytes := flattenAAD(aad)
	tagLen := g.aead.Overhead()

	seg, single := plaintext.SingleSegment()
	if single && !seg.Shared {
		if seg.Tailroom() >= tagLen {
			base := seg.Bytes()
			sealed := g.aead.Seal(base[:0:cap(base)], nonce, base, aadBytes)
			seg.length = len(sealed)
			return &Chain{head: seg, tail: seg}, nil
		}
		// No tailroom: encrypt into a fresh tag-only segment chained on.
		sealed := g.aead.Seal(nil, nonce, seg.Bytes(), aadBytes)
		ctLen := seg.length
		seg.length = ctLen // unchanged; ciphertext length equals plaintext length for AEAD
		tagSeg := newSegment(sealed[ctLen:], 0, tagLen, false)
		copy(seg.Bytes(), sealed[:ctLen])
		seg.Next = tagSeg
		return &Chain{head: seg, tail: tagSeg}, nil
	}

	// Shared or fragmented: allocate output sized for everything and
	// encrypt into it in one call (Go's AEAD primitives require
	// contiguous input; see package doc).
	length := plaintext.Len()
	out := NewChain(headroom, 0, length+tagLen)
	flat := plaintext.Flatten(0, 0).Bytes()
	sealed := g.aead.Seal(out.head.Bytes()[:0], nonce, flat, aadBytes)
	out.head.append(sealed)
	return out, nil
}

// Decrypt implements the read-side ownership policy: the ciphertext must
// be at least tagLen bytes, its trailing tag is handed to Open together
// with the ciphertext (not detached); a single
// unshared segment is opened in place; a single shared segment (or a
// chain with at most MaxSharedSegments shared segments) is copied
// in-place per segment before opening; beyond that the whole chain is
// copied once, matching fizz's fixupSharedBuffer in
// original_source/fizz/crypto/aead/OpenSSLEVPCipher.cpp.
func (g *genericAEAD) Decrypt(ciphertext, aad *Chain, nonce []byte) (*Chain, error) {
	if len(nonce) != g.aead.NonceSize() {
		return nil, fmt.Errorf("record: bad nonce length %d", len(nonce))
	}
	tagLen := g.aead.Overhead()
	if ciphertext.Len() < tagLen {
		return nil, fmt.Errorf("record: ciphertext shorter than tag")
	}
	aadBytes := flattenAAD(aad)

	work := ciphertext
	if work.IsShared() {
		if work.SharedCount() <= MaxSharedSegments {
			work = copySharedSegments(work)
		} else {
			work = work.Flatten(0, 0)
		}
	}

	flat := work.Bytes()
	opened, err := g.aead.Open(flat[:0], nonce, flat, aadBytes)
	if err != nil {
		return nil, tls13srv.NewError(tls13srv.KindBadRecordMac, "AEAD tag verification failed")
	}
	return WrapBytes(opened, false), nil
}

// copySharedSegments replaces each individually shared segment with an
// unshared copy, keeping unshared segments untouched, rather than
// flattening the entire chain.
func copySharedSegments(c *Chain) *Chain {
	var newHead, newTail *Segment
	for s := c.head; s != nil; s = s.Next {
		cur := s
		if s.Shared {
			dup := make([]byte, s.length)
			copy(dup, s.Bytes())
			cur = newSegment(dup, 0, s.length, false)
		}
		if newHead == nil {
			newHead, newTail = cur, cur
		} else {
			newTail.Next = cur
			newTail = cur
		}
	}
	return &Chain{head: newHead, tail: newTail}
}
