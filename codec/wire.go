// Package codec implements the Handshake Message Codec (spec §4.5):
// encode/decode for every server-side TLS 1.3 handshake message plus the
// extension TLVs carried inside them.
//
// The wire primitives below follow the teacher's HandshakeMessage/
// ExtensionList conventions: length-prefixed vectors, a small Reader/
// Writer pair rather than reflection-based marshaling, and one
// Marshal/Unmarshal method per message type.
package codec

import (
	"encoding/binary"

	"github.com/jalmeida85/tls13srv"
)

// Reader consumes a TLS presentation-language encoded buffer
// sequentially, the way every wire codec in the corpus does it: no
// reflection, just explicit width reads with bounds checks.
type Reader struct {
	b   []byte
	pos int
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) Remaining() int {
	return len(r.b) - r.pos
}

func (r *Reader) errShort() error {
	return tls13srv.NewError(tls13srv.KindDecode, "truncated handshake message")
}

func (r *Reader) Uint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, r.errShort()
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Uint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, r.errShort()
	}
	v := binary.BigEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) Uint24() (uint32, error) {
	if r.Remaining() < 3 {
		return 0, r.errShort()
	}
	v := uint32(r.b[r.pos])<<16 | uint32(r.b[r.pos+1])<<8 | uint32(r.b[r.pos+2])
	r.pos += 3
	return v, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, r.errShort()
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) Uint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, r.errShort()
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, r.errShort()
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Vector8 reads a <0..255>-style vector: a 1-byte length prefix followed
// by that many bytes.
func (r *Reader) Vector8() ([]byte, error) {
	n, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// Vector16 reads a <0..65535>-style vector: a 2-byte length prefix.
func (r *Reader) Vector16() ([]byte, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// Vector24 reads a <0..2^24-1>-style vector: a 3-byte length prefix.
func (r *Reader) Vector24() ([]byte, error) {
	n, err := r.Uint24()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// AtEnd reports whether every byte has been consumed.
func (r *Reader) AtEnd() bool {
	return r.Remaining() == 0
}

// Writer builds a TLS presentation-language encoded buffer.
type Writer struct {
	b []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.b
}

func (w *Writer) Uint8(v uint8) {
	w.b = append(w.b, v)
}

func (w *Writer) Uint16(v uint16) {
	w.b = append(w.b, byte(v>>8), byte(v))
}

func (w *Writer) Uint24(v uint32) {
	w.b = append(w.b, byte(v>>16), byte(v>>8), byte(v))
}

func (w *Writer) Uint32(v uint32) {
	w.b = append(w.b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (w *Writer) Uint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *Writer) Raw(b []byte) {
	w.b = append(w.b, b...)
}

func (w *Writer) Vector8(b []byte) {
	w.Uint8(uint8(len(b)))
	w.Raw(b)
}

func (w *Writer) Vector16(b []byte) {
	w.Uint16(uint16(len(b)))
	w.Raw(b)
}

func (w *Writer) Vector24(b []byte) {
	w.Uint24(uint32(len(b)))
	w.Raw(b)
}

// LengthPrefixed16 runs build to append content, then retroactively
// writes its 2-byte length prefix in front — the pattern every variable
// length sub-structure (extensions list, certificate list, ...) needs
// since its encoded length isn't known until it's built.
func (w *Writer) LengthPrefixed16(build func(*Writer)) {
	inner := NewWriter()
	build(inner)
	w.Vector16(inner.Bytes())
}

// LengthPrefixed24 is LengthPrefixed16's 3-byte-length counterpart, used
// for the Certificate message's certificate_list.
func (w *Writer) LengthPrefixed24(build func(*Writer)) {
	inner := NewWriter()
	build(inner)
	w.Vector24(inner.Bytes())
}
