package record

import (
	"encoding/binary"

	"github.com/jalmeida85/tls13srv"
)

// ContentType is the outer TLS record content type (spec §3.2, §6).
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

// LegacyRecordVersion is the frozen on-the-wire version field (spec §6).
const LegacyRecordVersion = 0x0303

// HeaderLen is the fixed 5-byte record header: type || legacy version || length.
const HeaderLen = 5

// MaxPlaintext is the largest plaintext payload of a single pre-encryption
// record (2^14, spec §4.1).
const MaxPlaintext = 1 << 14

// MaxCiphertext is the largest payload of a single protected record: the
// plaintext limit plus room for the inner content type and AEAD tag
// (spec §4.1: "2^14 + 256 (protected)").
const MaxCiphertext = MaxPlaintext + 256

// Header is the parsed 5-byte record header.
type Header struct {
	Type          ContentType
	LegacyVersion uint16
	Length        uint16
}

// Bytes serializes the header. It also doubles as the AEAD associated
// data for protected records (spec §6: "AAD = record header").
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderLen)
	b[0] = byte(h.Type)
	binary.BigEndian.PutUint16(b[1:3], h.LegacyVersion)
	binary.BigEndian.PutUint16(b[3:5], h.Length)
	return b
}

func ParseHeader(b []byte) (Header, bool) {
	if len(b) < HeaderLen {
		return Header{}, false
	}
	return Header{
		Type:          ContentType(b[0]),
		LegacyVersion: binary.BigEndian.Uint16(b[1:3]),
		Length:        binary.BigEndian.Uint16(b[3:5]),
	}, true
}

// Nonce XORs a 64-bit sequence number (big-endian, left-padded to the IV's
// length) into a static IV to build the per-record AEAD nonce (spec §6,
// "Nonce construction").
func Nonce(iv []byte, seq uint64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	off := len(nonce) - 8
	for i := 0; i < 8 && off+i >= 0; i++ {
		nonce[off+i] ^= seqBytes[i]
	}
	return nonce
}

// SeqCounter is a per-direction, per-epoch 64-bit sequence number. It
// resets to zero on every key change (spec §4.1, §8 invariant).
type SeqCounter struct {
	n       uint64
	started bool
}

// Next returns the next sequence number and advances the counter. An error
// is returned on overflow, signaling the caller to request (or, if one is
// already pending, fatally abort) a KeyUpdate — spec §4.1 "Sequence numbers".
func (s *SeqCounter) Next() (uint64, error) {
	if s.started && s.n == ^uint64(0) {
		return 0, tls13srv.NewError(tls13srv.KindInternalError, "sequence number exhausted")
	}
	cur := s.n
	s.n++
	s.started = true
	return cur, nil
}

// Reset zeroes the counter; called on every key change.
func (s *SeqCounter) Reset() {
	s.n = 0
	s.started = false
}
