package record

import (
	"github.com/jalmeida85/tls13srv"
)

// ReadRecordLayer turns transport-ordered records into a stream of
// (content type, plaintext) pairs. Before a key is installed it is a
// pass-through over cleartext records (the ClientHello epoch); after
// SetKey it expects every record to arrive with the TLS 1.3 compatibility
// outer type application_data, AEAD-opens it, and recovers the true inner
// content type from the trailing-zero-padding scan — mirroring
// _examples/widaT-tls13/conn.go's halfConn.decrypt, generalized from a flat
// []byte to a Chain so callers can hand in borrowed transport buffers
// without forcing a copy.
type ReadRecordLayer struct {
	aead AeadCipher
	iv   []byte
	seq  SeqCounter
}

func NewReadRecordLayer() *ReadRecordLayer {
	return &ReadRecordLayer{}
}

// SetKey installs (or replaces, on a KeyUpdate) the traffic key and
// resets the sequence counter, per spec §4.1 "every key change resets the
// record sequence number to zero".
func (r *ReadRecordLayer) SetKey(aead AeadCipher, iv []byte) {
	r.aead = aead
	r.iv = append([]byte(nil), iv...)
	r.seq.Reset()
}

// Protected reports whether a key has been installed.
func (r *ReadRecordLayer) Protected() bool {
	return r.aead != nil
}

// Unprotect consumes one already-framed record (as produced by
// Inbox.NextRecord) and returns its true content type and plaintext.
func (r *ReadRecordLayer) Unprotect(hdr Header, payload []byte) (ContentType, []byte, error) {
	if r.aead == nil {
		return hdr.Type, payload, nil
	}
	// RFC 8446 Appendix D.4: change_cipher_spec records are ignored,
	// unparsed, once encryption is active.
	if hdr.Type == ContentTypeChangeCipherSpec {
		return ContentTypeChangeCipherSpec, nil, nil
	}
	if hdr.Type != ContentTypeApplicationData {
		return 0, nil, tls13srv.NewError(tls13srv.KindUnexpectedMessage, "non application_data outer type under protection")
	}
	seq, err := r.seq.Next()
	if err != nil {
		return 0, nil, err
	}
	nonce := Nonce(r.iv, seq)
	aad := WrapBytes(hdr.Bytes(), false)
	ciphertext := WrapBytes(payload, true)
	opened, err := r.aead.Decrypt(ciphertext, aad, nonce)
	if err != nil {
		return 0, nil, err
	}
	raw := opened.Bytes()
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] != 0 {
			return ContentType(raw[i]), raw[:i], nil
		}
	}
	return 0, nil, tls13srv.NewError(tls13srv.KindUnexpectedMessage, "all-zero inner plaintext, no content type")
}

// WriteRecordLayer frames outgoing plaintext into wire records, AEAD
// sealing it (with optional zero padding) once a key is installed.
type WriteRecordLayer struct {
	aead AeadCipher
	iv   []byte
	seq  SeqCounter
}

func NewWriteRecordLayer() *WriteRecordLayer {
	return &WriteRecordLayer{}
}

func (w *WriteRecordLayer) SetKey(aead AeadCipher, iv []byte) {
	w.aead = aead
	w.iv = append([]byte(nil), iv...)
	w.seq.Reset()
}

func (w *WriteRecordLayer) Protected() bool {
	return w.aead != nil
}

// Protect frames one record carrying inner content type typ and
// plaintext, returning the wire bytes. paddingLen zero bytes are added
// after the inner content type before sealing (spec §4.1 padding policy;
// zero unless the caller is deliberately obscuring length). plaintext
// plus the content-type byte plus padding must not exceed MaxPlaintext;
// callers are responsible for fragmenting larger payloads across
// multiple records.
func (w *WriteRecordLayer) Protect(typ ContentType, plaintext []byte, paddingLen int) ([]byte, error) {
	if w.aead == nil {
		hdr := Header{Type: typ, LegacyVersion: LegacyRecordVersion, Length: uint16(len(plaintext))}
		return append(hdr.Bytes(), plaintext...), nil
	}
	innerLen := len(plaintext) + 1 + paddingLen
	if innerLen > MaxPlaintext {
		return nil, tls13srv.NewError(tls13srv.KindInternalError, "record payload exceeds maximum plaintext length")
	}
	totalLen := innerLen + w.aead.Overhead()
	hdr := Header{Type: ContentTypeApplicationData, LegacyVersion: LegacyRecordVersion, Length: uint16(totalLen)}

	inner := NewChain(0, innerLen, 0)
	dst := inner.head.Bytes()
	copy(dst, plaintext)
	dst[len(plaintext)] = byte(typ)
	// remaining bytes are already zero from NewChain's fresh allocation.

	seq, err := w.seq.Next()
	if err != nil {
		return nil, err
	}
	nonce := Nonce(w.iv, seq)
	aad := WrapBytes(hdr.Bytes(), false)
	sealed, err := w.aead.Encrypt(inner, aad, nonce, 0)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HeaderLen+totalLen)
	out = append(out, hdr.Bytes()...)
	out = append(out, sealed.Bytes()...)
	return out, nil
}
