package record

import (
	"github.com/jalmeida85/tls13srv"
	linkedbuf "github.com/widaT/linkedbuf"
)

// ErrPartial signals that Inbox has less than one complete record buffered;
// the caller should feed more transport bytes and try again.
var ErrPartial = tls13srv.NewError(tls13srv.KindNone, "partial record")

// Inbox accumulates raw bytes arriving from the transport and peels off
// complete records. It is distinct from Chain: Chain models ownership of
// one record's payload for AEAD purposes, Inbox models the unbounded,
// single logical stream of bytes a transport hands us in arbitrary-sized
// reads — exactly what github.com/widaT/linkedbuf is for (see
// _examples/widaT-tls13/conn.go's Conn.input), so it is used here rather
// than reimplemented.
type Inbox struct {
	raw *linkedbuf.LinkedBuffer
}

func NewInbox() *Inbox {
	return &Inbox{raw: linkedbuf.New()}
}

// Feed appends transport bytes, e.g. the result of one net.Conn.Read.
func (ib *Inbox) Feed(b []byte) {
	if len(b) == 0 {
		return
	}
	ib.raw.Write(b)
}

// NextRecord returns the next complete record's header and payload,
// consuming it from the inbox. It returns ErrPartial when fewer than a
// full record is currently buffered, and a KindDecode error when the
// declared length exceeds the protected-record ceiling (spec §4.1, §6).
func (ib *Inbox) NextRecord() (Header, []byte, error) {
	peek, n := ib.raw.Bytes()
	if n < HeaderLen {
		return Header{}, nil, ErrPartial
	}
	hdr, ok := ParseHeader(peek[:HeaderLen])
	if !ok {
		return Header{}, nil, ErrPartial
	}
	if int(hdr.Length) > MaxCiphertext {
		return Header{}, nil, tls13srv.NewError(tls13srv.KindDecode, "record length exceeds maximum")
	}
	total := HeaderLen + int(hdr.Length)
	if n < total {
		return Header{}, nil, ErrPartial
	}
	full, got := ib.raw.ReadN(total)
	if got < total {
		return Header{}, nil, ErrPartial
	}
	payload := append([]byte(nil), full[HeaderLen:total]...)
	ib.raw.Shift(total)
	return hdr, payload, nil
}

// Buffered reports how many raw bytes are currently held.
func (ib *Inbox) Buffered() int {
	return ib.raw.Buffered()
}
