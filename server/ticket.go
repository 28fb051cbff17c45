package server

import (
	"encoding/binary"

	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
)

// issueNewSessionTicket builds one RFC 8446 §4.6.1 NewSessionTicket:
// a fresh resumption PSK derived from the connection's
// resumption_master_secret and a random ticket_nonce, opaque-wrapped by
// cfg.TicketCipher so this core never sees (or needs to know) the
// ticket's on-disk representation (spec §6 "Persisted state").
func issueNewSessionTicket(st *State, cfg *Config) ([]tls13srv.Action, error) {
	if cfg.TicketCipher == nil {
		return nil, nil
	}
	if len(st.ResumptionMasterSecret) == 0 {
		return nil, tls13srv.NewError(tls13srv.KindInternalError, "no resumption_master_secret available for ticket issuance")
	}

	nonce := make([]byte, 32)
	fillRandom(nonce)
	psk := st.KeyScheduler.ResumptionPSK(nonce)
	ageAdd := randomUint32()

	resumption := &ResumptionState{
		PSK:              psk,
		CipherSuite:      st.Cipher,
		ALPN:             st.ALPN,
		Version:          st.Version,
		TicketIssueTime:  cfg.now().Unix(),
		TicketAgeAdd:     ageAdd,
		MaxEarlyDataSize: cfg.MaxEarlyDataSize,
	}
	if cfg.AppTokenIssuer != nil {
		resumption.AppToken = cfg.AppTokenIssuer.IssueAppToken(st)
	}
	opaque, err := cfg.TicketCipher.Encrypt(resumption)
	if err != nil {
		return nil, err
	}

	nst := &codec.NewSessionTicket{
		TicketLifetime: uint32(cfg.TicketLifetime.Seconds()),
		TicketAgeAdd:   ageAdd,
		TicketNonce:    nonce,
		Ticket:         opaque,
	}
	if cfg.AllowEarlyData {
		nst.Extensions = codec.ExtensionList{
			{Type: codec.ExtEarlyData, Body: codec.BuildEarlyDataIndicationTicket(cfg.MaxEarlyDataSize)},
		}
	}

	// NewSessionTicket is sent post-handshake and is never hashed into the
	// transcript (RFC 8446 §4.4.1 bounds the transcript at Finished), so
	// this frames and protects the message directly rather than going
	// through appendAndProtect.
	framed := codec.FrameMessage(codec.HandshakeTypeNewSessionTicket, nst.Marshal())
	wire, err := st.WriteRecordLayer.Protect(record.ContentTypeHandshake, framed, 0)
	if err != nil {
		return nil, err
	}
	return []tls13srv.Action{tls13srv.WriteToSocket{Bytes: wire, Flush: true}}, nil
}

func randomUint32() uint32 {
	var b [4]byte
	fillRandom(b[:])
	return binary.BigEndian.Uint32(b[:])
}
