package server

import (
	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
)

// handleAppWrite fragments outgoing application data into at-most
// MaxPlaintext-1-byte records (one byte reserved for the content-type
// suffix TLSInnerPlaintext appends) and protects each one under the
// server's application write key, spec §4.4's EventAppWrite.
func handleAppWrite(st *State, ev Event) ([]tls13srv.Action, error) {
	if st.Name != AcceptingData {
		return fail(st, tls13srv.KindUnexpectedMessage, "application write attempted outside AcceptingData")
	}
	data := ev.AppWriteData
	var actions []tls13srv.Action
	for len(data) > 0 {
		n := len(data)
		if n > record.MaxPlaintext-1 {
			n = record.MaxPlaintext - 1
		}
		chunk := data[:n]
		data = data[n:]
		wire, err := st.WriteRecordLayer.Protect(record.ContentTypeApplicationData, chunk, 0)
		if err != nil {
			return nil, err
		}
		actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: len(data) == 0})
	}
	return actions, nil
}

// marshalAlert encodes the two-byte Alert wire format of RFC 8446 §6.
func marshalAlert(level tls13srv.AlertLevel, desc tls13srv.AlertDescription) []byte {
	return []byte{byte(level), byte(desc)}
}

// handleAppClose sends close_notify (spec §4.4's "Connection closure" path,
// RFC 8446 §6.1) and waits for the peer's own close_notify before the
// connection is fully Closed.
func handleAppClose(st *State) ([]tls13srv.Action, error) {
	if st.Name != AcceptingData {
		return fail(st, tls13srv.KindUnexpectedMessage, "close requested outside AcceptingData")
	}
	wire, err := st.WriteRecordLayer.Protect(record.ContentTypeAlert, marshalAlert(tls13srv.AlertLevelWarning, tls13srv.AlertDescCloseNotify), 0)
	if err != nil {
		return nil, err
	}
	st.Name = ExpectingCloseNotify
	return []tls13srv.Action{tls13srv.WriteToSocket{Bytes: wire, Flush: true}}, nil
}

// handleCloseNotify finishes the closure handshake once the peer's own
// close_notify arrives, whether this side initiated the close or not.
func handleCloseNotify(st *State) ([]tls13srv.Action, error) {
	switch st.Name {
	case AcceptingData, AcceptingEarlyData, ExpectingCloseNotify:
	default:
		return fail(st, tls13srv.KindUnexpectedMessage, "close_notify received outside a data-accepting state")
	}
	st.Name = Closed
	return []tls13srv.Action{tls13srv.EndOfData{Reason: tls13srv.EndReasonCloseNotify}}, nil
}

// handleEarlyDataTimer fails the connection if the 0-RTT window's deadline
// (EarlyDataDeadline, set when early data was accepted) fires before the
// client ever sent EndOfEarlyData.
func handleEarlyDataTimer(st *State) ([]tls13srv.Action, error) {
	if st.Name != AcceptingEarlyData {
		return nil, nil
	}
	return fail(st, tls13srv.KindHandshakeFailure, "early data window expired without EndOfEarlyData")
}

// handleKeyUpdateEvent ratchets the read-side application traffic secret on
// a received KeyUpdate (RFC 8446 §4.6.3), and if the peer requested one in
// return, ratchets and announces the write side too.
func handleKeyUpdateEvent(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name != AcceptingData {
		return fail(st, tls13srv.KindUnexpectedMessage, "KeyUpdate received outside AcceptingData")
	}
	ku := ev.KeyUpdate
	if ku == nil {
		return fail(st, tls13srv.KindDecode, "nil KeyUpdate")
	}

	sp, err := lookupSuite(st.Cipher)
	if err != nil {
		return fail(st, tls13srv.KindInternalError, "cipher suite lookup failed while ratcheting traffic secret")
	}

	nextClient := st.KeyScheduler.NextGenerationTrafficSecret(st.ClientApplicationSecret)
	if err := installReadSecret(st.ReadRecordLayer, sp, st.KeyScheduler, nextClient); err != nil {
		return nil, err
	}
	st.ClientApplicationSecret = nextClient

	actions := []tls13srv.Action{
		tls13srv.SecretAvailable{Kind: tls13srv.SecretClientApplicationTraffic, Secret: nextClient},
	}

	if ku.RequestUpdate == codec.KeyUpdateRequested {
		ownActions, err := sendOwnKeyUpdate(st, sp)
		if err != nil {
			return nil, err
		}
		actions = append(actions, ownActions...)
	}

	return actions, nil
}

// sendOwnKeyUpdate emits a server-initiated KeyUpdate with
// update_not_requested (this core never asks its peer to ratchet back in
// response, avoiding an update ping-pong) and ratchets the write secret to
// match, per RFC 8446 §4.6.3.
func sendOwnKeyUpdate(st *State, sp suiteParams) ([]tls13srv.Action, error) {
	ku := &codec.KeyUpdate{RequestUpdate: codec.KeyUpdateNotRequested}
	framed := codec.FrameMessage(codec.HandshakeTypeKeyUpdate, ku.Marshal())
	wire, err := st.WriteRecordLayer.Protect(record.ContentTypeHandshake, framed, 0)
	if err != nil {
		return nil, err
	}

	serverApp := st.KeyScheduler.NextGenerationTrafficSecret(st.ServerApplicationSecret)
	if err := installWriteSecret(st.WriteRecordLayer, sp, st.KeyScheduler, serverApp); err != nil {
		return nil, err
	}
	st.ServerApplicationSecret = serverApp

	return []tls13srv.Action{
		tls13srv.WriteToSocket{Bytes: wire, Flush: true},
		tls13srv.SecretAvailable{Kind: tls13srv.SecretServerApplicationTraffic, Secret: serverApp},
	}, nil
}
