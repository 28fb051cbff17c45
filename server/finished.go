package server

import (
	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/internal/alertlog"
)

// handleEndOfEarlyData closes the 0-RTT window (spec §4.4): the client's
// EndOfEarlyData message is always sent under the early traffic key, and
// restoring the handshake read key it unblocks is exactly the swap
// sendServerFlight set up by stashing a pre-keyed ReadRecordLayer in
// HandshakeReadRecordLayer rather than installing it directly.
func handleEndOfEarlyData(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name != AcceptingEarlyData {
		return fail(st, tls13srv.KindUnexpectedMessage, "EndOfEarlyData received outside AcceptingEarlyData")
	}
	framed := codec.FrameMessage(codec.HandshakeTypeEndOfEarlyData, (&codec.EndOfEarlyData{}).Marshal())
	st.HandshakeContext.Append(framed)

	if st.HandshakeReadRecordLayer == nil {
		return fail(st, tls13srv.KindInternalError, "no retained handshake read key to restore")
	}
	st.ReadRecordLayer = st.HandshakeReadRecordLayer
	st.HandshakeReadRecordLayer = nil

	if cfg.RequireClientAuth {
		st.Name = ExpectingCertificate
	} else {
		st.Name = ExpectingFinished
	}
	return nil, nil
}

// handleFinished verifies the client's Finished MAC, switches the read
// side to the application traffic key already derived in
// sendServerFlight, and completes the handshake (spec §4.4 step 8's
// terminal transition into AcceptingData).
func handleFinished(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name != ExpectingFinished {
		return fail(st, tls13srv.KindUnexpectedMessage, "Finished received outside ExpectingFinished")
	}
	fin := ev.Finished
	if fin == nil {
		return fail(st, tls13srv.KindDecode, "nil Finished")
	}

	finishedKey := st.HandshakeContext.FinishedKey(st.KeyScheduler.ExpandLabel, st.ClientHandshakeSecret)
	if err := st.HandshakeContext.VerifyFinished(finishedKey, fin.VerifyData); err != nil {
		return fail(st, tls13srv.KindDecryptError, "client Finished verify_data mismatch")
	}

	framed := codec.FrameMessage(codec.HandshakeTypeFinished, fin.Marshal())
	st.HandshakeContext.Append(framed)

	sp, err := lookupSuite(st.Cipher)
	if err != nil {
		return fail(st, tls13srv.KindInternalError, "cipher suite lookup failed while installing application read key")
	}
	if err := installReadSecret(st.ReadRecordLayer, sp, st.KeyScheduler, st.ClientApplicationSecret); err != nil {
		return fail(st, tls13srv.KindInternalError, "application read key installation failed")
	}

	resumptionTranscriptHash := st.HandshakeContext.Sum()
	st.ResumptionMasterSecret = st.KeyScheduler.ResumptionMasterSecret(resumptionTranscriptHash)
	st.KeyScheduler.ClearMasterSecret()

	actions := []tls13srv.Action{
		tls13srv.SecretAvailable{Kind: tls13srv.SecretResumptionMaster, Secret: st.ResumptionMasterSecret},
		tls13srv.ReportHandshakeSuccess{},
	}

	st.Name = AcceptingData

	if cfg.SendSessionTickets {
		ticketActions, err := issueNewSessionTicket(st, cfg)
		if err != nil {
			alertlog.Logf(alertlog.Handshake, "ticket issuance skipped: %s", err)
		} else {
			actions = append(actions, ticketActions...)
		}
	}

	return actions, nil
}

// handleWriteNewSessionTicket is the application-driven counterpart to
// the automatic post-Finished ticket issuance above: callers that want to
// hand out additional tickets on the already-established connection (spec
// §4.4's EventWriteNewSessionTicket) reuse the same construction.
func handleWriteNewSessionTicket(st *State, cfg *Config) ([]tls13srv.Action, error) {
	if st.Name != AcceptingData {
		return fail(st, tls13srv.KindUnexpectedMessage, "NewSessionTicket requested outside AcceptingData")
	}
	return issueNewSessionTicket(st, cfg)
}

// handleAppData delivers application data received under the
// established application traffic key, or the early traffic key during
// the 0-RTT window (spec §4.4's early-data byte budget enforcement).
func handleAppData(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	switch st.Name {
	case AcceptingEarlyData:
		st.EarlyDataBytesSeen += len(ev.AppData)
		if st.TicketMaxEarlyDataSize > 0 && uint32(st.EarlyDataBytesSeen) > st.TicketMaxEarlyDataSize {
			return fail(st, tls13srv.KindHandshakeFailure, "early data exceeded max_early_data_size")
		}
		return []tls13srv.Action{tls13srv.DeliverEarlyAppData{Bytes: ev.AppData}}, nil
	case AcceptingData:
		return []tls13srv.Action{tls13srv.DeliverAppData{Bytes: ev.AppData}}, nil
	default:
		return fail(st, tls13srv.KindUnexpectedMessage, "application data received outside a data-accepting state")
	}
}
