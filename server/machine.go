// Package server's machine.go holds the top-level (state, event) ->
// (state, []Action) dispatch spec §4.4 calls for. Each handler is pure
// with respect to anything outside *State: it reads and mutates the
// State it is given and returns the Actions the pump must carry out,
// exactly mirroring _examples/yaronf-mint/state-machine.go's
// HandshakeState.Next(reader) (HandshakeState, []HandshakeAction, Alert)
// shape, generalized from a single linear client/server handshake walk
// to the full server-side state graph of spec §3.1.
package server

import (
	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/internal/alertlog"
)

// HandleEvent is the dispatch table's single entry point. The pump (the
// owner of a connection's serial event queue, spec §5) calls this once
// per dequeued Event and applies the returned actions in order; it must
// never call HandleEvent again for the same connection until the
// current call has returned (no concurrent event delivery, spec §5).
func HandleEvent(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name == Closed || st.Name == Error {
		return handleTerminal(st, ev)
	}

	switch ev.Tag {
	case EventAccept:
		return handleAccept(st, cfg)
	case EventClientHello:
		return handleClientHello(st, cfg, ev)
	case EventEndOfEarlyData:
		return handleEndOfEarlyData(st, cfg, ev)
	case EventCertificate:
		return handleCertificateEvent(st, cfg, ev)
	case EventCertificateVerify:
		return handleCertificateVerifyEvent(st, cfg, ev)
	case EventFinished:
		return handleFinished(st, cfg, ev)
	case EventAppData:
		return handleAppData(st, cfg, ev)
	case EventAppWrite:
		return handleAppWrite(st, ev)
	case EventAppClose:
		return handleAppClose(st)
	case EventKeyUpdate:
		return handleKeyUpdateEvent(st, cfg, ev)
	case EventCloseNotify:
		return handleCloseNotify(st)
	case EventAlert:
		return handleAlertEvent(st, ev)
	case EventWriteNewSessionTicket:
		return handleWriteNewSessionTicket(st, cfg)
	case EventHandshakeDoneEarlyDataTimer:
		return handleEarlyDataTimer(st)
	default:
		return nil, unexpectedMessage(st, "unknown event")
	}
}

func unexpectedMessage(st *State, msg string) error {
	st.Name = Error
	return tls13srv.NewError(tls13srv.KindUnexpectedMessage, msg)
}

func fail(st *State, kind tls13srv.ErrorKind, msg string) ([]tls13srv.Action, error) {
	st.Name = Error
	alertlog.Logf(alertlog.Handshake, "fatal error: %s: %s", kind, msg)
	err := tls13srv.NewError(kind, msg)
	return []tls13srv.Action{tls13srv.ReportError{Err: err}}, err
}

func handleAccept(st *State, cfg *Config) ([]tls13srv.Action, error) {
	if st.Name != Uninitialized {
		return fail(st, tls13srv.KindUnexpectedMessage, "Accept received outside Uninitialized")
	}
	st.Name = ExpectingClientHello
	st.HandshakeTime = cfg.now()
	return nil, nil
}

func handleTerminal(st *State, ev Event) ([]tls13srv.Action, error) {
	if st.Name == Closed {
		return []tls13srv.Action{tls13srv.EndOfData{Reason: tls13srv.EndReasonCloseNotify}}, nil
	}
	return []tls13srv.Action{tls13srv.ReportError{Err: tls13srv.NewError(tls13srv.KindInternalError, "event delivered to connection in Error state")}}, nil
}

func handleCertificateEvent(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name != ExpectingCertificate {
		return fail(st, tls13srv.KindUnexpectedMessage, "Certificate received outside ExpectingCertificate")
	}
	st.UnverifiedCertChain = ev.Certificate.Entries
	st.Name = ExpectingCertificateVerify
	return nil, nil
}

func handleCertificateVerifyEvent(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name != ExpectingCertificateVerify {
		return fail(st, tls13srv.KindUnexpectedMessage, "CertificateVerify received outside ExpectingCertificateVerify")
	}
	if cfg.CertVerifier != nil {
		if err := cfg.CertVerifier.Verify(st.UnverifiedCertChain); err != nil {
			return fail(st, tls13srv.KindBadCertificate, "client certificate verification failed")
		}
	}
	st.ClientCertChain = st.UnverifiedCertChain
	st.Name = ExpectingFinished
	return nil, nil
}

func handleAlertEvent(st *State, ev Event) ([]tls13srv.Action, error) {
	st.Name = Error
	return []tls13srv.Action{tls13srv.ReportError{Err: tls13srv.NewError(tls13srv.KindHandshakeFailure, "peer sent fatal alert")}}, nil
}
