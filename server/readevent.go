package server

import (
	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
)

// ReadEvent is the read side of the pump's contract: it drains inbox of
// complete wire records, unprotects each one under st.ReadRecordLayer,
// and feeds handshake-content-type plaintext through st.FragmentQueue
// until one fully reassembled message (or a whole application-data
// record, or an alert) is available, then returns it as the Event
// HandleEvent expects next.
//
// ok is false when inbox currently holds less than one complete message;
// the caller should Feed more transport bytes and call again. A non-nil
// error is always fatal and follows the same contract as every handler's
// fail(): st.Name is already Error and actions already carries the
// matching ReportError.
func ReadEvent(st *State, cfg *Config, inbox *record.Inbox) (Event, bool, []tls13srv.Action, error) {
	for {
		if msgType, body, ok := st.FragmentQueue.Next(); ok {
			return dispatchHandshakeMessage(st, cfg, msgType, body)
		}

		hdr, payload, err := inbox.NextRecord()
		if err != nil {
			if err == record.ErrPartial {
				return Event{}, false, nil, nil
			}
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed record header")
			return Event{}, false, actions, ferr
		}

		ct, plaintext, err := st.ReadRecordLayer.Unprotect(hdr, payload)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindBadRecordMac, "record unprotect failed")
			return Event{}, false, actions, ferr
		}

		switch ct {
		case record.ContentTypeChangeCipherSpec:
			// RFC 8446 Appendix D.4: ignored, unparsed, at any epoch.
			continue
		case record.ContentTypeAlert:
			return buildAlertEvent(st, plaintext)
		case record.ContentTypeApplicationData:
			return Event{Tag: EventAppData, AppData: plaintext}, true, nil, nil
		case record.ContentTypeHandshake:
			st.FragmentQueue.Push(plaintext)
			continue
		default:
			actions, ferr := fail(st, tls13srv.KindUnexpectedMessage, "unrecognized record content type")
			return Event{}, false, actions, ferr
		}
	}
}

// buildAlertEvent turns a two-byte alert record into the matching Event:
// a warning-level close_notify is the graceful shutdown signal
// (EventCloseNotify), everything else is surfaced as EventAlert for
// handleAlertEvent to fail the connection on.
func buildAlertEvent(st *State, plaintext []byte) (Event, bool, []tls13srv.Action, error) {
	if len(plaintext) != 2 {
		actions, ferr := fail(st, tls13srv.KindDecode, "malformed alert record")
		return Event{}, false, actions, ferr
	}
	level, desc := plaintext[0], plaintext[1]
	if desc == uint8(tls13srv.AlertDescCloseNotify) {
		return Event{Tag: EventCloseNotify, CloseNotifyReceived: true}, true, nil, nil
	}
	return Event{Tag: EventAlert, AlertReceived: &AlertEvent{Level: level, Description: desc}}, true, nil, nil
}

// dispatchHandshakeMessage unmarshals one reassembled handshake message
// and builds the Event the state machine handlers expect. Certificate
// and CertificateVerify are appended to the transcript here, since
// unlike ClientHello and Finished (which their own handlers append,
// needing to do other transcript-dependent work first) nothing else in
// this core's read path ever sees their raw framed bytes.
func dispatchHandshakeMessage(st *State, cfg *Config, msgType uint8, body []byte) (Event, bool, []tls13srv.Action, error) {
	switch codec.HandshakeType(msgType) {
	case codec.HandshakeTypeClientHello:
		ch, err := codec.UnmarshalClientHello(body)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed ClientHello")
			return Event{}, false, actions, ferr
		}
		return Event{Tag: EventClientHello, ClientHello: ch}, true, nil, nil

	case codec.HandshakeTypeEndOfEarlyData:
		if _, err := codec.UnmarshalEndOfEarlyData(body); err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed EndOfEarlyData")
			return Event{}, false, actions, ferr
		}
		return Event{Tag: EventEndOfEarlyData}, true, nil, nil

	case codec.HandshakeTypeCertificate:
		cert, err := codec.UnmarshalCertificate(body)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed Certificate")
			return Event{}, false, actions, ferr
		}
		st.HandshakeContext.Append(codec.FrameMessage(codec.HandshakeTypeCertificate, body))
		return Event{Tag: EventCertificate, Certificate: cert}, true, nil, nil

	case codec.HandshakeTypeCompressedCertificate:
		compressed, err := codec.UnmarshalCompressedCertificate(body)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed CompressedCertificate")
			return Event{}, false, actions, ferr
		}
		if cfg.Compressor == nil || cfg.Compressor.Algorithm() != compressed.Algorithm {
			actions, ferr := fail(st, tls13srv.KindIllegalParameter, "unsupported certificate compression algorithm")
			return Event{}, false, actions, ferr
		}
		raw, err := cfg.Compressor.Decompress(compressed.CompressedData, int(compressed.UncompressedLength))
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindInternalError, "certificate decompression failed")
			return Event{}, false, actions, ferr
		}
		cert, err := codec.UnmarshalCertificate(raw)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed decompressed Certificate")
			return Event{}, false, actions, ferr
		}
		// The transcript hashes the CompressedCertificate message exactly
		// as received, never the decompressed form (RFC 8879 §4).
		st.HandshakeContext.Append(codec.FrameMessage(codec.HandshakeTypeCompressedCertificate, body))
		return Event{Tag: EventCertificate, Certificate: cert}, true, nil, nil

	case codec.HandshakeTypeCertificateVerify:
		cv, err := codec.UnmarshalCertificateVerify(body)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed CertificateVerify")
			return Event{}, false, actions, ferr
		}
		st.HandshakeContext.Append(codec.FrameMessage(codec.HandshakeTypeCertificateVerify, body))
		return Event{Tag: EventCertificateVerify, CertificateVerify: cv}, true, nil, nil

	case codec.HandshakeTypeFinished:
		fin, err := codec.UnmarshalFinished(body)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed Finished")
			return Event{}, false, actions, ferr
		}
		return Event{Tag: EventFinished, Finished: fin}, true, nil, nil

	case codec.HandshakeTypeKeyUpdate:
		ku, err := codec.UnmarshalKeyUpdate(body)
		if err != nil {
			actions, ferr := fail(st, tls13srv.KindDecode, "malformed KeyUpdate")
			return Event{}, false, actions, ferr
		}
		return Event{Tag: EventKeyUpdate, KeyUpdate: ku}, true, nil, nil

	default:
		actions, ferr := fail(st, tls13srv.KindUnexpectedMessage, "unsupported handshake message type on the read path")
		return Event{}, false, actions, ferr
	}
}
