package tls13srv

// AlertLevel distinguishes fatal from warning alerts on the wire (RFC 8446 §6).
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription is the wire alert code carried in an Alert record.
type AlertDescription uint8

const (
	AlertDescCloseNotify          AlertDescription = 0
	AlertDescUnexpectedMessage    AlertDescription = 10
	AlertDescBadRecordMac         AlertDescription = 20
	AlertDescRecordOverflow       AlertDescription = 22
	AlertDescHandshakeFailure     AlertDescription = 40
	AlertDescBadCertificate       AlertDescription = 42
	AlertDescDecompressionFailure AlertDescription = 60
	AlertDescIllegalParameter     AlertDescription = 47
	AlertDescDecodeError          AlertDescription = 50
	AlertDescDecryptError         AlertDescription = 51
	AlertDescProtocolVersion      AlertDescription = 70
	AlertDescInternalError        AlertDescription = 80
	AlertDescUserCanceled         AlertDescription = 90
	AlertDescMissingExtension     AlertDescription = 109
)

// ErrorKind is the local error taxonomy of spec §7, one per row of the alert
// mapping table. It is independent of AlertDescription so that callers can
// branch on cause without string-matching error messages.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindBadMessage
	KindDecode
	KindProtocolVersion
	KindHandshakeFailure
	KindBadRecordMac
	KindMissingExtension
	KindIllegalParameter
	KindUnexpectedMessage
	KindDecryptError
	KindInternalError
	KindCancelled
	KindBadCertificate
)

var kindAlerts = map[ErrorKind]AlertDescription{
	KindBadMessage:        AlertDescUnexpectedMessage,
	KindDecode:            AlertDescDecodeError,
	KindProtocolVersion:   AlertDescProtocolVersion,
	KindHandshakeFailure:  AlertDescHandshakeFailure,
	KindBadRecordMac:      AlertDescBadRecordMac,
	KindMissingExtension:  AlertDescMissingExtension,
	KindIllegalParameter:  AlertDescIllegalParameter,
	KindUnexpectedMessage: AlertDescUnexpectedMessage,
	KindDecryptError:      AlertDescDecryptError,
	KindInternalError:     AlertDescInternalError,
	KindCancelled:         AlertDescUserCanceled,
	KindBadCertificate:    AlertDescBadCertificate,
}

var kindNames = map[ErrorKind]string{
	KindNone:              "none",
	KindBadMessage:        "bad_message",
	KindDecode:            "decode",
	KindProtocolVersion:   "protocol_version",
	KindHandshakeFailure:  "handshake_failure",
	KindBadRecordMac:      "bad_record_mac",
	KindMissingExtension:  "missing_extension",
	KindIllegalParameter:  "illegal_parameter",
	KindUnexpectedMessage: "unexpected_message",
	KindDecryptError:      "decrypt_error",
	KindInternalError:     "internal_error",
	KindCancelled:         "cancelled",
	KindBadCertificate:    "bad_certificate",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// AlertFor returns the wire alert that accompanies a fatal error of kind k.
func AlertFor(k ErrorKind) AlertDescription {
	if a, ok := kindAlerts[k]; ok {
		return a
	}
	return AlertDescInternalError
}

// Error is the error type produced by the state machine and record layer.
// It always carries a taxonomy Kind so a caller can decide how to react
// without parsing the message.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}
