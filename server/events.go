package server

import "github.com/jalmeida85/tls13srv/codec"

// EventTag identifies which of spec §4.4's event kinds an Event carries,
// letting the dispatch table switch on a plain enum rather than a type
// assertion chain.
type EventTag uint8

const (
	EventAccept EventTag = iota
	EventClientHello
	EventEndOfEarlyData
	EventCertificate
	EventCertificateVerify
	EventFinished
	EventAppData
	EventKeyUpdate
	EventCloseNotify
	EventAlert
	EventAppWrite
	EventAppClose
	EventWriteNewSessionTicket
	EventHandshakeDoneEarlyDataTimer
)

// Event is the single input type handlers consume, one per entry on the
// serial queue (spec §5). Exactly one of the typed fields is populated,
// selected by Tag; this mirrors a tagged union more directly than Go's
// interface-based alternative would, and keeps the dispatch table in
// machine.go a flat switch rather than a type-switch per branch.
type Event struct {
	Tag EventTag

	ClientHello       *codec.ClientHello
	Certificate       *codec.Certificate
	CertificateVerify *codec.CertificateVerify
	Finished          *codec.Finished
	KeyUpdate         *codec.KeyUpdate

	AppData []byte

	CloseNotifyReceived bool
	AlertReceived       *AlertEvent

	AppWriteData []byte
}

// AlertEvent carries a received alert record's level/description.
type AlertEvent struct {
	Level       uint8
	Description uint8
}
