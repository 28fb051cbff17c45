package tls13srv

// Action is the shared vocabulary handlers in package server emit: each
// handler call returns an ordered []Action describing the side effects
// the pump (the caller driving the state machine) must carry out, rather
// than performing I/O or mutating shared state itself. This mirrors the
// HandshakeAction marker-interface pattern the teacher's state machine
// uses (QueueHandshakeMessage, SendQueuedHandshake, RekeyIn/RekeyOut,
// StorePSK), generalized from "queue then flush" to an explicit ordered
// action list per spec §4.4.
type Action interface {
	isAction()
}

// WriteToSocket asks the pump to write Bytes to the transport. Flush
// indicates whether the pump should force an immediate underlying write
// (vs. coalescing with a subsequent WriteToSocket from the same handler
// call, e.g. ServerHello+EncryptedExtensions+Certificate+Finished).
type WriteToSocket struct {
	Bytes []byte
	Flush bool
}

func (WriteToSocket) isAction() {}

// DeliverAppData hands decrypted application data up to the caller.
type DeliverAppData struct {
	Bytes []byte
}

func (DeliverAppData) isAction() {}

// DeliverEarlyAppData hands decrypted 0-RTT application data up to the
// caller, kept distinct from DeliverAppData so a caller can apply
// different trust policy to early data (RFC 8446 §8 anti-replay caveat).
type DeliverEarlyAppData struct {
	Bytes []byte
}

func (DeliverEarlyAppData) isAction() {}

// ReportHandshakeSuccess signals the 1-RTT handshake has completed.
type ReportHandshakeSuccess struct{}

func (ReportHandshakeSuccess) isAction() {}

// ReportEarlyHandshakeSuccess signals 0-RTT data may now be sent/received
// even though the full handshake has not yet completed.
type ReportEarlyHandshakeSuccess struct{}

func (ReportEarlyHandshakeSuccess) isAction() {}

// ReportError signals a fatal condition; Err always carries a taxonomy
// Kind (see ErrorKind) the caller can branch on.
type ReportError struct {
	Err *Error
}

func (ReportError) isAction() {}

// SecretKind identifies which traffic or exporter secret a
// SecretAvailable action is reporting, e.g. for qlog-style key export or
// an application's own exporter use.
type SecretKind uint8

const (
	SecretClientEarlyTraffic SecretKind = iota
	SecretClientHandshakeTraffic
	SecretServerHandshakeTraffic
	SecretClientApplicationTraffic
	SecretServerApplicationTraffic
	SecretExporterMaster
	SecretResumptionMaster
)

// SecretAvailable reports a newly derived secret, matching spec §4.4's
// action list; the core itself never logs or persists key material, it
// only ever reports it through this action.
type SecretAvailable struct {
	Kind   SecretKind
	Secret []byte
}

func (SecretAvailable) isAction() {}

// EndReason identifies why a connection's data phase ended.
type EndReason uint8

const (
	EndReasonCloseNotify EndReason = iota
	EndReasonError
)

// EndOfData signals the connection will deliver no further application
// data, successfully or otherwise.
type EndOfData struct {
	Reason EndReason
}

func (EndOfData) isAction() {}

// MutateState asks the pump to apply f to the state container before
// the next event is processed — the escape hatch spec §4.4's
// "re-entrancy and mutation" paragraph describes for handlers that need
// to schedule a follow-up mutation rather than apply it synchronously.
type MutateState struct {
	Mutate func(interface{})
}

func (MutateState) isAction() {}
