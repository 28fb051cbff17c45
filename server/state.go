// Package server implements the State Machine Core and State Container
// (spec §4.4, §3.1): a pure (state, event) -> (state, []tls13srv.Action)
// dispatch table plus the single State object the dispatch table owns
// exclusively.
//
// The overall shape — a StateEnum-tagged container plus a HandshakeAction
// list returned from each transition — is the teacher's
// (_examples/yaronf-mint/state-machine.go's HandshakeState.Next) and, at
// the field level, State mirrors the original Fizz C++ fizz::server::State
// class in _examples/original_source/fizz/server/State.h, translated from
// a single monolithic struct with public setters into one Go struct
// mutated only by this package's handlers.
package server

import (
	"crypto/ecdh"
	"time"

	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
	"github.com/jalmeida85/tls13srv/replay"
	"github.com/jalmeida85/tls13srv/schedule"
	"github.com/jalmeida85/tls13srv/transcript"
)

// StateName is the spec §3.1 StateEnum.
type StateName uint8

const (
	Uninitialized StateName = iota
	ExpectingClientHello
	ExpectingCertificate
	ExpectingCertificateVerify
	AcceptingEarlyData
	ExpectingFinished
	AcceptingData
	ExpectingCloseNotify
	Closed
	Error
)

func (s StateName) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case ExpectingClientHello:
		return "ExpectingClientHello"
	case ExpectingCertificate:
		return "ExpectingCertificate"
	case ExpectingCertificateVerify:
		return "ExpectingCertificateVerify"
	case AcceptingEarlyData:
		return "AcceptingEarlyData"
	case ExpectingFinished:
		return "ExpectingFinished"
	case AcceptingData:
		return "AcceptingData"
	case ExpectingCloseNotify:
		return "ExpectingCloseNotify"
	case Closed:
		return "Closed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// PskType mirrors fizz::server::State's psk_type_ field.
type PskType uint8

const (
	PskTypeNotAttempted PskType = iota
	PskTypeNotValidated
	PskTypeResumption
	PskTypeExternal
	PskTypeRejectedPsk
)

// PskKeyExchangeMode mirrors the negotiated psk_mode_.
type PskKeyExchangeMode uint8

const (
	PskModeNone PskKeyExchangeMode = iota
	PskModeKe
	PskModeDheKe
)

// KeyExchangeType mirrors key_exchange_type_: whether the negotiated key
// exchange used a fresh (EC)DHE share, a bare PSK, both, or a
// HelloRetryRequest was required first.
type KeyExchangeType uint8

const (
	KeyExchangeNone KeyExchangeType = iota
	KeyExchangeDheKe
	KeyExchangePskDheKe
	KeyExchangePsk
	KeyExchangeHelloRetry
)

// EarlyDataType mirrors early_data_type_.
type EarlyDataType uint8

const (
	EarlyDataNotAttempted EarlyDataType = iota
	EarlyDataRejected
	EarlyDataAccepted
)

// ReplayCacheResult aliases replay.Result (moved to its own package per
// SPEC_FULL.md §0); the Replay* constants keep this package's call sites
// unchanged.
type ReplayCacheResult = replay.Result

const (
	ReplayResultNotReplay   = replay.NotReplay
	ReplayResultMaybeReplay = replay.MaybeReplay
	ReplayResultReplay      = replay.Replay
)

// HandshakeLogging is spec §3.3: everything about the negotiation worth
// exposing to an application-level access log, gathered as the
// ClientHello (and later messages) are parsed. The extra fields beyond
// spec.md's own list (ClientRecordVersion, ClientSessionIDSent) are
// supplemented from _examples/original_source/fizz/server/State.h's
// HandshakeLogging struct, which carries both. ClientSessionIDSent is set
// from the ClientHello; ClientRecordVersion is not set by this package's
// ClientHello handling (the record header does not reach it) and stays 0.
type HandshakeLogging struct {
	ClientLegacyVersion      codec.ProtocolVersion
	ClientSupportedVersions  []codec.ProtocolVersion
	ClientCiphers            []codec.CipherSuite
	ClientExtensions         []codec.ExtensionType
	ClientRecordVersion      uint16
	ClientSNI                string
	ClientSupportedGroups    []codec.NamedGroup
	ClientKeyShares          []codec.NamedGroup
	ClientKeyExchangeModes   []codec.PSKKeyExchangeMode
	ClientSignatureAlgorithms []codec.SignatureScheme
	ClientALPNProtocols      []string
	ClientSessionIDSent      bool
	ClientRandom             [32]byte
}

// AppTokenValidator is the §6 boundary capability deciding whether a
// 0-RTT attempt's application token (carried opaquely in the ticket's
// resumption state) should be trusted.
type AppTokenValidator interface {
	Validate(resumptionAppToken []byte) bool
}

// AppTokenIssuer is AppTokenValidator's issuance-side counterpart: the
// opaque application token NewSessionTicket's resumption state carries,
// handed back to AppTokenValidator.Validate on a later 0-RTT redemption
// of that same ticket.
type AppTokenIssuer interface {
	IssueAppToken(st *State) []byte
}

// ServerExtensions lets an embedding application contribute and consume
// extensions beyond what this core understands natively (spec §6), one
// instance per connection unless the application declares it safe to
// share (spec §5 shared-resource policy).
type ServerExtensions interface {
	GetExtensions(ch *codec.ClientHello) codec.ExtensionList
	OnEncryptedExtensions(ee codec.ExtensionList)
}

// EphemeralKeyPair is one (EC)DHE key pair generated for a single
// handshake. Generation uses Go's stdlib crypto/ecdh (1.20+), the
// concrete primitive the group negotiation in ClientHello/ServerHello
// ultimately has to call into — every other cryptographic primitive this
// core touches (AEAD, HMAC, HKDF) is reached through an interface, but
// ECDHE key agreement has no natural boundary capability of its own in
// spec §6, so it is performed directly against the standard library here.
type EphemeralKeyPair struct {
	Group      codec.NamedGroup
	PrivateKey *ecdh.PrivateKey
}

// State is spec §3.1's Connection State: the single object the state
// machine core owns exclusively, mutated only by this package's
// handlers on its serial event queue (spec §5).
type State struct {
	Name StateName

	Version     codec.ProtocolVersion
	Cipher      codec.CipherSuite
	Group       codec.NamedGroup
	SigScheme   codec.SignatureScheme
	PskType     PskType
	PskMode     PskKeyExchangeMode
	KeyExchangeType KeyExchangeType
	EarlyDataType   EarlyDataType
	ReplayCacheResult ReplayCacheResult

	ALPN string

	HandshakeContext *transcript.Context
	KeyScheduler     *schedule.Scheduler

	ReadRecordLayer            *record.ReadRecordLayer
	WriteRecordLayer           *record.WriteRecordLayer
	HandshakeReadRecordLayer   *record.ReadRecordLayer // retained across the 0-RTT window, restored on EndOfEarlyData

	FragmentQueue record.FragmentQueue

	ServerCertChain       []codec.CertificateEntry
	ServerCertCompAlgo    codec.CertCompressionAlgorithm
	ClientCertChain       []codec.CertificateEntry
	UnverifiedCertChain   []codec.CertificateEntry

	ClientHandshakeSecret   []byte
	ServerHandshakeSecret   []byte
	ClientApplicationSecret []byte // derived in the server's outbound flight, installed once Finished verifies
	ServerApplicationSecret []byte // current generation; ratcheted in place by KeyUpdate
	ResumptionMasterSecret  []byte
	ExporterMasterSecret    []byte
	EarlyExporterMasterSecret []byte

	ClientClockSkew time.Duration
	HandshakeTime   time.Time

	HandshakeLogging HandshakeLogging
	Ephemeral        *EphemeralKeyPair

	AppTokenValidator AppTokenValidator
	Extensions        ServerExtensions

	EarlyDataBytesSeen     int
	EarlyDataDeadline      time.Time
	TicketMaxEarlyDataSize uint32 // from the redeemed ticket's own State, not cfg.MaxEarlyDataSize

	PendingKeyUpdate bool
}

// NewState constructs the Uninitialized connection state ready to
// receive Accept.
func NewState() *State {
	return &State{
		Name:              Uninitialized,
		ReadRecordLayer:   record.NewReadRecordLayer(),
		WriteRecordLayer:  record.NewWriteRecordLayer(),
		ReplayCacheResult: ReplayResultNotReplay,
	}
}
