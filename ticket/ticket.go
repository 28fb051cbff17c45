// Package ticket is the TicketCipher boundary (SPEC_FULL.md §0): the only
// place a session ticket's on-disk representation and encryption key are
// known. server.Config holds a Cipher; the state machine core only ever
// sees opaque bytes in and a State out.
package ticket

import (
	"github.com/jalmeida85/tls13srv/codec"
)

// State is the resumption payload a ticket decrypts to: everything the
// 0-RTT/PSK path needs to decide whether to accept a returning client,
// opaque to the state machine core itself (spec §6 "Persisted state").
type State struct {
	PSK              []byte
	CipherSuite      codec.CipherSuite
	ALPN             string
	Version          codec.ProtocolVersion
	TicketIssueTime  int64 // unix seconds
	TicketAgeAdd     uint32
	AppToken         []byte
	MaxEarlyDataSize uint32
}

// Cipher seals and opens tickets. The core never parses a ticket's wire
// layout, only exchanges State for opaque bytes and back.
type Cipher interface {
	Decrypt(opaqueTicket []byte) (*State, error)
	Encrypt(state *State) ([]byte, error)
}
