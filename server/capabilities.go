package server

import (
	"github.com/jalmeida85/tls13srv/certstore"
	"github.com/jalmeida85/tls13srv/replay"
	"github.com/jalmeida85/tls13srv/ticket"
)

// CertManager, CertVerifier, TicketCipher, ReplayCache, and ResumptionState
// used to be defined in this package; they now live in certstore/,
// ticket/, and replay/ respectively, matching SPEC_FULL.md §0's module
// layout. These aliases keep the rest of the package's call sites (and
// Config's field types) reading the same as before the split.
type (
	CertManager     = certstore.Manager
	CertVerifier    = certstore.Verifier
	TicketCipher    = ticket.Cipher
	ResumptionState = ticket.State
	ReplayCache     = replay.Cache
)
