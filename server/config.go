package server

import (
	"time"

	"github.com/jalmeida85/tls13srv/certstore"
	"github.com/jalmeida85/tls13srv/codec"
)

// Config is the per-listener configuration every connection's State is
// built from, grounded on _examples/yaronf-mint/conn.go's Config struct
// fields relevant to a server-only, TLS-1.3-only core (client auth,
// session ticket policy, early data policy, suite/group/scheme
// preference ordering, and the boundary capabilities of spec §6).
type Config struct {
	CipherSuites      []codec.CipherSuite
	Groups            []codec.NamedGroup
	SignatureSchemes  []codec.SignatureScheme
	ALPNProtocols     []string

	RequireClientAuth bool

	AllowEarlyData    bool
	EarlyDataLifetime time.Duration
	MaxEarlyDataSize  uint32

	SendSessionTickets bool
	TicketLifetime     time.Duration

	CertManager  CertManager
	CertVerifier CertVerifier
	TicketCipher TicketCipher
	ReplayCache  ReplayCache
	Compressor   certstore.Compressor

	AppTokenValidator AppTokenValidator
	AppTokenIssuer    AppTokenIssuer
	Extensions        ServerExtensions

	Now func() time.Time
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// SelectCipherSuite picks the first of c.CipherSuites (server preference
// order) also offered by the client, per spec §4.4 step 2.
func (c *Config) SelectCipherSuite(offered []codec.CipherSuite) (codec.CipherSuite, bool) {
	offeredSet := make(map[codec.CipherSuite]bool, len(offered))
	for _, cs := range offered {
		offeredSet[cs] = true
	}
	for _, cs := range c.CipherSuites {
		if offeredSet[cs] {
			return cs, true
		}
	}
	return 0, false
}

// SelectGroup picks the first of c.Groups also offered in the client's
// key_share extension, returning the matching entry.
func (c *Config) SelectGroup(offered []codec.KeyShareEntry) (codec.KeyShareEntry, bool) {
	offeredByGroup := make(map[codec.NamedGroup]codec.KeyShareEntry, len(offered))
	for _, e := range offered {
		offeredByGroup[e.Group] = e
	}
	for _, g := range c.Groups {
		if e, ok := offeredByGroup[g]; ok {
			return e, true
		}
	}
	return codec.KeyShareEntry{}, false
}

// SelectALPN picks the first of c.ALPNProtocols also offered by the
// client's application_layer_protocol_negotiation extension.
func (c *Config) SelectALPN(offered []string) (string, bool) {
	offeredSet := make(map[string]bool, len(offered))
	for _, p := range offered {
		offeredSet[p] = true
	}
	for _, p := range c.ALPNProtocols {
		if offeredSet[p] {
			return p, true
		}
	}
	return "", false
}

// PreferredGroup returns the first group in server preference order that
// the client's supported_groups extension also lists, for the
// HelloRetryRequest key_share hint.
func (c *Config) PreferredGroup(clientSupported []codec.NamedGroup) (codec.NamedGroup, bool) {
	supported := make(map[codec.NamedGroup]bool, len(clientSupported))
	for _, g := range clientSupported {
		supported[g] = true
	}
	for _, g := range c.Groups {
		if supported[g] {
			return g, true
		}
	}
	return 0, false
}
