// Package certstore is the CertManager/CertVerifier/Compressor boundary
// (SPEC_FULL.md §0): X.509 parsing and chain validation are explicitly out
// of scope for the state machine core (spec §1 Non-goals), but a server
// still needs something behind these interfaces to run, so this package
// also carries minimal concrete implementations.
package certstore

import "github.com/jalmeida85/tls13srv/codec"

// Manager selects a certificate chain and signature scheme for a
// negotiated SNI/signature-algorithm/group set, and produces the
// CertificateVerify signature over a transcript digest the core hands it.
// This core never holds a private key or parses DER itself.
type Manager interface {
	GetCert(sni string, sigSchemes []codec.SignatureScheme, groups []codec.NamedGroup) (chain []codec.CertificateEntry, scheme codec.SignatureScheme, err error)
	Sign(scheme codec.SignatureScheme, transcriptDigest []byte) ([]byte, error)
}

// Verifier validates a client certificate chain when client
// authentication is requested. Actual X.509 parsing/verification is out
// of scope for this module (spec §1); implementations live here.
type Verifier interface {
	Verify(chain []codec.CertificateEntry) error
}

// Compressor implements one RFC 8879 certificate-compression algorithm.
type Compressor interface {
	Algorithm() codec.CertCompressionAlgorithm
	Compress(raw []byte) ([]byte, error)
	Decompress(compressed []byte, uncompressedLength int) ([]byte, error)
}
