package certstore

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/jalmeida85/tls13srv/codec"
)

// certificateVerifyContext is RFC 8446 §4.4.3's fixed server-side context
// string signed alongside the transcript digest.
const certificateVerifyContext = "TLS 1.3, server CertificateVerify"

// buildCertificateVerifyContent assembles the exact bytes a
// CertificateVerify signature covers: 64 spaces, the context string, a
// zero byte, then the transcript digest.
func buildCertificateVerifyContent(transcriptDigest []byte) []byte {
	content := make([]byte, 0, 64+len(certificateVerifyContext)+1+len(transcriptDigest))
	for i := 0; i < 64; i++ {
		content = append(content, 0x20)
	}
	content = append(content, certificateVerifyContext...)
	content = append(content, 0x00)
	content = append(content, transcriptDigest...)
	return content
}

// StaticManager serves one fixed certificate chain and signs with one
// fixed key/scheme pair, grounded on the teacher's Certificate struct
// (Chain []*x509.Certificate, PrivateKey crypto.Signer in its conn.go)
// generalized to the wire-level CertificateEntry this module's codec
// package already carries, since DER parsing itself stays out of scope.
type StaticManager struct {
	Chain  []codec.CertificateEntry
	Scheme codec.SignatureScheme
	Signer crypto.Signer
}

func (m *StaticManager) GetCert(sni string, sigSchemes []codec.SignatureScheme, groups []codec.NamedGroup) ([]codec.CertificateEntry, codec.SignatureScheme, error) {
	for _, s := range sigSchemes {
		if s == m.Scheme {
			return m.Chain, m.Scheme, nil
		}
	}
	return nil, 0, fmt.Errorf("certstore: no offered signature scheme matches configured %#04x", uint16(m.Scheme))
}

func (m *StaticManager) Sign(scheme codec.SignatureScheme, transcriptDigest []byte) ([]byte, error) {
	if scheme != m.Scheme {
		return nil, fmt.Errorf("certstore: asked to sign with unconfigured scheme %#04x", uint16(scheme))
	}
	content := buildCertificateVerifyContent(transcriptDigest)

	switch scheme {
	case codec.SigSchemeEd25519:
		return m.Signer.Sign(rand.Reader, content, crypto.Hash(0))
	case codec.SigSchemeRsaPssRsaeSha256:
		digest := sha256.Sum256(content)
		return m.Signer.Sign(rand.Reader, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256})
	case codec.SigSchemeEcdsaSecp256r1Sha256:
		digest := sha256.Sum256(content)
		return m.Signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	default:
		return nil, fmt.Errorf("certstore: unsupported signature scheme %#04x", uint16(scheme))
	}
}

// AllowAllVerifier accepts any client certificate chain without
// inspection — a placeholder satisfying Verifier when client auth is
// negotiated but chain validation is delegated elsewhere (spec §1
// Non-goals keep X.509 verification out of this module).
type AllowAllVerifier struct{}

func (AllowAllVerifier) Verify(chain []codec.CertificateEntry) error {
	if len(chain) == 0 {
		return fmt.Errorf("certstore: empty client certificate chain")
	}
	return nil
}
