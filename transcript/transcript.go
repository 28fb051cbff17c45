// Package transcript implements the running handshake transcript hash
// (RFC 8446 §4.4.1) behind the Handshake Context boundary: every
// handshake message, as it is sent or received, is appended to a
// streaming digest so Finished MACs and key-schedule derivations always
// see the hash of exactly the messages exchanged so far.
//
// It is a from-scratch component — the retrieved copy of the teacher
// did not carry its crypto.go, so the shape here follows RFC 8446's own
// transcript definition rather than any one file; the Hello Retry
// synthetic-hash replacement (ReplaceWithSyntheticHash) mirrors the "message_hash" trick
// every TLS 1.3 stack needs and that _examples/yaronf-mint/attestation.go's
// transcriptHash parameters assume already exists.
package transcript

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/jalmeida85/tls13srv"
)

// HashAlgorithm identifies which digest the negotiated cipher suite binds
// the transcript to (SHA-256 for the AES-128-GCM/ChaCha20 suites,
// SHA-384 for AES-256-GCM).
type HashAlgorithm uint8

const (
	SHA256 HashAlgorithm = iota
	SHA384
)

func (a HashAlgorithm) new() hash.Hash {
	return a.New()
}

// New returns a fresh hash.Hash instance for the bound algorithm; exposed
// so other packages (schedule's HKDF calls, transcript's own Context) can
// construct the exact digest the negotiated cipher suite requires.
func (a HashAlgorithm) New() hash.Hash {
	if a == SHA384 {
		return sha512.New384()
	}
	return sha256.New()
}

// Size returns the digest length in bytes.
func (a HashAlgorithm) Size() int {
	if a == SHA384 {
		return sha512.Size384
	}
	return sha256.Size
}

// Context is the running transcript: every handshake message body (type
// byte, 3-byte length, payload — the exact bytes as they appear on the
// wire inside a handshake record) is fed to Append in the order
// exchanged. It is not safe for concurrent use; the state machine core
// owns one per connection and drives it serially.
type Context struct {
	alg HashAlgorithm
	h   hash.Hash
	log [][]byte // copies of every appended message; cleared by ReplaceWithSyntheticHash
}

// New starts a fresh transcript bound to alg.
func New(alg HashAlgorithm) *Context {
	return &Context{alg: alg, h: alg.new(), log: nil}
}

// Append feeds one complete handshake message (header included) into the
// transcript.
func (c *Context) Append(message []byte) {
	c.h.Write(message)
	c.log = append(c.log, append([]byte(nil), message...))
}

// Sum returns the current transcript hash without mutating state,
// suitable for immediate use in a Finished MAC or key derivation.
func (c *Context) Sum() []byte {
	return c.h.Sum(nil)
}

// HashAlgorithm reports the bound digest.
func (c *Context) HashAlgorithm() HashAlgorithm {
	return c.alg
}

// syntheticMessageHashType is the handshake type byte of the
// message_hash pseudo-message RFC 8446 §4.4.1 defines for Hello Retry:
// when the server must reject the client's first key_share and re-send a
// HelloRetryRequest, the transcript is reset to start with a synthetic
// "message_hash" handshake message wrapping the hash of everything sent
// so far, rather than replaying those messages verbatim.
const syntheticMessageHashType = 254

// ReplaceWithSyntheticHash rewrites the transcript in place to the
// single synthetic message_hash entry RFC 8446 calls for on Hello Retry,
// discarding the original ClientHello bytes but preserving their digest.
func (c *Context) ReplaceWithSyntheticHash() {
	digest := c.Sum()
	c.h = c.alg.new()
	c.log = nil
	synthetic := make([]byte, 4+len(digest))
	synthetic[0] = syntheticMessageHashType
	synthetic[1] = byte(len(digest) >> 16)
	synthetic[2] = byte(len(digest) >> 8)
	synthetic[3] = byte(len(digest))
	copy(synthetic[4:], digest)
	c.Append(synthetic)
}

// FinishedKey derives the Finished-message MAC key from a base secret
// (client_handshake_traffic_secret or server_handshake_traffic_secret),
// per RFC 8446 §4.4.4: HKDF-Expand-Label(base_key, "finished", "", Hash.length).
//
// expandLabel is supplied by the caller (the schedule package) rather
// than implemented twice; transcript only owns the hashing half of the
// Finished computation.
func (c *Context) FinishedKey(expandLabel func(secret []byte, label string, context []byte, length int) []byte, baseKey []byte) []byte {
	return expandLabel(baseKey, "finished", nil, c.alg.Size())
}

// FinishedVerifyData computes HMAC(finished_key, transcript_hash) — the
// verify_data carried in a Finished message.
func (c *Context) FinishedVerifyData(finishedKey []byte) []byte {
	return hmacSum(c.alg, finishedKey, c.Sum())
}

// VerifyFinished reports whether candidate matches the expected
// verify_data for the current transcript state and finishedKey,
// constant-time.
func (c *Context) VerifyFinished(finishedKey, candidate []byte) error {
	expected := c.FinishedVerifyData(finishedKey)
	if !constantTimeEqual(expected, candidate) {
		return tls13srv.NewError(tls13srv.KindDecryptError, "finished verify_data mismatch")
	}
	return nil
}
