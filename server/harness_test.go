package server

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/certstore"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
	"github.com/jalmeida85/tls13srv/replay"
	"github.com/jalmeida85/tls13srv/schedule"
	"github.com/jalmeida85/tls13srv/ticket"
	"github.com/jalmeida85/tls13srv/transcript"
)

// fakeTicketCipher is an in-memory ticket.Cipher: opaque tickets are just
// lookup keys into a map, good enough to drive PSK resolution without a
// real AEAD-sealed ticket format.
type fakeTicketCipher struct {
	mu      sync.Mutex
	tickets map[string]*ticket.State
	next    int
}

func newFakeTicketCipher() *fakeTicketCipher {
	return &fakeTicketCipher{tickets: make(map[string]*ticket.State)}
}

func (f *fakeTicketCipher) Encrypt(s *ticket.State) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("ticket-%d", f.next)
	f.next++
	f.tickets[id] = s
	return []byte(id), nil
}

func (f *fakeTicketCipher) Decrypt(opaque []byte) (*ticket.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.tickets[string(opaque)]
	if !ok {
		return nil, errors.New("harness: unknown ticket")
	}
	return s, nil
}

// fakeReplayCache is an in-memory replay.Cache: the first sighting of a
// given (identity, age) pair is NotReplay, every subsequent one is Replay.
type fakeReplayCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeReplayCache() *fakeReplayCache {
	return &fakeReplayCache{seen: make(map[string]bool)}
}

func (f *fakeReplayCache) Check(identity []byte, age uint32) replay.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%x:%d", identity, age)
	if f.seen[key] {
		return replay.Replay
	}
	f.seen[key] = true
	return replay.NotReplay
}

// fakeAppTokenHook is both an AppTokenIssuer and AppTokenValidator: it
// hands out a fixed token on issuance and only validates that exact
// token back, so tests can tell a 0-RTT rejection apart from an
// AppTokenValidator-driven one.
type fakeAppTokenHook struct {
	token []byte
	deny  bool
}

func (h *fakeAppTokenHook) IssueAppToken(st *State) []byte { return h.token }
func (h *fakeAppTokenHook) Validate(token []byte) bool {
	if h.deny {
		return false
	}
	return string(token) == string(h.token)
}

// newEd25519CertManager builds a StaticManager signing with a freshly
// generated Ed25519 key, the cheapest real signature scheme to exercise
// sendCertificateFlight without touching X.509 parsing (out of scope).
func newEd25519CertManager() *certstore.StaticManager {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return &certstore.StaticManager{
		Chain:  []codec.CertificateEntry{{Data: []byte("harness fake leaf certificate")}},
		Scheme: codec.SigSchemeEd25519,
		Signer: priv,
	}
}

// baseConfig returns a Config exercising the AES-128-GCM/X25519 path with
// a real Ed25519 CertManager and no resumption capabilities configured;
// individual tests layer ticket/replay/app-token capabilities on as needed.
func baseConfig() *Config {
	return &Config{
		CipherSuites:     []codec.CipherSuite{codec.TLS_AES_128_GCM_SHA256},
		Groups:           []codec.NamedGroup{codec.GroupX25519},
		SignatureSchemes: []codec.SignatureScheme{codec.SigSchemeEd25519},
		CertManager:      newEd25519CertManager(),
	}
}

// testClient is a minimal hand-built TLS 1.3 client sufficient to drive
// the server through a handshake. It mirrors the ECDHE, key schedule and
// transcript steps a real client performs, reusing this package's own
// lookupSuite/curveForGroup/installReadSecret/installWriteSecret helpers
// rather than reimplementing them a second time for the test side.
type testClient struct {
	suite codec.CipherSuite
	group codec.NamedGroup
	sp    suiteParams
	curve ecdh.Curve

	priv *ecdh.PrivateKey

	tr  *transcript.Context
	sch *schedule.Scheduler

	readRL  *record.ReadRecordLayer
	writeRL *record.WriteRecordLayer
	fq      record.FragmentQueue
	inbox   *record.Inbox

	clientHS, serverHS   []byte
	clientApp, serverApp []byte
}

func newTestClient(suite codec.CipherSuite, group codec.NamedGroup) *testClient {
	sp, err := lookupSuite(suite)
	if err != nil {
		panic(err)
	}
	curve, ok := curveForGroup(group)
	if !ok {
		panic("harness: unsupported group")
	}
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return &testClient{
		suite:   suite,
		group:   group,
		sp:      sp,
		curve:   curve,
		priv:    priv,
		tr:      transcript.New(sp.hash),
		sch:     schedule.New(sp.hash),
		readRL:  record.NewReadRecordLayer(),
		writeRL: record.NewWriteRecordLayer(),
		inbox:   record.NewInbox(),
	}
}

// nextMessage drains one reassembled handshake message from c's read
// side, pulling and unprotecting wire records as needed. It panics on
// short input or a bad AEAD tag since every test scenario feeds exactly
// the bytes it expects to need; a panic here means the test itself is
// wrong, not the code under test.
func (c *testClient) nextMessage() (uint8, []byte) {
	for {
		if mt, body, ok := c.fq.Next(); ok {
			return mt, body
		}
		hdr, payload, err := c.inbox.NextRecord()
		if err != nil {
			panic("harness: " + err.Error())
		}
		ct, plaintext, err := c.readRL.Unprotect(hdr, payload)
		if err != nil {
			panic("harness: " + err.Error())
		}
		switch ct {
		case record.ContentTypeHandshake:
			c.fq.Push(plaintext)
		case record.ContentTypeChangeCipherSpec:
			continue
		default:
			panic("harness: unexpected content type in handshake read path")
		}
	}
}

func (c *testClient) feed(wire []byte) {
	c.inbox.Feed(wire)
}

// installHandshakeKeys derives c hs traffic/s hs traffic from the
// transcript hash at the point ServerHello has just been appended, and
// installs the server-write/client-read-equivalent secret into c's own
// record layers (reversed from the server's perspective: what the
// server writes, the client reads, and vice versa).
func (c *testClient) installHandshakeKeys(dheSecret []byte) {
	handshakeHash := c.tr.Sum()
	c.sch.AdvanceToHandshakeSecret(dheSecret, emptyHashFor(c.sp.hash))
	c.clientHS = c.sch.ClientHandshakeTrafficSecret(handshakeHash)
	c.serverHS = c.sch.ServerHandshakeTrafficSecret(handshakeHash)
	if err := installReadSecret(c.readRL, c.sp, c.sch, c.serverHS); err != nil {
		panic(err)
	}
	if err := installWriteSecret(c.writeRL, c.sp, c.sch, c.clientHS); err != nil {
		panic(err)
	}
}

// installApplicationKeys derives c ap traffic/s ap traffic at the
// transcript point through the server's Finished, matching
// sendServerFlight's own derivation point, and swaps c's read side over
// (the write side stays on clientHS until the client's own Finished is
// sent, exactly like the server's WriteRecordLayer does symmetrically).
func (c *testClient) installApplicationKeys() {
	appHash := c.tr.Sum()
	c.clientApp = c.sch.ClientApplicationTrafficSecret0(appHash)
	c.serverApp = c.sch.ServerApplicationTrafficSecret0(appHash)
	if err := installReadSecret(c.readRL, c.sp, c.sch, c.serverApp); err != nil {
		panic(err)
	}
}

// finishedVerifyDataFor computes the verify_data expected for baseKey at
// c's current transcript position, mirroring
// transcript.Context.FinishedKey/FinishedVerifyData's use in finished.go
// and serverflight.go.
func (c *testClient) finishedVerifyDataFor(baseKey []byte) []byte {
	finishedKey := c.tr.FinishedKey(c.sch.ExpandLabel, baseKey)
	return c.tr.FinishedVerifyData(finishedKey)
}

// sendFinished builds, transcript-appends, and protects (under
// clientHS) the client's own Finished message.
func (c *testClient) sendFinished() []byte {
	verifyData := c.finishedVerifyDataFor(c.clientHS)
	fin := &codec.Finished{VerifyData: verifyData}
	framed := codec.FrameMessage(codec.HandshakeTypeFinished, fin.Marshal())
	c.tr.Append(framed)
	wire, err := c.writeRL.Protect(record.ContentTypeHandshake, framed, 0)
	if err != nil {
		panic(err)
	}
	return wire
}

func emptyHashFor(alg transcript.HashAlgorithm) []byte {
	return alg.New().Sum(nil)
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// collectWireBytes concatenates every WriteToSocket action's payload, in
// the order the handler emitted them, mirroring what a pump would
// actually hand a net.Conn.Write in sequence.
func collectWireBytes(actions []tls13srv.Action) []byte {
	var out []byte
	for _, a := range actions {
		if w, ok := a.(tls13srv.WriteToSocket); ok {
			out = append(out, w.Bytes...)
		}
	}
	return out
}

// findSecret returns the Secret bytes of the first SecretAvailable action
// of the given kind, or nil if none is present.
func findSecret(actions []tls13srv.Action, kind tls13srv.SecretKind) []byte {
	for _, a := range actions {
		if s, ok := a.(tls13srv.SecretAvailable); ok && s.Kind == kind {
			return s.Secret
		}
	}
	return nil
}

func hasReportError(actions []tls13srv.Action) bool {
	for _, a := range actions {
		if _, ok := a.(tls13srv.ReportError); ok {
			return true
		}
	}
	return false
}

// --- client-side wire builders for extension bodies the codec package
// only ever builds the server-sent form of (this library is server-only,
// per its own doc comments, so none of these exist as exported codec
// builders — the test client constructs them directly with
// codec.Reader/Writer primitives, the same way a real client stack would).

func clientSupportedVersionsBody(versions ...codec.ProtocolVersion) []byte {
	inner := codec.NewWriter()
	for _, v := range versions {
		inner.Uint16(uint16(v))
	}
	w := codec.NewWriter()
	w.Vector8(inner.Bytes())
	return w.Bytes()
}

func clientSupportedGroupsBody(groups ...codec.NamedGroup) []byte {
	inner := codec.NewWriter()
	for _, g := range groups {
		inner.Uint16(uint16(g))
	}
	w := codec.NewWriter()
	w.Vector16(inner.Bytes())
	return w.Bytes()
}

func clientKeyShareBody(entries ...codec.KeyShareEntry) []byte {
	inner := codec.NewWriter()
	for _, e := range entries {
		inner.Uint16(uint16(e.Group))
		inner.Vector16(e.KeyExchange)
	}
	w := codec.NewWriter()
	w.Vector16(inner.Bytes())
	return w.Bytes()
}

func clientPSKKeyExchangeModesBody(modes ...codec.PSKKeyExchangeMode) []byte {
	raw := make([]byte, len(modes))
	for i, m := range modes {
		raw[i] = byte(m)
	}
	w := codec.NewWriter()
	w.Vector8(raw)
	return w.Bytes()
}

func clientSignatureAlgorithmsBody(schemes ...codec.SignatureScheme) []byte {
	inner := codec.NewWriter()
	for _, s := range schemes {
		inner.Uint16(uint16(s))
	}
	w := codec.NewWriter()
	w.Vector16(inner.Bytes())
	return w.Bytes()
}

func clientPreSharedKeyBody(identity []byte, obfuscatedAge uint32, binder []byte) []byte {
	idsInner := codec.NewWriter()
	idsInner.Vector16(identity)
	idsInner.Uint32(obfuscatedAge)

	bindersInner := codec.NewWriter()
	bindersInner.Vector8(binder)

	w := codec.NewWriter()
	w.Vector16(idsInner.Bytes())
	w.Vector16(bindersInner.Bytes())
	return w.Bytes()
}

// parseServerKeyShare extracts the single KeyShareEntry a ServerHello's
// key_share extension carries (the server_hello wire form is unwrapped,
// unlike the client_hello form's outer vector), using the exported
// codec.Reader primitives directly since codec has no server-form parser
// (it only ever builds that form, never parses it, being server-only).
func parseServerKeyShare(body []byte) codec.KeyShareEntry {
	r := codec.NewReader(body)
	group, err := r.Uint16()
	if err != nil {
		panic(err)
	}
	ke, err := r.Vector16()
	if err != nil {
		panic(err)
	}
	return codec.KeyShareEntry{Group: codec.NamedGroup(group), KeyExchange: ke}
}

// buildClientHello assembles a ClientHello wire message (framed, ready to
// wrap in a record) from the given extension list plus the fixed fields
// every scenario needs, appending its own framed bytes to c.tr exactly
// once (mirroring handleClientHello's self-append).
func (c *testClient) buildClientHello(exts codec.ExtensionList) (wire, framed []byte, ch *codec.ClientHello) {
	ch = &codec.ClientHello{
		LegacyVersion:     codec.VersionTLS12,
		LegacySessionID:   []byte{},
		CipherSuites:      []codec.CipherSuite{c.suite},
		LegacyCompression: []byte{0},
		Extensions:        exts,
	}
	copy(ch.Random[:], randomBytes(32))
	framed = codec.FrameMessage(codec.HandshakeTypeClientHello, ch.Marshal())
	c.tr.Append(framed)
	plainWriter := record.NewWriteRecordLayer()
	w, err := plainWriter.Protect(record.ContentTypeHandshake, framed, 0)
	if err != nil {
		panic(err)
	}
	return w, framed, ch
}

// baseClientExtensions returns the extension list every scenario's
// ClientHello needs before any PSK/early-data additions: supported
// versions, the client's key_share, supported_groups and
// signature_algorithms.
func (c *testClient) baseClientExtensions() codec.ExtensionList {
	return codec.ExtensionList{
		{Type: codec.ExtSupportedVersions, Body: clientSupportedVersionsBody(codec.VersionTLS13)},
		{Type: codec.ExtSupportedGroups, Body: clientSupportedGroupsBody(c.group)},
		{Type: codec.ExtSignatureAlgorithms, Body: clientSignatureAlgorithmsBody(codec.SigSchemeEd25519)},
		{Type: codec.ExtKeyShare, Body: clientKeyShareBody(codec.KeyShareEntry{Group: c.group, KeyExchange: c.priv.PublicKey().Bytes()})},
	}
}
