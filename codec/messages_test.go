package codec

import (
	"bytes"
	"testing"
)

func TestClientHelloRoundTrip(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionTLS12,
		LegacySessionID:   []byte{},
		CipherSuites:      []CipherSuite{TLS_AES_128_GCM_SHA256, TLS_CHACHA20_POLY1305_SHA256},
		LegacyCompression: []byte{0},
		Extensions: ExtensionList{
			{Type: ExtServerName, Body: BuildServerNameExtension("example.com")},
			{Type: ExtSupportedVersions, Body: BuildSupportedVersionsServer(VersionTLS13)},
		},
	}
	copy(ch.Random[:], bytes.Repeat([]byte{0x5a}, 32))

	body := ch.Marshal()
	got, err := UnmarshalClientHello(body)
	if err != nil {
		t.Fatalf("UnmarshalClientHello: %v", err)
	}
	if got.LegacyVersion != ch.LegacyVersion || got.Random != ch.Random {
		t.Fatalf("version/random mismatch")
	}
	if len(got.CipherSuites) != 2 || got.CipherSuites[0] != TLS_AES_128_GCM_SHA256 {
		t.Fatalf("cipher suites mismatch: %v", got.CipherSuites)
	}
	sni, ok := got.Extensions.Find(ExtServerName)
	if !ok {
		t.Fatalf("server_name extension missing after round trip")
	}
	host, err := NormalizeServerName(sni.Body)
	if err != nil || host != "example.com" {
		t.Fatalf("NormalizeServerName = %q, %v", host, err)
	}
}

func TestServerHelloHelloRetryRequestDetection(t *testing.T) {
	sh := &ServerHello{LegacyVersion: VersionTLS12, CipherSuite: TLS_AES_128_GCM_SHA256, LegacyCompression: 0}
	sh.Random = HelloRetryRequestRandom
	if !sh.IsHelloRetryRequest() {
		t.Fatalf("expected IsHelloRetryRequest() true")
	}

	body := sh.Marshal()
	got, err := UnmarshalServerHello(body)
	if err != nil {
		t.Fatalf("UnmarshalServerHello: %v", err)
	}
	if !got.IsHelloRetryRequest() {
		t.Fatalf("round-tripped ServerHello lost HelloRetryRequest marker")
	}
}

func TestServerHelloOrdinaryRandomIsNotHRR(t *testing.T) {
	sh := &ServerHello{}
	copy(sh.Random[:], bytes.Repeat([]byte{0x01}, 32))
	if sh.IsHelloRetryRequest() {
		t.Fatalf("ordinary random misidentified as HelloRetryRequest")
	}
}

func TestDowngradeSentinelDetection(t *testing.T) {
	var random [32]byte
	copy(random[24:], downgradeSentinelTLS12[:])
	if !IsDowngradeSentinel(random) {
		t.Fatalf("expected downgrade sentinel to be detected")
	}
	var clean [32]byte
	copy(clean[:], bytes.Repeat([]byte{0x02}, 32))
	if IsDowngradeSentinel(clean) {
		t.Fatalf("clean random misidentified as downgrade sentinel")
	}
}

func TestCertificateRoundTripWithExtensions(t *testing.T) {
	cert := &Certificate{
		CertificateRequestContext: []byte{},
		Entries: []CertificateEntry{
			{Data: []byte("der-bytes-one"), Extensions: ExtensionList{}},
			{Data: []byte("der-bytes-two"), Extensions: ExtensionList{{Type: ExtCompressCertificate, Body: []byte{0x00, 0x01}}}},
		},
	}
	body := cert.Marshal()
	got, err := UnmarshalCertificate(body)
	if err != nil {
		t.Fatalf("UnmarshalCertificate: %v", err)
	}
	if len(got.Entries) != 2 || string(got.Entries[0].Data) != "der-bytes-one" || string(got.Entries[1].Data) != "der-bytes-two" {
		t.Fatalf("entries mismatch: %+v", got.Entries)
	}
}

func TestCompressedCertificateRoundTrip(t *testing.T) {
	cc := &CompressedCertificate{Algorithm: CertCompressionZlib, UncompressedLength: 1234, CompressedData: []byte("zzz")}
	got, err := UnmarshalCompressedCertificate(cc.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalCompressedCertificate: %v", err)
	}
	if got.Algorithm != CertCompressionZlib || got.UncompressedLength != 1234 || string(got.CompressedData) != "zzz" {
		t.Fatalf("got %+v", got)
	}
}

func TestFinishedRoundTrip(t *testing.T) {
	f := &Finished{VerifyData: bytes.Repeat([]byte{0x9}, 32)}
	got, err := UnmarshalFinished(f.Marshal())
	if err != nil || !bytes.Equal(got.VerifyData, f.VerifyData) {
		t.Fatalf("got %v, err %v", got, err)
	}
}

func TestNewSessionTicketRoundTrip(t *testing.T) {
	nst := &NewSessionTicket{
		TicketLifetime: 7200,
		TicketAgeAdd:   0xdeadbeef,
		TicketNonce:    []byte{0x01},
		Ticket:         []byte("opaque-ticket-bytes"),
		Extensions:     ExtensionList{{Type: ExtEarlyData, Body: BuildEarlyDataIndicationTicket(16384)}},
	}
	got, err := UnmarshalNewSessionTicket(nst.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalNewSessionTicket: %v", err)
	}
	if got.TicketLifetime != 7200 || got.TicketAgeAdd != 0xdeadbeef || string(got.Ticket) != "opaque-ticket-bytes" {
		t.Fatalf("got %+v", got)
	}
	earlyData, ok := got.Extensions.Find(ExtEarlyData)
	if !ok {
		t.Fatalf("early_data extension missing")
	}
	maxSize, err := ParseEarlyDataIndicationTicket(earlyData.Body)
	if err != nil || maxSize != 16384 {
		t.Fatalf("maxSize = %d, err %v", maxSize, err)
	}
}

func TestKeyUpdateRoundTrip(t *testing.T) {
	ku := &KeyUpdate{RequestUpdate: KeyUpdateRequested}
	got, err := UnmarshalKeyUpdate(ku.Marshal())
	if err != nil || got.RequestUpdate != KeyUpdateRequested {
		t.Fatalf("got %+v, err %v", got, err)
	}
}

func TestEndOfEarlyDataRejectsNonEmptyBody(t *testing.T) {
	if _, err := UnmarshalEndOfEarlyData([]byte{0x00}); err == nil {
		t.Fatalf("expected error for non-empty end_of_early_data body")
	}
	if _, err := UnmarshalEndOfEarlyData(nil); err != nil {
		t.Fatalf("unexpected error for empty body: %v", err)
	}
}

func TestFrameMessageHeader(t *testing.T) {
	framed := FrameMessage(HandshakeTypeFinished, []byte("abcd"))
	if framed[0] != byte(HandshakeTypeFinished) {
		t.Fatalf("type byte = %x", framed[0])
	}
	length := int(framed[1])<<16 | int(framed[2])<<8 | int(framed[3])
	if length != 4 {
		t.Fatalf("length = %d, want 4", length)
	}
}

func TestKeyShareRoundTrip(t *testing.T) {
	entries := []KeyShareEntry{
		{Group: GroupX25519, KeyExchange: bytes.Repeat([]byte{0x7}, 32)},
		{Group: GroupSecp256, KeyExchange: bytes.Repeat([]byte{0x8}, 65)},
	}
	w := NewWriter()
	w.LengthPrefixed16(func(inner *Writer) {
		for _, e := range entries {
			inner.Uint16(uint16(e.Group))
			inner.Vector16(e.KeyExchange)
		}
	})
	got, err := ParseKeyShareClientHello(w.Bytes())
	if err != nil {
		t.Fatalf("ParseKeyShareClientHello: %v", err)
	}
	if len(got) != 2 || got[0].Group != GroupX25519 || len(got[1].KeyExchange) != 65 {
		t.Fatalf("got %+v", got)
	}
}

func TestPreSharedKeyClientHelloRoundTrip(t *testing.T) {
	w := NewWriter()
	w.LengthPrefixed16(func(inner *Writer) {
		inner.Vector16([]byte("ticket-identity"))
		inner.Uint32(42)
	})
	w.LengthPrefixed16(func(inner *Writer) {
		inner.Vector8(bytes.Repeat([]byte{0xb}, 32))
	})
	identities, binders, err := ParsePreSharedKeyClientHello(w.Bytes())
	if err != nil {
		t.Fatalf("ParsePreSharedKeyClientHello: %v", err)
	}
	if len(identities) != 1 || string(identities[0].Identity) != "ticket-identity" || identities[0].ObfuscatedTicketAge != 42 {
		t.Fatalf("identities = %+v", identities)
	}
	if len(binders) != 1 || len(binders[0]) != 32 {
		t.Fatalf("binders = %+v", binders)
	}
}
