package codec

// HelloRetryRequestRandom is the fixed SHA-256 of "HelloRetryRequest"
// RFC 8446 §4.1.3 requires a ServerHello to carry in random when it is
// actually signaling a HelloRetryRequest rather than a real ServerHello.
var HelloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// downgradeSentinelTLS12 and downgradeSentinelTLS11 are the last 8 bytes
// a TLS 1.3 ServerHello.random must carry when it is actually negotiating
// TLS 1.2 or 1.1 for downgrade-protection purposes (RFC 8446 §4.1.3).
// This library never negotiates below 1.3 (spec Non-goals), so it only
// ever needs to recognize these, not emit them. IsDowngradeSentinel is
// exported for that check; the server package does not call it.
var (
	downgradeSentinelTLS12 = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x01}
	downgradeSentinelTLS11 = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x00}
)

// IsDowngradeSentinel reports whether random's trailing 8 bytes match one
// of the RFC 8446 §4.1.3 downgrade sentinels.
func IsDowngradeSentinel(random [32]byte) bool {
	tail := random[24:]
	return bytesEqual(tail, downgradeSentinelTLS12[:]) || bytesEqual(tail, downgradeSentinelTLS11[:])
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ClientHello is the first handshake message the core ever sees.
type ClientHello struct {
	LegacyVersion     ProtocolVersion
	Random            [32]byte
	LegacySessionID   []byte
	CipherSuites      []CipherSuite
	LegacyCompression []byte
	Extensions        ExtensionList
}

func (m *ClientHello) Marshal() []byte {
	w := NewWriter()
	w.Uint16(uint16(m.LegacyVersion))
	w.Raw(m.Random[:])
	w.Vector8(m.LegacySessionID)
	w.LengthPrefixed16(func(inner *Writer) {
		for _, cs := range m.CipherSuites {
			inner.Uint16(uint16(cs))
		}
	})
	w.Vector8(m.LegacyCompression)
	m.Extensions.Marshal(w)
	return w.Bytes()
}

func UnmarshalClientHello(body []byte) (*ClientHello, error) {
	r := NewReader(body)
	version, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	random, err := r.Bytes(32)
	if err != nil {
		return nil, err
	}
	sessionID, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	rawSuites, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	suiteReader := NewReader(rawSuites)
	var suites []CipherSuite
	for !suiteReader.AtEnd() {
		v, err := suiteReader.Uint16()
		if err != nil {
			return nil, err
		}
		suites = append(suites, CipherSuite(v))
	}
	compression, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	exts, err := UnmarshalExtensionList(r)
	if err != nil {
		return nil, err
	}
	m := &ClientHello{
		LegacyVersion:     ProtocolVersion(version),
		LegacySessionID:   append([]byte(nil), sessionID...),
		CipherSuites:      suites,
		LegacyCompression: append([]byte(nil), compression...),
		Extensions:        exts,
	}
	copy(m.Random[:], random)
	return m, nil
}

// ServerHello also represents a HelloRetryRequest on the wire (RFC 8446
// §4.1.4): the two share a structure and are distinguished only by
// Random matching HelloRetryRequestRandom.
type ServerHello struct {
	LegacyVersion     ProtocolVersion
	Random            [32]byte
	LegacySessionID   []byte
	CipherSuite       CipherSuite
	LegacyCompression uint8
	Extensions        ExtensionList
}

func (m *ServerHello) IsHelloRetryRequest() bool {
	return m.Random == HelloRetryRequestRandom
}

func (m *ServerHello) Marshal() []byte {
	w := NewWriter()
	w.Uint16(uint16(m.LegacyVersion))
	w.Raw(m.Random[:])
	w.Vector8(m.LegacySessionID)
	w.Uint16(uint16(m.CipherSuite))
	w.Uint8(m.LegacyCompression)
	m.Extensions.Marshal(w)
	return w.Bytes()
}

func UnmarshalServerHello(body []byte) (*ServerHello, error) {
	r := NewReader(body)
	version, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	random, err := r.Bytes(32)
	if err != nil {
		return nil, err
	}
	sessionID, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	suite, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	compression, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	exts, err := UnmarshalExtensionList(r)
	if err != nil {
		return nil, err
	}
	m := &ServerHello{
		LegacyVersion:     ProtocolVersion(version),
		LegacySessionID:   append([]byte(nil), sessionID...),
		CipherSuite:       CipherSuite(suite),
		LegacyCompression: compression,
		Extensions:        exts,
	}
	copy(m.Random[:], random)
	return m, nil
}

// EncryptedExtensions carries the server's response extensions under
// the handshake traffic key (RFC 8446 §4.3.1).
type EncryptedExtensions struct {
	Extensions ExtensionList
}

func (m *EncryptedExtensions) Marshal() []byte {
	w := NewWriter()
	m.Extensions.Marshal(w)
	return w.Bytes()
}

func UnmarshalEncryptedExtensions(body []byte) (*EncryptedExtensions, error) {
	r := NewReader(body)
	exts, err := UnmarshalExtensionList(r)
	if err != nil {
		return nil, err
	}
	return &EncryptedExtensions{Extensions: exts}, nil
}

// CertificateEntry is one X.509 (or raw public key) entry in a
// Certificate message, with its own per-entry extension list.
type CertificateEntry struct {
	Data       []byte
	Extensions ExtensionList
}

// Certificate is the server's (or, with client auth, client's)
// certificate chain message. Actual parsing/verification of the DER
// contents is certstore's concern, not the codec's (spec Non-goals).
type Certificate struct {
	CertificateRequestContext []byte
	Entries                   []CertificateEntry
}

func (m *Certificate) Marshal() []byte {
	w := NewWriter()
	w.Vector8(m.CertificateRequestContext)
	w.LengthPrefixed24(func(inner *Writer) {
		for _, e := range m.Entries {
			inner.Vector24(e.Data)
			e.Extensions.Marshal(inner)
		}
	})
	return w.Bytes()
}

func UnmarshalCertificate(body []byte) (*Certificate, error) {
	r := NewReader(body)
	ctx, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	listBytes, err := r.Vector24()
	if err != nil {
		return nil, err
	}
	listReader := NewReader(listBytes)
	var entries []CertificateEntry
	for !listReader.AtEnd() {
		data, err := listReader.Vector24()
		if err != nil {
			return nil, err
		}
		exts, err := UnmarshalExtensionList(listReader)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CertificateEntry{Data: append([]byte(nil), data...), Extensions: exts})
	}
	return &Certificate{CertificateRequestContext: append([]byte(nil), ctx...), Entries: entries}, nil
}

// CompressedCertificate is the RFC 8879 wrapper around a Certificate
// message's wire encoding. The actual (de)compression is a certstore
// capability; this struct only carries the wire fields.
type CompressedCertificate struct {
	Algorithm          CertCompressionAlgorithm
	UncompressedLength uint32
	CompressedData     []byte
}

func (m *CompressedCertificate) Marshal() []byte {
	w := NewWriter()
	w.Uint16(uint16(m.Algorithm))
	w.Uint24(m.UncompressedLength)
	w.Vector24(m.CompressedData)
	return w.Bytes()
}

func UnmarshalCompressedCertificate(body []byte) (*CompressedCertificate, error) {
	r := NewReader(body)
	alg, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	length, err := r.Uint24()
	if err != nil {
		return nil, err
	}
	data, err := r.Vector24()
	if err != nil {
		return nil, err
	}
	return &CompressedCertificate{
		Algorithm:          CertCompressionAlgorithm(alg),
		UncompressedLength: length,
		CompressedData:     append([]byte(nil), data...),
	}, nil
}

// CertificateRequest asks the client to present a certificate.
type CertificateRequest struct {
	CertificateRequestContext []byte
	Extensions                ExtensionList
}

func (m *CertificateRequest) Marshal() []byte {
	w := NewWriter()
	w.Vector8(m.CertificateRequestContext)
	m.Extensions.Marshal(w)
	return w.Bytes()
}

func UnmarshalCertificateRequest(body []byte) (*CertificateRequest, error) {
	r := NewReader(body)
	ctx, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	exts, err := UnmarshalExtensionList(r)
	if err != nil {
		return nil, err
	}
	return &CertificateRequest{CertificateRequestContext: append([]byte(nil), ctx...), Extensions: exts}, nil
}

// CertificateVerify carries the signature over the transcript proving
// possession of the certificate's private key.
type CertificateVerify struct {
	Algorithm SignatureScheme
	Signature []byte
}

func (m *CertificateVerify) Marshal() []byte {
	w := NewWriter()
	w.Uint16(uint16(m.Algorithm))
	w.Vector16(m.Signature)
	return w.Bytes()
}

func UnmarshalCertificateVerify(body []byte) (*CertificateVerify, error) {
	r := NewReader(body)
	alg, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	sig, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	return &CertificateVerify{Algorithm: SignatureScheme(alg), Signature: append([]byte(nil), sig...)}, nil
}

// Finished carries verify_data, a fixed-length HMAC over the transcript
// (length equals the negotiated hash's output size, so it is framed
// entirely by the enclosing handshake message length).
type Finished struct {
	VerifyData []byte
}

func (m *Finished) Marshal() []byte {
	w := NewWriter()
	w.Raw(m.VerifyData)
	return w.Bytes()
}

func UnmarshalFinished(body []byte) (*Finished, error) {
	return &Finished{VerifyData: append([]byte(nil), body...)}, nil
}

// NewSessionTicket offers the client a resumption ticket post-handshake.
type NewSessionTicket struct {
	TicketLifetime uint32
	TicketAgeAdd   uint32
	TicketNonce    []byte
	Ticket         []byte
	Extensions     ExtensionList
}

func (m *NewSessionTicket) Marshal() []byte {
	w := NewWriter()
	w.Uint32(m.TicketLifetime)
	w.Uint32(m.TicketAgeAdd)
	w.Vector8(m.TicketNonce)
	w.Vector16(m.Ticket)
	m.Extensions.Marshal(w)
	return w.Bytes()
}

func UnmarshalNewSessionTicket(body []byte) (*NewSessionTicket, error) {
	r := NewReader(body)
	lifetime, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	ageAdd, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	nonce, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	ticket, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	exts, err := UnmarshalExtensionList(r)
	if err != nil {
		return nil, err
	}
	return &NewSessionTicket{
		TicketLifetime: lifetime,
		TicketAgeAdd:   ageAdd,
		TicketNonce:    append([]byte(nil), nonce...),
		Ticket:         append([]byte(nil), ticket...),
		Extensions:     exts,
	}, nil
}

// KeyUpdateRequest mirrors RFC 8446 §4.6.3.
type KeyUpdateRequest uint8

const (
	KeyUpdateNotRequested KeyUpdateRequest = 0
	KeyUpdateRequested    KeyUpdateRequest = 1
)

// KeyUpdate signals a traffic secret ratchet, optionally asking the peer
// to ratchet its own outbound secret in turn.
type KeyUpdate struct {
	RequestUpdate KeyUpdateRequest
}

func (m *KeyUpdate) Marshal() []byte {
	w := NewWriter()
	w.Uint8(uint8(m.RequestUpdate))
	return w.Bytes()
}

func UnmarshalKeyUpdate(body []byte) (*KeyUpdate, error) {
	r := NewReader(body)
	v, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	return &KeyUpdate{RequestUpdate: KeyUpdateRequest(v)}, nil
}

// EndOfEarlyData is an empty-bodied message marking the end of the
// 0-RTT window.
type EndOfEarlyData struct{}

func (m *EndOfEarlyData) Marshal() []byte {
	return nil
}

func UnmarshalEndOfEarlyData(body []byte) (*EndOfEarlyData, error) {
	if len(body) != 0 {
		return nil, errUnexpectedEOF()
	}
	return &EndOfEarlyData{}, nil
}
