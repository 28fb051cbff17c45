package codec

import (
	"golang.org/x/net/idna"
)

// ExtensionType enumerates the extensions this library negotiates
// (RFC 8446 §4.2). Extensions it does not recognize on receipt are kept
// as opaque Extension entries and tolerated, per spec §4.5's echo policy.
type ExtensionType uint16

const (
	ExtServerName          ExtensionType = 0
	ExtSupportedGroups     ExtensionType = 10
	ExtSignatureAlgorithms ExtensionType = 13
	ExtALPN                ExtensionType = 16
	ExtCompressCertificate ExtensionType = 27
	ExtPreSharedKey        ExtensionType = 41
	ExtEarlyData           ExtensionType = 42
	ExtSupportedVersions   ExtensionType = 43
	ExtCookie              ExtensionType = 44
	ExtPSKKeyExchangeModes ExtensionType = 45
	ExtKeyShare            ExtensionType = 51
)

// Extension is one opaque, already-length-delimited TLV. Typed accessors
// below parse/build the body for the extensions this library actually
// understands; everything else round-trips through Body untouched.
type Extension struct {
	Type ExtensionType
	Body []byte
}

// ExtensionList is the <0..2^16-1> vector of Extension entries carried
// by every handshake message that supports extensions.
type ExtensionList []Extension

func (l ExtensionList) Marshal(w *Writer) {
	w.LengthPrefixed16(func(inner *Writer) {
		for _, e := range l {
			inner.Uint16(uint16(e.Type))
			inner.Vector16(e.Body)
		}
	})
}

func UnmarshalExtensionList(r *Reader) (ExtensionList, error) {
	body, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	inner := NewReader(body)
	var list ExtensionList
	for !inner.AtEnd() {
		typ, err := inner.Uint16()
		if err != nil {
			return nil, err
		}
		data, err := inner.Vector16()
		if err != nil {
			return nil, err
		}
		list = append(list, Extension{Type: ExtensionType(typ), Body: append([]byte(nil), data...)})
	}
	return list, nil
}

func (l ExtensionList) Find(t ExtensionType) (Extension, bool) {
	for _, e := range l {
		if e.Type == t {
			return e, true
		}
	}
	return Extension{}, false
}

// NormalizeServerName decodes the server_name extension body and
// normalizes the host name via golang.org/x/net/idna (ToASCII), the
// standard Go way to canonicalize a possibly-Unicode SNI value before
// using it as a certificate-store lookup key.
func NormalizeServerName(body []byte) (string, error) {
	r := NewReader(body)
	list, err := r.Vector16()
	if err != nil {
		return "", err
	}
	inner := NewReader(list)
	nameType, err := inner.Uint8()
	if err != nil {
		return "", err
	}
	if nameType != 0 { // host_name
		return "", errUnexpectedEOF()
	}
	host, err := inner.Vector16()
	if err != nil {
		return "", err
	}
	normalized, err := idna.Lookup.ToASCII(string(host))
	if err != nil {
		return "", err
	}
	return normalized, nil
}

// BuildServerNameExtension encodes a server_name extension body for a
// single host_name entry.
func BuildServerNameExtension(host string) []byte {
	w := NewWriter()
	w.LengthPrefixed16(func(inner *Writer) {
		inner.Uint8(0) // host_name
		inner.Vector16([]byte(host))
	})
	return w.Bytes()
}

// ParseSupportedVersions parses a supported_versions extension body sent by
// a ClientHello (a vector of 2-byte versions).
func ParseSupportedVersions(body []byte) ([]ProtocolVersion, error) {
	r := NewReader(body)
	raw, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	inner := NewReader(raw)
	var versions []ProtocolVersion
	for !inner.AtEnd() {
		v, err := inner.Uint16()
		if err != nil {
			return nil, err
		}
		versions = append(versions, ProtocolVersion(v))
	}
	return versions, nil
}

// BuildSupportedVersionsServer encodes the single-version form a
// ServerHello/HelloRetryRequest sends.
func BuildSupportedVersionsServer(v ProtocolVersion) []byte {
	w := NewWriter()
	w.Uint16(uint16(v))
	return w.Bytes()
}

// ParseKeyShareClientHello parses the client_hello form of key_share: a
// vector of KeyShareEntry.
func ParseKeyShareClientHello(body []byte) ([]KeyShareEntry, error) {
	r := NewReader(body)
	raw, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	inner := NewReader(raw)
	var entries []KeyShareEntry
	for !inner.AtEnd() {
		e, err := unmarshalKeyShareEntry(inner)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// BuildKeyShareServer encodes the server_hello form of key_share: a
// single KeyShareEntry, unwrapped.
func BuildKeyShareServer(e KeyShareEntry) []byte {
	w := NewWriter()
	e.marshal(w)
	return w.Bytes()
}

// BuildKeyShareHelloRetry encodes the hello_retry_request form of
// key_share: just the selected group, signaling which one the client
// should supply on retry.
func BuildKeyShareHelloRetry(group NamedGroup) []byte {
	w := NewWriter()
	w.Uint16(uint16(group))
	return w.Bytes()
}

// PSKIdentity is one entry of a pre_shared_key extension's identity list.
type PSKIdentity struct {
	Identity            []byte
	ObfuscatedTicketAge uint32
}

// ParsePreSharedKeyClientHello parses the client_hello form of
// pre_shared_key: identities followed by binders, kept as parallel
// slices (RFC 8446 §4.2.11 requires matching counts, checked by the
// caller against the selected identity's binder).
func ParsePreSharedKeyClientHello(body []byte) ([]PSKIdentity, [][]byte, error) {
	r := NewReader(body)
	idBytes, err := r.Vector16()
	if err != nil {
		return nil, nil, err
	}
	idReader := NewReader(idBytes)
	var identities []PSKIdentity
	for !idReader.AtEnd() {
		id, err := idReader.Vector16()
		if err != nil {
			return nil, nil, err
		}
		age, err := idReader.Uint32()
		if err != nil {
			return nil, nil, err
		}
		identities = append(identities, PSKIdentity{Identity: append([]byte(nil), id...), ObfuscatedTicketAge: age})
	}
	binderBytes, err := r.Vector16()
	if err != nil {
		return nil, nil, err
	}
	binderReader := NewReader(binderBytes)
	var binders [][]byte
	for !binderReader.AtEnd() {
		b, err := binderReader.Vector8()
		if err != nil {
			return nil, nil, err
		}
		binders = append(binders, append([]byte(nil), b...))
	}
	return identities, binders, nil
}

// BuildPreSharedKeyServer encodes the server_hello form of
// pre_shared_key: a bare selected_identity index.
func BuildPreSharedKeyServer(selected uint16) []byte {
	w := NewWriter()
	w.Uint16(selected)
	return w.Bytes()
}

// PSKKeyExchangeMode mirrors RFC 8446 §4.2.9.
type PSKKeyExchangeMode uint8

const (
	PSKModeKe    PSKKeyExchangeMode = 0
	PSKModeDheKe PSKKeyExchangeMode = 1
)

func ParsePSKKeyExchangeModes(body []byte) ([]PSKKeyExchangeMode, error) {
	r := NewReader(body)
	raw, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	modes := make([]PSKKeyExchangeMode, len(raw))
	for i, b := range raw {
		modes[i] = PSKKeyExchangeMode(b)
	}
	return modes, nil
}

// ParseEarlyDataIndicationTicket parses the NewSessionTicket form of
// early_data, a 4-byte max_early_data_size.
func ParseEarlyDataIndicationTicket(body []byte) (uint32, error) {
	r := NewReader(body)
	return r.Uint32()
}

func BuildEarlyDataIndicationTicket(maxSize uint32) []byte {
	w := NewWriter()
	w.Uint32(maxSize)
	return w.Bytes()
}

// ParseCookie parses a cookie extension body.
func ParseCookie(body []byte) ([]byte, error) {
	r := NewReader(body)
	return r.Vector16()
}

func BuildCookie(cookie []byte) []byte {
	w := NewWriter()
	w.Vector16(cookie)
	return w.Bytes()
}

// ParseALPNProtocolList parses the application_layer_protocol_negotiation
// extension body into its list of protocol name strings.
func ParseALPNProtocolList(body []byte) ([]string, error) {
	r := NewReader(body)
	raw, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	inner := NewReader(raw)
	var protos []string
	for !inner.AtEnd() {
		p, err := inner.Vector8()
		if err != nil {
			return nil, err
		}
		protos = append(protos, string(p))
	}
	return protos, nil
}

func BuildALPNProtocolList(protos []string) []byte {
	w := NewWriter()
	w.LengthPrefixed16(func(inner *Writer) {
		for _, p := range protos {
			inner.Vector8([]byte(p))
		}
	})
	return w.Bytes()
}

// CertCompressionAlgorithm identifies an RFC 8879 compression algorithm.
type CertCompressionAlgorithm uint16

const (
	CertCompressionZlib   CertCompressionAlgorithm = 1
	CertCompressionBrotli CertCompressionAlgorithm = 2
	CertCompressionZstd   CertCompressionAlgorithm = 3
)

func ParseCompressCertificateAlgorithms(body []byte) ([]CertCompressionAlgorithm, error) {
	r := NewReader(body)
	raw, err := r.Vector8()
	if err != nil {
		return nil, err
	}
	inner := NewReader(raw)
	var algs []CertCompressionAlgorithm
	for !inner.AtEnd() {
		v, err := inner.Uint16()
		if err != nil {
			return nil, err
		}
		algs = append(algs, CertCompressionAlgorithm(v))
	}
	return algs, nil
}
