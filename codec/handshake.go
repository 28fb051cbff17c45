package codec

import "github.com/jalmeida85/tls13srv"

// HandshakeType is the 1-byte msg_type field of the 4-byte handshake
// message header (RFC 8446 §4).
type HandshakeType uint8

const (
	HandshakeTypeClientHello         HandshakeType = 1
	HandshakeTypeServerHello         HandshakeType = 2
	HandshakeTypeNewSessionTicket    HandshakeType = 4
	HandshakeTypeEndOfEarlyData      HandshakeType = 5
	HandshakeTypeEncryptedExtensions HandshakeType = 8
	HandshakeTypeCertificate         HandshakeType = 11
	HandshakeTypeCompressedCertificate HandshakeType = 25
	HandshakeTypeCertificateRequest  HandshakeType = 13
	HandshakeTypeCertificateVerify   HandshakeType = 15
	HandshakeTypeFinished            HandshakeType = 20
	HandshakeTypeKeyUpdate           HandshakeType = 24
	HandshakeTypeMessageHash         HandshakeType = 254
)

// FrameMessage wraps a handshake message body with its 4-byte header
// (type || uint24 length), the unit record.FragmentQueue reassembles and
// the transcript hashes verbatim.
func FrameMessage(typ HandshakeType, body []byte) []byte {
	w := NewWriter()
	w.Uint8(uint8(typ))
	w.Uint24(uint32(len(body)))
	w.Raw(body)
	return w.Bytes()
}

// ProtocolVersion is the 2-byte version field used both in the legacy
// ClientHello/ServerHello fields and inside supported_versions.
type ProtocolVersion uint16

const (
	VersionTLS12 ProtocolVersion = 0x0303
	VersionTLS13 ProtocolVersion = 0x0304
)

// CipherSuite identifies one of the three RFC 8446 AEAD suites this
// library negotiates (no CBC/legacy suites — TLS 1.3 only, per spec
// Non-goals).
type CipherSuite uint16

const (
	TLS_AES_128_GCM_SHA256       CipherSuite = 0x1301
	TLS_AES_256_GCM_SHA384       CipherSuite = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 CipherSuite = 0x1303
)

// NamedGroup identifies a (EC)DHE key exchange group.
type NamedGroup uint16

const (
	GroupX25519  NamedGroup = 0x001d
	GroupSecp256 NamedGroup = 0x0017
	GroupSecp384 NamedGroup = 0x0018
)

// SignatureScheme identifies a CertificateVerify signature algorithm.
type SignatureScheme uint16

const (
	SigSchemeEcdsaSecp256r1Sha256 SignatureScheme = 0x0403
	SigSchemeRsaPssRsaeSha256     SignatureScheme = 0x0804
	SigSchemeEd25519              SignatureScheme = 0x0807
)

// KeyShareEntry is one entry of the key_share extension.
type KeyShareEntry struct {
	Group       NamedGroup
	KeyExchange []byte
}

func (k KeyShareEntry) marshal(w *Writer) {
	w.Uint16(uint16(k.Group))
	w.Vector16(k.KeyExchange)
}

func unmarshalKeyShareEntry(r *Reader) (KeyShareEntry, error) {
	group, err := r.Uint16()
	if err != nil {
		return KeyShareEntry{}, err
	}
	ke, err := r.Vector16()
	if err != nil {
		return KeyShareEntry{}, err
	}
	return KeyShareEntry{Group: NamedGroup(group), KeyExchange: append([]byte(nil), ke...)}, nil
}

func errUnexpectedEOF() error {
	return tls13srv.NewError(tls13srv.KindDecode, "extension body length mismatch")
}
