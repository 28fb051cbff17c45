package server

import (
	"crypto/ecdh"
	"crypto/rand"

	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
)

func curveForGroup(g codec.NamedGroup) (ecdh.Curve, bool) {
	switch g {
	case codec.GroupX25519:
		return ecdh.X25519(), true
	case codec.GroupSecp256:
		return ecdh.P256(), true
	case codec.GroupSecp384:
		return ecdh.P384(), true
	default:
		return nil, false
	}
}

// GenerateEphemeral creates a fresh (EC)DHE key pair for group g, for
// the server's own key_share in ServerHello.
func GenerateEphemeral(g codec.NamedGroup) (*EphemeralKeyPair, error) {
	curve, ok := curveForGroup(g)
	if !ok {
		return nil, tls13srv.NewError(tls13srv.KindIllegalParameter, "unsupported key exchange group")
	}
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, tls13srv.NewError(tls13srv.KindInternalError, "ephemeral key generation failed")
	}
	return &EphemeralKeyPair{Group: g, PrivateKey: priv}, nil
}

// PublicKeyBytes returns the wire form of the server's ephemeral public
// key for the key_share extension.
func (k *EphemeralKeyPair) PublicKeyBytes() []byte {
	return k.PrivateKey.PublicKey().Bytes()
}

// ComputeSharedSecret performs the (EC)DHE agreement against the
// client's key_share entry, producing the raw shared secret the key
// schedule's handshake-secret HKDF-Extract consumes as IKM.
func (k *EphemeralKeyPair) ComputeSharedSecret(peer codec.KeyShareEntry) ([]byte, error) {
	if peer.Group != k.Group {
		return nil, tls13srv.NewError(tls13srv.KindIllegalParameter, "key_share group mismatch")
	}
	curve, ok := curveForGroup(k.Group)
	if !ok {
		return nil, tls13srv.NewError(tls13srv.KindIllegalParameter, "unsupported key exchange group")
	}
	peerKey, err := curve.NewPublicKey(peer.KeyExchange)
	if err != nil {
		return nil, tls13srv.NewError(tls13srv.KindDecode, "malformed peer key_share")
	}
	secret, err := k.PrivateKey.ECDH(peerKey)
	if err != nil {
		return nil, tls13srv.NewError(tls13srv.KindHandshakeFailure, "ECDHE agreement failed")
	}
	return secret, nil
}
