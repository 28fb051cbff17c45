package server

import (
	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
	"github.com/jalmeida85/tls13srv/transcript"
)

type suiteParams struct {
	hash   transcript.HashAlgorithm
	keyLen int
	newAEAD func(key []byte) (record.AeadCipher, error)
}

func lookupSuite(cs codec.CipherSuite) (suiteParams, error) {
	switch cs {
	case codec.TLS_AES_128_GCM_SHA256:
		return suiteParams{hash: transcript.SHA256, keyLen: 16, newAEAD: record.NewAESGCM}, nil
	case codec.TLS_AES_256_GCM_SHA384:
		return suiteParams{hash: transcript.SHA384, keyLen: 32, newAEAD: record.NewAESGCM}, nil
	case codec.TLS_CHACHA20_POLY1305_SHA256:
		return suiteParams{hash: transcript.SHA256, keyLen: 32, newAEAD: record.NewChaCha20Poly1305}, nil
	default:
		return suiteParams{}, tls13srv.NewError(tls13srv.KindIllegalParameter, "unsupported cipher suite")
	}
}

// installReadSecret and installWriteSecret derive key/iv from a traffic
// secret and install the resulting AEAD into the record layer, the
// record.SeqCounter reset implied by
// record.ReadRecordLayer.SetKey/WriteRecordLayer.SetKey.
func installReadSecret(rl *record.ReadRecordLayer, sp suiteParams, sch interface {
	TrafficKeyIV(secret []byte, keyLen int) ([]byte, []byte)
}, secret []byte) error {
	key, iv := sch.TrafficKeyIV(secret, sp.keyLen)
	aead, err := sp.newAEAD(key)
	if err != nil {
		return err
	}
	rl.SetKey(aead, iv)
	return nil
}

func installWriteSecret(wl *record.WriteRecordLayer, sp suiteParams, sch interface {
	TrafficKeyIV(secret []byte, keyLen int) ([]byte, []byte)
}, secret []byte) error {
	key, iv := sch.TrafficKeyIV(secret, sp.keyLen)
	aead, err := sp.newAEAD(key)
	if err != nil {
		return err
	}
	wl.SetKey(aead, iv)
	return nil
}
