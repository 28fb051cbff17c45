package record

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func mustAESGCM(t *testing.T) AeadCipher {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	aead, err := NewAESGCM(key)
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	return aead
}

func TestAeadRoundTripUnsharedSingleSegment(t *testing.T) {
	aead := mustAESGCM(t)
	nonce := make([]byte, aead.NonceSize())
	plaintext := NewChain(0, 32, aead.Overhead())
	copy(plaintext.head.Bytes(), bytes.Repeat([]byte{0x42}, 32))
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x20}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 0)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed.Len() != 32+aead.Overhead() {
		t.Fatalf("sealed length = %d, want %d", sealed.Len(), 32+aead.Overhead())
	}

	opened, err := aead.Decrypt(sealed, aad, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened.Bytes(), bytes.Repeat([]byte{0x42}, 32)) {
		t.Fatalf("opened = %x", opened.Bytes())
	}
}

func TestAeadRoundTripSharedPlaintext(t *testing.T) {
	aead := mustAESGCM(t)
	nonce := make([]byte, aead.NonceSize())
	backing := []byte("the quick brown fox jumps")
	plaintext := WrapBytes(backing, true) // shared: backing is still referenced below
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x1a}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 5)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// Original backing must be untouched: Encrypt took the fresh-allocation
	// path because the input chain was marked shared.
	if !bytes.Equal(backing, []byte("the quick brown fox jumps")) {
		t.Fatalf("shared plaintext was mutated in place: %q", backing)
	}

	opened, err := aead.Decrypt(sealed, aad, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened.Bytes(), backing) {
		t.Fatalf("opened = %q, want %q", opened.Bytes(), backing)
	}
}

func TestAeadRoundTripFragmentedPlaintext(t *testing.T) {
	aead := mustAESGCM(t)
	nonce := make([]byte, aead.NonceSize())
	a := WrapBytes([]byte("fragment-one:"), false)
	b := WrapBytes([]byte("fragment-two"), false)
	plaintext := a.AppendChain(b)
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x19}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 0)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	opened, err := aead.Decrypt(sealed, aad, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(opened.Bytes()) != "fragment-one:fragment-two" {
		t.Fatalf("opened = %q", opened.Bytes())
	}
}

func TestAeadDecryptRejectsTamperedTag(t *testing.T) {
	aead := mustAESGCM(t)
	nonce := make([]byte, aead.NonceSize())
	plaintext := WrapBytes([]byte("integrity matters"), false)
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x11}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 0)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), sealed.Bytes()...)
	tampered[len(tampered)-1] ^= 0x01
	tamperedChain := WrapBytes(tampered, false)

	if _, err := aead.Decrypt(tamperedChain, aad, nonce); err == nil {
		t.Fatalf("Decrypt succeeded on tampered ciphertext")
	}
}

func TestAeadDecryptRejectsWrongAAD(t *testing.T) {
	aead := mustAESGCM(t)
	nonce := make([]byte, aead.NonceSize())
	plaintext := WrapBytes([]byte("bind me to my header"), false)
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x15}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 0)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	wrongAAD := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x16}, false)
	if _, err := aead.Decrypt(sealed, wrongAAD, nonce); err == nil {
		t.Fatalf("Decrypt succeeded with mismatched AAD")
	}
}

func TestAeadDecryptSharedCiphertextLeavesOriginalIntact(t *testing.T) {
	aead := mustAESGCM(t)
	nonce := make([]byte, aead.NonceSize())
	plaintext := WrapBytes([]byte("shared read path"), false)
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x10}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 0)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealedBytes := sealed.Bytes()
	original := append([]byte(nil), sealedBytes...)
	shared := WrapBytes(sealedBytes, true)

	opened, err := aead.Decrypt(shared, aad, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened.Bytes(), []byte("shared read path")) {
		t.Fatalf("opened = %q", opened.Bytes())
	}
	if !bytes.Equal(sealedBytes, original) {
		t.Fatalf("shared input buffer was mutated by Decrypt")
	}
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	aead, err := NewChaCha20Poly1305(key)
	if err != nil {
		t.Fatalf("NewChaCha20Poly1305: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	plaintext := WrapBytes([]byte("chacha please"), false)
	aad := WrapBytes([]byte{0x17, 0x03, 0x03, 0x00, 0x0e}, false)

	sealed, err := aead.Encrypt(plaintext, aad, nonce, 0)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	opened, err := aead.Decrypt(sealed, aad, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened.Bytes(), []byte("chacha please")) {
		t.Fatalf("opened = %q", opened.Bytes())
	}
}
