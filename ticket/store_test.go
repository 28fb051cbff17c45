package ticket

import (
	"testing"
	"time"

	"github.com/jalmeida85/tls13srv/codec"
)

func TestSQLiteStoreEncryptDecryptRoundTrip(t *testing.T) {
	store, err := Open(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	state := &State{
		PSK:              []byte("resumption-psk-bytes"),
		CipherSuite:      codec.TLS_AES_128_GCM_SHA256,
		ALPN:             "h2",
		Version:          codec.VersionTLS13,
		TicketIssueTime:  1700000000,
		TicketAgeAdd:     12345,
		MaxEarlyDataSize: 16384,
	}

	opaque, err := store.Encrypt(state)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := store.Decrypt(opaque)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got.PSK) != string(state.PSK) || got.ALPN != state.ALPN || got.CipherSuite != state.CipherSuite {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, state)
	}
}

func TestSQLiteStoreDecryptRejectsTamperedTicket(t *testing.T) {
	store, err := Open(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	opaque, err := store.Encrypt(&State{PSK: []byte("secret")})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	opaque[len(opaque)-1] ^= 0xff

	if _, err := store.Decrypt(opaque); err == nil {
		t.Fatalf("Decrypt succeeded on tampered ticket")
	}
}

func TestSQLiteStoreDecryptUnknownKeyID(t *testing.T) {
	store, err := Open(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	garbage := make([]byte, 40)
	if _, err := store.Decrypt(garbage); err == nil {
		t.Fatalf("Decrypt succeeded on garbage key_id")
	}
}
