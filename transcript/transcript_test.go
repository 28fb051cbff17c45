package transcript

import (
	"bytes"
	"testing"
)

func TestAppendIsOrderSensitive(t *testing.T) {
	a := New(SHA256)
	a.Append([]byte("client-hello"))
	a.Append([]byte("server-hello"))

	b := New(SHA256)
	b.Append([]byte("server-hello"))
	b.Append([]byte("client-hello"))

	if bytes.Equal(a.Sum(), b.Sum()) {
		t.Fatalf("transcripts with swapped message order produced the same hash")
	}
}

func TestSumIsStableAcrossRepeatedCalls(t *testing.T) {
	c := New(SHA256)
	c.Append([]byte("only message"))
	first := c.Sum()
	second := c.Sum()
	if !bytes.Equal(first, second) {
		t.Fatalf("Sum() not idempotent: %x != %x", first, second)
	}
}

func TestReplaceWithSyntheticHashIsDeterministic(t *testing.T) {
	c := New(SHA256)
	c.Append([]byte("client-hello-1"))
	preHRR := c.Sum()
	c.ReplaceWithSyntheticHash()
	afterSynthetic := c.Sum()

	replay := New(SHA256)
	replay.Append([]byte("client-hello-1"))
	if !bytes.Equal(replay.Sum(), preHRR) {
		t.Fatalf("sanity: replay digest mismatch")
	}
	replay.ReplaceWithSyntheticHash()
	if !bytes.Equal(replay.Sum(), afterSynthetic) {
		t.Fatalf("synthetic rewrite of the same transcript produced a different hash")
	}

	// The transcript after the synthetic rewrite must differ from a
	// transcript that simply kept accumulating the original message.
	continued := New(SHA256)
	continued.Append([]byte("client-hello-1"))
	continued.Append([]byte("hello-retry-request"))
	if bytes.Equal(afterSynthetic, continued.Sum()) {
		t.Fatalf("synthetic rewrite produced same hash as verbatim accumulation")
	}
}

func TestFinishedVerifyDataRoundTrip(t *testing.T) {
	c := New(SHA256)
	c.Append([]byte("client-hello"))
	c.Append([]byte("server-hello"))

	key := bytes.Repeat([]byte{0x11}, 32)
	verifyData := c.FinishedVerifyData(key)
	if err := c.VerifyFinished(key, verifyData); err != nil {
		t.Fatalf("VerifyFinished rejected its own verify_data: %v", err)
	}

	tampered := append([]byte(nil), verifyData...)
	tampered[0] ^= 0xff
	if err := c.VerifyFinished(key, tampered); err == nil {
		t.Fatalf("VerifyFinished accepted a tampered verify_data")
	}
}

func TestSHA384Size(t *testing.T) {
	if SHA384.Size() != 48 {
		t.Fatalf("SHA384.Size() = %d, want 48", SHA384.Size())
	}
	if SHA256.Size() != 32 {
		t.Fatalf("SHA256.Size() = %d, want 32", SHA256.Size())
	}
}
