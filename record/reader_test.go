package record

import (
	"bytes"
	"testing"
)

func TestInboxAssemblesRecordSplitAcrossFeeds(t *testing.T) {
	ib := NewInbox()
	hdr := Header{Type: ContentTypeHandshake, LegacyVersion: LegacyRecordVersion, Length: 5}
	wire := append(hdr.Bytes(), []byte("hello")...)

	ib.Feed(wire[:3])
	if _, _, err := ib.NextRecord(); err != ErrPartial {
		t.Fatalf("expected ErrPartial before full header, got %v", err)
	}
	ib.Feed(wire[3:7])
	if _, _, err := ib.NextRecord(); err != ErrPartial {
		t.Fatalf("expected ErrPartial before full payload, got %v", err)
	}
	ib.Feed(wire[7:])
	gotHdr, payload, err := ib.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord: %v", err)
	}
	if gotHdr != hdr || !bytes.Equal(payload, []byte("hello")) {
		t.Fatalf("got hdr=%+v payload=%q", gotHdr, payload)
	}
}

func TestInboxMultipleRecordsInOneFeed(t *testing.T) {
	ib := NewInbox()
	h1 := Header{Type: ContentTypeHandshake, LegacyVersion: LegacyRecordVersion, Length: 3}
	h2 := Header{Type: ContentTypeApplicationData, LegacyVersion: LegacyRecordVersion, Length: 2}
	var wire []byte
	wire = append(wire, h1.Bytes()...)
	wire = append(wire, "abc"...)
	wire = append(wire, h2.Bytes()...)
	wire = append(wire, "xy"...)
	ib.Feed(wire)

	gotH1, p1, err := ib.NextRecord()
	if err != nil || gotH1 != h1 || string(p1) != "abc" {
		t.Fatalf("first record: hdr=%+v payload=%q err=%v", gotH1, p1, err)
	}
	gotH2, p2, err := ib.NextRecord()
	if err != nil || gotH2 != h2 || string(p2) != "xy" {
		t.Fatalf("second record: hdr=%+v payload=%q err=%v", gotH2, p2, err)
	}
	if _, _, err := ib.NextRecord(); err != ErrPartial {
		t.Fatalf("expected ErrPartial once drained, got %v", err)
	}
}

func TestInboxRejectsOversizedRecord(t *testing.T) {
	ib := NewInbox()
	hdr := Header{Type: ContentTypeApplicationData, LegacyVersion: LegacyRecordVersion, Length: MaxCiphertext + 1}
	ib.Feed(hdr.Bytes())
	if _, _, err := ib.NextRecord(); err == nil || err == ErrPartial {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestFragmentQueueReassemblesSplitMessage(t *testing.T) {
	var q FragmentQueue
	msg := append([]byte{0x01, 0x00, 0x00, 0x04}, []byte("body")...)

	q.Push(msg[:2])
	if _, _, ok := q.Next(); ok {
		t.Fatalf("expected no message before header complete")
	}
	q.Push(msg[2:6])
	if _, _, ok := q.Next(); ok {
		t.Fatalf("expected no message before body complete")
	}
	q.Push(msg[6:])
	typ, body, ok := q.Next()
	if !ok || typ != 0x01 || string(body) != "body" {
		t.Fatalf("got typ=%d body=%q ok=%v", typ, body, ok)
	}
}

func TestFragmentQueueSplitsMultipleMessagesInOnePush(t *testing.T) {
	var q FragmentQueue
	m1 := append([]byte{0x02, 0x00, 0x00, 0x03}, []byte("one")...)
	m2 := append([]byte{0x03, 0x00, 0x00, 0x03}, []byte("two")...)
	q.Push(append(append([]byte{}, m1...), m2...))

	typ1, body1, ok1 := q.Next()
	typ2, body2, ok2 := q.Next()
	if !ok1 || !ok2 || typ1 != 0x02 || string(body1) != "one" || typ2 != 0x03 || string(body2) != "two" {
		t.Fatalf("got (%d,%q,%v) (%d,%q,%v)", typ1, body1, ok1, typ2, body2, ok2)
	}
	if q.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", q.Pending())
	}
}
