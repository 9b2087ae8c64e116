package wire

import (
	"testing"

	"github.com/meshpart/meshpart/pkg/domain"
)

func TestRecordStream(t *testing.T) {
	// One buffer carries a mix of record types; framing makes each record
	// self-delimiting.
	var buf []byte
	var err error
	buf, err = AppendRecord(buf, Announcement{
		Key:      domain.EntityKey{Kind: domain.KindCell, ID: 7},
		NewOwner: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	buf, err = AppendRecord(buf, Invalidation{
		Key: domain.EntityKey{Kind: domain.KindVertex, ID: 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(buf)
	var ann Announcement
	ok, err := r.Next(&ann)
	if err != nil || !ok {
		t.Fatalf("first record: ok=%v err=%v", ok, err)
	}
	if ann.NewOwner != 2 || ann.Key.ID != 7 {
		t.Errorf("announcement round trip: %+v", ann)
	}

	var inv Invalidation
	ok, err = r.Next(&inv)
	if err != nil || !ok {
		t.Fatalf("second record: ok=%v err=%v", ok, err)
	}
	if inv.Key != (domain.EntityKey{Kind: domain.KindVertex, ID: 3}) {
		t.Errorf("invalidation round trip: %+v", inv)
	}

	ok, err = r.Next(&inv)
	if ok || err != nil {
		t.Errorf("clean end of stream: ok=%v err=%v", ok, err)
	}
}

func TestReaderEmptyBuffer(t *testing.T) {
	var v Invalidation
	ok, err := NewReader(nil).Next(&v)
	if ok || err != nil {
		t.Errorf("empty buffer must be a clean end: ok=%v err=%v", ok, err)
	}
}

func TestReaderTruncation(t *testing.T) {
	buf, err := AppendRecord(nil, Invalidation{Key: domain.EntityKey{Kind: domain.KindEdge, ID: 1}})
	if err != nil {
		t.Fatal(err)
	}

	// Cut the prefix short.
	if _, err := NewReader(buf[:2]).Next(&Invalidation{}); err == nil {
		t.Error("expected error for truncated prefix")
	}
	// Cut the body short.
	if _, err := NewReader(buf[:len(buf)-1]).Next(&Invalidation{}); err == nil {
		t.Error("expected error for truncated body")
	}
}
