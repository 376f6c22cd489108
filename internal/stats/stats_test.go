package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

func rec(uid uint32, partition logrecord.Partition, payload string) *logrecord.Record {
	return &logrecord.Record{
		Partition: partition,
		Realtime:  time.Unix(1700000000, 0),
		UID:       uid,
		Payload:   []byte(payload),
	}
}

func TestAddAndTotals(t *testing.T) {
	s := New()
	r1 := rec(100, logrecord.Main, "hello")
	r2 := rec(200, logrecord.Main, "world!")
	s.Add(r1)
	s.Add(r2)

	records, bytes, drops := s.Totals(logrecord.Main)
	if records != 2 {
		t.Errorf("records = %d, want 2", records)
	}
	want := r1.Bytes() + r2.Bytes()
	if bytes != want {
		t.Errorf("bytes = %d, want %d", bytes, want)
	}
	if drops != 0 {
		t.Errorf("drops = %d, want 0", drops)
	}
}

func TestSubRemovesAccounting(t *testing.T) {
	s := New()
	r := rec(100, logrecord.Main, "x")
	s.Add(r)
	s.Sub(r)

	records, bytes, _ := s.Totals(logrecord.Main)
	if records != 0 || bytes != 0 {
		t.Errorf("expected zeroed totals after Sub, got records=%d bytes=%d", records, bytes)
	}
	top := s.TopUIDs(logrecord.Main, -1)
	if len(top) != 0 {
		t.Errorf("expected no uids tracked after Sub, got %v", top)
	}
}

func TestTopUIDsSortedDescending(t *testing.T) {
	s := New()
	s.Add(rec(1, logrecord.Main, "short"))
	s.Add(rec(2, logrecord.Main, "a much longer payload here"))
	s.Add(rec(3, logrecord.Main, "mid length payload"))

	top := s.TopUIDs(logrecord.Main, -1)
	if len(top) != 3 {
		t.Fatalf("expected 3 uids, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Bytes > top[i-1].Bytes {
			t.Errorf("not sorted descending: %v", top)
		}
	}
	if top[0].UID != 2 {
		t.Errorf("expected uid 2 (longest payload) first, got %d", top[0].UID)
	}
}

func TestAddEvictionDropIncrementsPartitionAndUID(t *testing.T) {
	s := New()
	r1 := rec(100, logrecord.Main, "x")
	r1.PID = 7
	r2 := rec(100, logrecord.Main, "y")
	r2.PID = 7
	s.Add(r1)
	s.Add(r2)
	s.Sub(r1)
	s.AddEvictionDrop(r1)
	s.Sub(r2)
	s.AddEvictionDrop(r2)

	_, _, drops := s.Totals(logrecord.Main)
	if drops != 2 {
		t.Errorf("partition drops = %d, want 2", drops)
	}

	top := s.TopUIDs(logrecord.Main, -1)
	if len(top) != 1 {
		t.Fatalf("expected uid 100's counter to survive eviction for its drop count, got %v", top)
	}
	if top[0].Drops != 2 {
		t.Errorf("uid 100 drops = %d, want 2", top[0].Drops)
	}
	if top[0].Records != 0 {
		t.Errorf("uid 100 records = %d, want 0 after full eviction", top[0].Records)
	}
}

func TestEventTagAccounting(t *testing.T) {
	s := New()
	r := &logrecord.Record{
		Partition: logrecord.Events,
		Realtime:  time.Unix(1700000000, 0),
		UID:       1,
		Payload:   append([]byte{42, 0, 0, 0}, "payload"...),
	}
	s.Add(r)

	top := s.TopTags(-1)
	if len(top) != 1 {
		t.Fatalf("expected one tag tracked, got %v", top)
	}
	if top[0].Tag != 42 {
		t.Errorf("tag = %d, want 42", top[0].Tag)
	}
	if top[0].Records != 1 {
		t.Errorf("tag records = %d, want 1", top[0].Records)
	}

	s.Sub(r)
	if top := s.TopTags(-1); len(top) != 0 {
		t.Errorf("expected no tags tracked after Sub, got %v", top)
	}
}

func TestDumpTextContainsPartitionNames(t *testing.T) {
	s := New()
	s.Add(rec(1, logrecord.Kernel, "boot"))
	text := s.DumpText(0xFF)
	if text == "" {
		t.Fatal("expected non-empty dump")
	}
}

func TestDumpTextHonorsMask(t *testing.T) {
	s := New()
	s.Add(rec(1, logrecord.Main, "m"))
	s.Add(rec(2, logrecord.Kernel, "k"))

	text := s.DumpText(logrecord.Main.Mask())
	if !strings.Contains(text, "main:") {
		t.Errorf("expected main in masked dump, got %q", text)
	}
	if strings.Contains(text, "kernel:") {
		t.Errorf("expected kernel excluded from masked dump, got %q", text)
	}
}
