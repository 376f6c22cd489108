package reader

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Lunaris-AOSP/system-logging/internal/clock"
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/prune"
	"github.com/Lunaris-AOSP/system-logging/internal/stats"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
)

type recordingSink struct {
	got []*logrecord.Record
}

func (s *recordingSink) Write(r *logrecord.Record) error {
	s.got = append(s.got, r)
	return nil
}

func newTestStore(t *testing.T) *store.LogStore {
	t.Helper()
	st := stats.New()
	pl := prune.NewEmpty()
	clk := clock.Fake(time.Unix(1700000000, 0))
	quotas := store.Quotas{logrecord.Main: 1024 * 1024}
	return store.New(quotas, st, pl, clk)
}

func TestSubscribeDumpMode(t *testing.T) {
	s := newTestStore(t)
	s.Log(logrecord.Main, 1, 1, 1, []byte("a"))
	s.Log(logrecord.Main, 1, 1, 1, []byte("b"))

	registry := NewRegistry(8)
	sub, err := Subscribe(registry, s, logrecord.Filter{PartitionMask: logrecord.Main.Mask()})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sub.Pump(ctx, sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if len(sink.got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(sink.got))
	}
}

func TestSubscriptionCapEnforced(t *testing.T) {
	s := newTestStore(t)
	registry := NewRegistry(1)
	_, err := Subscribe(registry, s, logrecord.Filter{PartitionMask: logrecord.Main.Mask()})
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if _, err := Subscribe(registry, s, logrecord.Filter{PartitionMask: logrecord.Main.Mask()}); err == nil {
		t.Fatal("expected resource error past the subscription cap")
	}
}

func TestTailModeDeliversNewWrites(t *testing.T) {
	s := newTestStore(t)
	registry := NewRegistry(8)
	s.SetNotifier(registry)
	sub, err := Subscribe(registry, s, logrecord.Filter{PartitionMask: logrecord.Main.Mask(), Tail: true})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Pump(ctx, sink) }()

	time.Sleep(20 * time.Millisecond)
	s.Log(logrecord.Main, 1, 1, 1, []byte("tailed"))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if len(sink.got) != 1 {
		t.Fatalf("expected 1 tailed record, got %d", len(sink.got))
	}
	if string(sink.got[0].Payload) != "tailed" {
		t.Errorf("unexpected payload: %q", sink.got[0].Payload)
	}
}

func TestAccountGapsOnEviction(t *testing.T) {
	quota := int64(200)
	st := stats.New()
	pl := prune.NewEmpty()
	clk := clock.Fake(time.Unix(1700000000, 0))
	s := store.New(store.Quotas{logrecord.Main: quota}, st, pl, clk)

	registry := NewRegistry(8)
	sub, err := Subscribe(registry, s, logrecord.Filter{PartitionMask: logrecord.Main.Mask()})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	payload := make([]byte, 50)
	for i := 0; i < 20; i++ {
		s.Log(logrecord.Main, 1, int32(i), int32(i), payload)
	}

	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sub.Pump(ctx, sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	if sub.Drops() == 0 {
		t.Error("expected nonzero drops after records were evicted ahead of the subscription's cursor")
	}
}

func TestReportChattyEmitsSyntheticRecord(t *testing.T) {
	quota := int64(200)
	st := stats.New()
	pl := prune.NewEmpty()
	clk := clock.Fake(time.Unix(1700000000, 0))
	s := store.New(store.Quotas{logrecord.Main: quota}, st, pl, clk)

	registry := NewRegistry(8)
	sub, err := Subscribe(registry, s, logrecord.Filter{PartitionMask: logrecord.Main.Mask(), ReportChatty: true})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	payload := make([]byte, 50)
	for i := 0; i < 20; i++ {
		s.Log(logrecord.Main, 1, int32(i), int32(i), payload)
	}

	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sub.Pump(ctx, sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	found := false
	for _, r := range sink.got {
		if strings.Contains(string(r.Payload), "chatty:") {
			found = true
		}
	}
	if !found {
		t.Error("expected a synthetic chatty record describing the suppressed gap")
	}
}
