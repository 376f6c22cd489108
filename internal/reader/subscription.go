package reader

import (
	"context"
	"fmt"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
)

// Sink receives delivered records. EgressEndpoint implements Sink over
// the wire framing codec.
type Sink interface {
	Write(r *logrecord.Record) error
}

// Subscription is one active reader: a filter plus delivery cursors over
// the log store.
type Subscription struct {
	handle   string
	registry *Registry
	store    *store.LogStore
	filter   logrecord.Filter

	cursors [logrecord.NumPartitions]uint64
	drops   int64
}

// Subscribe creates and registers a new Subscription against st,
// honoring the registry's subscription cap.
func Subscribe(registry *Registry, st *store.LogStore, filter logrecord.Filter) (*Subscription, error) {
	sub := &Subscription{registry: registry, store: st, filter: filter}
	if err := registry.register(sub); err != nil {
		return nil, err
	}
	for p := 0; p < logrecord.NumPartitions; p++ {
		if filter.PartitionMask&(1<<uint(p)) == 0 {
			continue
		}
		partition := logrecord.Partition(p)
		switch {
		case filter.TailCount > 0:
			sub.cursors[p] = st.TailStart(partition, filter.TailCount)
		case !filter.StartTime.IsZero():
			sub.cursors[p] = st.SeqAtOrAfterTime(partition, filter.StartTime)
		default:
			sub.cursors[p] = filter.StartSeq
		}
	}
	return sub, nil
}

// Handle returns the subscription's opaque id.
func (s *Subscription) Handle() string { return s.handle }

// Close releases the subscription's registry slot.
func (s *Subscription) Close() {
	s.registry.unregister(s.handle)
}

// Drops returns the number of records this subscription has missed to
// pruning since it was created.
func (s *Subscription) Drops() int64 { return s.drops }

// Pump delivers matching records to sink until ctx is cancelled, the
// store has no more data and the subscription is not in tail mode, or
// sink returns an error (treated as the peer having gone away).
func (s *Subscription) Pump(ctx context.Context, sink Sink) error {
	for {
		delivered, err := s.drainOnce(sink)
		if err != nil {
			return err
		}
		if !s.filter.Tail {
			return nil
		}
		if delivered {
			continue // more may be immediately available
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.registry.waitChan():
		}
	}
}

// drainOnce delivers everything currently available across the
// subscription's masked partitions, advancing cursors and accounting
// for drops on gaps. It reports whether anything was delivered.
func (s *Subscription) drainOnce(sink Sink) (bool, error) {
	delivered, err := s.accountGaps(sink)
	if err != nil {
		return delivered, err
	}

	it := s.seededSnapshot()

	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		if !s.filter.Matches(r) {
			s.advance(r)
			continue
		}
		if err := sink.Write(r); err != nil {
			s.advance(r)
			return delivered, err
		}
		s.advance(r)
		delivered = true
	}
	return delivered, nil
}

// seededSnapshot builds an Iterator whose per-partition cursors match
// this subscription's own resume points, since store.Snapshot only
// takes a single uniform start seq.
func (s *Subscription) seededSnapshot() *store.Iterator {
	it := s.store.Snapshot(s.filter.PartitionMask, 0, s.filter.StopSeq)
	it.SeedCursors(s.cursors)
	return it
}

func (s *Subscription) advance(r *logrecord.Record) {
	s.cursors[r.Partition] = r.Seq + 1
}

// accountGaps advances any cursor that has fallen behind its
// partition's oldest retained record, incrementing this subscription's
// own lag counter by the gap size. The store's own eviction path (see
// stats.Statistics.AddEvictionDrop) is the sole source of the global
// drop statistics; this is a per-reader metric only, so it is not also
// added there. When the subscription's filter requests it, a synthetic
// chatty record describing the gap is delivered to sink, in the manner
// of logcat's "chatty" elision notices.
func (s *Subscription) accountGaps(sink Sink) (bool, error) {
	delivered := false
	for p := 0; p < logrecord.NumPartitions; p++ {
		if s.filter.PartitionMask&(1<<uint(p)) == 0 {
			continue
		}
		partition := logrecord.Partition(p)
		oldest, ok := s.store.OldestSeq(partition)
		if !ok {
			continue
		}
		// A cursor of 0 means "never advanced": sequence numbers start
		// at 1, so its implicit starting point is seq 1, not 0. Without
		// this floor, a fresh subscription against a nonempty,
		// never-pruned partition (oldest == 1) would be charged a
		// phantom drop of 1 on its very first drain.
		cursor := s.cursors[p]
		if cursor == 0 {
			cursor = 1
		}
		if cursor < oldest {
			gap := oldest - cursor
			s.drops += int64(gap)
			s.cursors[p] = oldest
			if s.filter.ReportChatty {
				if err := sink.Write(chattyRecord(partition, gap)); err != nil {
					return delivered, err
				}
				delivered = true
			}
		}
	}
	return delivered, nil
}

// chattyRecord builds the synthetic record reported in place of n
// records pruned out from under a subscriber before it could see them.
func chattyRecord(partition logrecord.Partition, n uint64) *logrecord.Record {
	return &logrecord.Record{
		Partition: partition,
		Payload:   []byte(fmt.Sprintf("chatty: %d lines suppressed", n)),
	}
}
