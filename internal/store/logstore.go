// Package store implements the bounded, in-memory, multi-partition log
// store: LogStore, its pruning algorithm, and the capability-set
// partition buffers it runs on top of.
package store

import (
	"sync"
	"time"

	"github.com/Lunaris-AOSP/system-logging/internal/clock"
	"github.com/Lunaris-AOSP/system-logging/internal/logerr"
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/prune"
	"github.com/Lunaris-AOSP/system-logging/internal/stats"
)

// Notifier is signaled once per successful write so subscribers can wake
// up and check for new data. Implemented by internal/reader.Registry;
// kept as a small interface here to avoid an import cycle.
type Notifier interface {
	Signal()
}

// SecurityPolicy decides whether a uid may write to the security
// partition (Open Question decision #3).
type SecurityPolicy interface {
	AllowSecurityWrite(uid uint32) bool
}

// DefaultSecurityPolicy allows writes from uids below Ceiling (2000 when
// Ceiling is zero).
type DefaultSecurityPolicy struct{ Ceiling uint32 }

func (d DefaultSecurityPolicy) AllowSecurityWrite(uid uint32) bool {
	ceiling := d.Ceiling
	if ceiling == 0 {
		ceiling = 2000
	}
	return uid < ceiling
}

// LogStore is the bounded multi-partition store.
type LogStore struct {
	mu sync.RWMutex

	partitions [logrecord.NumPartitions]*partitionBuffer
	states     [logrecord.NumPartitions]partitionState

	nextSeq   uint64
	stats     *stats.Statistics
	pruneList *prune.List
	clock     clock.Source
	notifier  Notifier
	security  SecurityPolicy
}

// Quotas maps partition names to byte quotas, used by New.
type Quotas map[logrecord.Partition]int64

// New builds a LogStore with the given per-partition quotas.
func New(quotas Quotas, st *stats.Statistics, pl *prune.List, clk clock.Source) *LogStore {
	s := &LogStore{
		stats:     st,
		pruneList: pl,
		clock:     clk,
		security:  DefaultSecurityPolicy{},
	}
	for p := 0; p < logrecord.NumPartitions; p++ {
		q := quotas[logrecord.Partition(p)]
		if q <= 0 {
			q = 256 * 1024
		}
		s.partitions[p] = newPartitionBuffer(q)
	}
	return s
}

// SetNotifier wires the reader registry wakeup hook.
func (s *LogStore) SetNotifier(n Notifier) { s.notifier = n }

// SetSecurityPolicy overrides the default security-partition write
// policy.
func (s *LogStore) SetSecurityPolicy(p SecurityPolicy) { s.security = p }

// SetPruneList swaps the active prune list, used by setPruneList.
func (s *LogStore) SetPruneList(pl *prune.List) {
	s.mu.Lock()
	s.pruneList.Set(pl)
	s.mu.Unlock()
}

// PruneList returns the active prune list (read-only use expected).
func (s *LogStore) PruneList() *prune.List { return s.pruneList }

// Stats returns the statistics collector backing this store.
func (s *LogStore) Stats() *stats.Statistics { return s.stats }

// Log appends one record, enforcing payload size and security-partition
// policy, then prunes the partition if it now exceeds quota. evicted
// reports whether this write's own pruning pass caused any record (not
// necessarily this one) to be dropped, per logerr.Overflow's contract:
// the write itself still succeeds, evicted is reported as a plain
// value rather than an error.
func (s *LogStore) Log(partition logrecord.Partition, uid uint32, pid, tid int32, payload []byte) (seq uint64, evicted bool, err error) {
	if int(partition) >= logrecord.NumPartitions {
		return 0, false, logerr.New(logerr.InvalidArgument, "LogStore.Log", "unknown partition")
	}
	if len(payload) == 0 || len(payload) > logrecord.MaxPayload {
		return 0, false, logerr.New(logerr.InvalidArgument, "LogStore.Log", "payload out of bounds")
	}
	if partition == logrecord.Security && s.security != nil && !s.security.AllowSecurityWrite(uid) {
		return 0, false, logerr.New(logerr.PermissionDenied, "LogStore.Log", "uid not permitted on security partition")
	}

	s.mu.Lock()

	seq = s.nextSeq + 1
	s.nextSeq = seq

	rec := &logrecord.Record{
		Partition: partition,
		Seq:       seq,
		Realtime:  s.clock.Now(),
		UID:       uid,
		PID:       pid,
		TID:       tid,
		Payload:   payload,
	}

	buf := s.partitions[partition]
	buf.Append(rec)
	s.stats.Add(rec)

	if buf.ByteUsage() >= buf.Quota() {
		s.states[partition] = stateAtQuota
		evicted = s.pruneLocked(partition)
	} else {
		s.states[partition] = stateFilling
	}

	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Signal()
	}
	return seq, evicted, nil
}

// pruneLocked runs the four-step pruning algorithm on partition,
// reporting whether it evicted anything. Caller must hold s.mu for
// writing.
func (s *LogStore) pruneLocked(partition logrecord.Partition) bool {
	buf := s.partitions[partition]
	s.states[partition] = stateEvicting

	anyEvicted := false
	evict := func(r *logrecord.Record) {
		s.stats.Sub(r)
		s.stats.AddEvictionDrop(r)
		anyEvicted = true
	}

	// Step 1: allow-list sweep. Evict explicitly denied records first,
	// regardless of owner weight.
	for buf.ByteUsage() > buf.Quota() {
		r, ok := buf.EvictMatching(func(r *logrecord.Record) bool {
			return s.pruneList.IsDenied(partition, r.UID, r.PID)
		})
		if !ok {
			break
		}
		evict(r)
	}

	// Step 2: worst-offender sweep. Evict the heaviest non-allow-listed
	// uid's oldest records until it falls at or below the runner-up, or
	// below a 10% floor of quota, or the partition clears quota.
	floor := buf.Quota() / 10
	for buf.ByteUsage() > buf.Quota() {
		candidates := s.worstOffenders(partition)
		if len(candidates) == 0 {
			break
		}
		worst := candidates[0]
		if s.pruneList.IsAllowed(partition, worst.UID) {
			break
		}
		if worst.Bytes < floor {
			break
		}
		if len(candidates) > 1 && worst.Bytes <= candidates[1].Bytes {
			break
		}

		r, ok := buf.EvictMatching(func(r *logrecord.Record) bool { return r.UID == worst.UID })
		if !ok {
			break
		}
		evict(r)
	}

	// Step 3: FIFO fallback, skipping allow-listed owners.
	for buf.ByteUsage() > buf.Quota() {
		r, ok := buf.EvictMatching(func(r *logrecord.Record) bool {
			return !s.pruneList.IsAllowed(partition, r.UID)
		})
		if !ok {
			break
		}
		evict(r)
	}

	// Step 4: hard evict, regardless of allow-list, as a last resort so
	// the partition never exceeds its quota indefinitely.
	for buf.ByteUsage() > buf.Quota() {
		r, ok := buf.EvictOldest()
		if !ok {
			break
		}
		evict(r)
	}

	if buf.ByteUsage() >= buf.Quota() {
		s.states[partition] = stateAtQuota
	} else if buf.Len() == 0 {
		s.states[partition] = stateEmpty
	} else {
		s.states[partition] = stateFilling
	}
	return anyEvicted
}

func (s *LogStore) worstOffenders(partition logrecord.Partition) []stats.UIDUsage {
	all := s.stats.TopUIDs(partition, -1)
	out := make([]stats.UIDUsage, 0, len(all))
	for _, u := range all {
		if s.pruneList.IsAllowed(partition, u.UID) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Clear removes all records from partition, optionally limited to a
// single uid (nil means every record).
func (s *LogStore) Clear(partition logrecord.Partition, uid *uint32) error {
	if int(partition) >= logrecord.NumPartitions {
		return logerr.New(logerr.InvalidArgument, "LogStore.Clear", "unknown partition")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.partitions[partition]
	removed := buf.Clear(func(r *logrecord.Record) bool {
		return uid == nil || r.UID == *uid
	})
	for _, r := range removed {
		s.stats.Sub(r)
	}
	if buf.Len() == 0 {
		s.states[partition] = stateEmpty
	}
	return nil
}

// Quota returns the current byte quota for partition.
func (s *LogStore) Quota(partition logrecord.Partition) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partitions[partition].Quota()
}

// SetQuota updates the byte quota for partition and prunes immediately
// if the new quota is already exceeded.
func (s *LogStore) SetQuota(partition logrecord.Partition, bytes int64) error {
	if bytes < 64*1024 || bytes > 256*1024*1024 {
		return logerr.New(logerr.InvalidArgument, "LogStore.SetQuota", "quota out of [64KiB, 256MiB]")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[partition].SetQuota(bytes)
	if s.partitions[partition].ByteUsage() > bytes {
		_ = s.pruneLocked(partition)
	}
	return nil
}

// Usage returns the current byte usage for partition.
func (s *LogStore) Usage(partition logrecord.Partition) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partitions[partition].ByteUsage()
}

// State returns the current lifecycle state of partition, for
// diagnostics.
func (s *LogStore) State(partition logrecord.Partition) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[partition].String()
}

// HeadSeq returns the current sequence counter, the seq of the most
// recently appended record across all partitions.
func (s *LogStore) HeadSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq
}

// OldestSeq returns the oldest retained seq for partition, or ok=false
// if empty.
func (s *LogStore) OldestSeq(partition logrecord.Partition) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partitions[partition].OldestSeq()
}

// TailStart returns the seq to resume from in order to see only the
// last n retained records of partition, implementing egress's
// `tail=<n>` request field (spec.md §6).
func (s *LogStore) TailStart(partition logrecord.Partition, n int) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partitions[partition].SeqFromTail(n)
}

// SeqAtOrAfterTime returns the seq to resume from in order to see only
// records at or after t, implementing egress's `start=<sec>.<nsec>`
// request field.
func (s *LogStore) SeqAtOrAfterTime(partition logrecord.Partition, t time.Time) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partitions[partition].SeqAtOrAfterTime(t)
}
