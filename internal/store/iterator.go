package store

import (
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

// Iterator yields records across a set of partitions in strictly
// increasing sequence order, re-seeking under a short read lock per
// batch, in the manner of the teacher's storage.LogIterator.
type Iterator struct {
	store    *LogStore
	mask     uint8
	stopSeq  uint64
	cursors  [logrecord.NumPartitions]uint64
	buf      []*logrecord.Record
	pos      int
	exhausted bool
}

const iteratorBatch = 128

// Snapshot returns an Iterator over the partitions selected by mask,
// starting at startSeq (inclusive) and stopping at stopSeq (0 means
// unbounded / tail to whatever is current at read time).
func (s *LogStore) Snapshot(mask uint8, startSeq, stopSeq uint64) *Iterator {
	it := &Iterator{store: s, mask: mask, stopSeq: stopSeq}
	for p := 0; p < logrecord.NumPartitions; p++ {
		if mask&(1<<uint(p)) != 0 {
			it.cursors[p] = startSeq
		}
	}
	return it
}

// Cursors returns the iterator's current per-partition resume points,
// used by a tail subscription to build the next Iterator after a wakeup.
func (it *Iterator) Cursors() [logrecord.NumPartitions]uint64 { return it.cursors }

// SeedCursors overrides the iterator's per-partition starting points,
// used by a subscription that tracks its own resume point per
// partition rather than one uniform start seq.
func (it *Iterator) SeedCursors(cursors [logrecord.NumPartitions]uint64) {
	for p := 0; p < logrecord.NumPartitions; p++ {
		if it.mask&(1<<uint(p)) != 0 {
			it.cursors[p] = cursors[p]
		}
	}
}

// Next advances to the next record in sequence order, refilling its
// internal batch from the store as needed. It returns false once no
// further records are available without blocking.
func (it *Iterator) Next() (*logrecord.Record, bool) {
	if it.pos < len(it.buf) {
		r := it.buf[it.pos]
		it.pos++
		return r, true
	}
	if it.exhausted {
		return nil, false
	}
	it.refill()
	if it.pos >= len(it.buf) {
		it.exhausted = true
		return nil, false
	}
	r := it.buf[it.pos]
	it.pos++
	return r, true
}

func (it *Iterator) refill() {
	it.store.mu.RLock()
	defer it.store.mu.RUnlock()

	type partResult struct {
		part logrecord.Partition
		recs []*logrecord.Record
		idx  int
	}
	var parts []*partResult
	for p := 0; p < logrecord.NumPartitions; p++ {
		if it.mask&(1<<uint(p)) == 0 {
			continue
		}
		buf := it.store.partitions[p]
		recs, next := buf.IterateRange(it.cursors[p], it.stopSeq, iteratorBatch)
		it.cursors[p] = next
		if len(recs) > 0 {
			parts = append(parts, &partResult{part: logrecord.Partition(p), recs: recs})
		}
	}

	// A partition whose batch came back full may hold further records
	// below another partition's batch tail, so merge only up to the
	// smallest full batch's last seq; the rest is re-read next refill.
	limit := ^uint64(0)
	for _, p := range parts {
		if last := p.recs[len(p.recs)-1].Seq; len(p.recs) == iteratorBatch && last < limit {
			limit = last
		}
	}

	merged := make([]*logrecord.Record, 0, iteratorBatch)
	for {
		var best *partResult
		for _, p := range parts {
			if p.idx >= len(p.recs) {
				continue
			}
			if best == nil || p.recs[p.idx].Seq < best.recs[best.idx].Seq {
				best = p
			}
		}
		if best == nil || best.recs[best.idx].Seq > limit {
			break
		}
		merged = append(merged, best.recs[best.idx])
		best.idx++
	}
	for _, p := range parts {
		if p.idx < len(p.recs) {
			it.cursors[p.part] = p.recs[p.idx].Seq
		}
	}

	it.buf = merged
	it.pos = 0
}
