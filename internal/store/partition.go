package store

import (
	"container/list"
	"time"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

// partitionBuffer is the linked-list-of-entries implementation of the
// per-partition capability set named in spec §9: append, evict_oldest,
// evict_matching, iterate_range, byte_usage. A second, more compact
// implementation (e.g. a serialized flat buffer) could sit behind the
// same partition interface; only this one is built here (see DESIGN.md).
type partitionBuffer struct {
	records  *list.List // of *logrecord.Record, oldest at Front
	bytes    int64
	quota    int64
	oldest   uint64
	hasData  bool
}

func newPartitionBuffer(quota int64) *partitionBuffer {
	return &partitionBuffer{records: list.New(), quota: quota}
}

func (p *partitionBuffer) Append(r *logrecord.Record) {
	p.records.PushBack(r)
	p.bytes += r.Bytes()
	if !p.hasData {
		p.oldest = r.Seq
		p.hasData = true
	}
}

func (p *partitionBuffer) EvictOldest() (*logrecord.Record, bool) {
	front := p.records.Front()
	if front == nil {
		return nil, false
	}
	r := front.Value.(*logrecord.Record)
	p.records.Remove(front)
	p.bytes -= r.Bytes()
	p.updateOldest()
	return r, true
}

// EvictMatching removes the oldest record satisfying pred, scanning from
// the front. It returns false if no record matches.
func (p *partitionBuffer) EvictMatching(pred func(*logrecord.Record) bool) (*logrecord.Record, bool) {
	for e := p.records.Front(); e != nil; e = e.Next() {
		r := e.Value.(*logrecord.Record)
		if pred(r) {
			p.records.Remove(e)
			p.bytes -= r.Bytes()
			p.updateOldest()
			return r, true
		}
	}
	return nil, false
}

func (p *partitionBuffer) updateOldest() {
	front := p.records.Front()
	if front == nil {
		p.hasData = false
		return
	}
	p.oldest = front.Value.(*logrecord.Record).Seq
}

// IterateRange returns up to limit records with seq in [start, stop]
// (stop == 0 means unbounded), and the seq to resume from on the next
// call.
func (p *partitionBuffer) IterateRange(start, stop uint64, limit int) ([]*logrecord.Record, uint64) {
	out := make([]*logrecord.Record, 0, limit)
	next := start
	for e := p.records.Front(); e != nil && len(out) < limit; e = e.Next() {
		r := e.Value.(*logrecord.Record)
		if r.Seq < start {
			continue
		}
		if stop != 0 && r.Seq > stop {
			break
		}
		out = append(out, r)
		next = r.Seq + 1
	}
	return out, next
}

func (p *partitionBuffer) ByteUsage() int64 { return p.bytes }
func (p *partitionBuffer) Quota() int64     { return p.quota }
func (p *partitionBuffer) SetQuota(q int64) { p.quota = q }
func (p *partitionBuffer) Len() int         { return p.records.Len() }

// OldestSeq returns the seq of the oldest retained record, or ok=false
// if the partition is empty.
func (p *partitionBuffer) OldestSeq() (uint64, bool) {
	if !p.hasData {
		return 0, false
	}
	return p.oldest, true
}

// SeqFromTail returns the seq to resume from in order to deliver only
// the last n retained records, walking back from the newest entry. If
// fewer than n records are retained, it returns the oldest retained seq.
func (p *partitionBuffer) SeqFromTail(n int) uint64 {
	if n <= 0 {
		return 0
	}
	e := p.records.Back()
	if e == nil {
		return 0
	}
	for i := 0; i < n-1; i++ {
		prev := e.Prev()
		if prev == nil {
			break
		}
		e = prev
	}
	return e.Value.(*logrecord.Record).Seq
}

// SeqAtOrAfterTime returns the seq of the first retained record whose
// realtime timestamp is not before t, or the seq one past the newest
// retained record if none qualifies (an empty resumable range).
func (p *partitionBuffer) SeqAtOrAfterTime(t time.Time) uint64 {
	for e := p.records.Front(); e != nil; e = e.Next() {
		r := e.Value.(*logrecord.Record)
		if !r.Realtime.Before(t) {
			return r.Seq
		}
	}
	if back := p.records.Back(); back != nil {
		return back.Value.(*logrecord.Record).Seq + 1
	}
	return 0
}

func (p *partitionBuffer) Clear(pred func(*logrecord.Record) bool) []*logrecord.Record {
	var removed []*logrecord.Record
	for e := p.records.Front(); e != nil; {
		r := e.Value.(*logrecord.Record)
		next := e.Next()
		if pred == nil || pred(r) {
			p.records.Remove(e)
			p.bytes -= r.Bytes()
			removed = append(removed, r)
		}
		e = next
	}
	p.updateOldest()
	return removed
}
