// Package stats tracks per-partition, per-uid, per-pid, and per-tag
// counters so administrative queries and the pruning algorithm's
// worst-offender sweep can be answered without scanning the store,
// in the manner of the teacher's internal/engine/stats.go.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/valyala/fastjson"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

type counter struct {
	Records int64
	Bytes   int64
	Drops   int64
}

type partitionStats struct {
	total counter
	byUID map[uint32]*counter
	byPID map[int32]*counter
	byTag map[uint32]*counter // events partition only
	drops int64
}

// Statistics is the live counters for all eight partitions.
type Statistics struct {
	mu         sync.RWMutex
	partitions [logrecord.NumPartitions]*partitionStats
}

// New returns an empty Statistics.
func New() *Statistics {
	s := &Statistics{}
	for i := range s.partitions {
		s.partitions[i] = &partitionStats{
			byUID: make(map[uint32]*counter),
			byPID: make(map[int32]*counter),
			byTag: make(map[uint32]*counter),
		}
	}
	return s
}

// Add accounts for a newly appended record.
func (s *Statistics) Add(r *logrecord.Record) {
	s.adjust(r, 1)
}

// Sub accounts for an evicted record.
func (s *Statistics) Sub(r *logrecord.Record) {
	s.adjust(r, -1)
}

func (s *Statistics) adjust(r *logrecord.Record, sign int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partitions[r.Partition]
	p.total.Records += sign
	p.total.Bytes += sign * r.Bytes()

	uc := p.byUID[r.UID]
	if uc == nil {
		uc = &counter{}
		p.byUID[r.UID] = uc
	}
	uc.Records += sign
	uc.Bytes += sign * r.Bytes()
	if uc.Records <= 0 && uc.Drops == 0 {
		delete(p.byUID, r.UID)
	}

	pc := p.byPID[r.PID]
	if pc == nil {
		pc = &counter{}
		p.byPID[r.PID] = pc
	}
	pc.Records += sign
	pc.Bytes += sign * r.Bytes()
	if pc.Records <= 0 && pc.Drops == 0 {
		delete(p.byPID, r.PID)
	}

	if tag, ok := r.EventTag(); ok {
		tc := p.byTag[tag]
		if tc == nil {
			tc = &counter{}
			p.byTag[tag] = tc
		}
		tc.Records += sign
		tc.Bytes += sign * r.Bytes()
		if tc.Records <= 0 {
			delete(p.byTag, tag)
		}
	}
}

// AddEvictionDrop records that r was evicted by the pruning algorithm to
// hold its partition under quota, independent of whether any subscriber
// ever observed it. This is the sole path that increments drop
// statistics; Subscription's own lag counter is a separate, per-reader
// metric (see Subscription.Drops).
func (s *Statistics) AddEvictionDrop(r *logrecord.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partitions[r.Partition]
	p.drops++

	uc := p.byUID[r.UID]
	if uc == nil {
		uc = &counter{}
		p.byUID[r.UID] = uc
	}
	uc.Drops++

	pc := p.byPID[r.PID]
	if pc == nil {
		pc = &counter{}
		p.byPID[r.PID] = pc
	}
	pc.Drops++
}

// UIDUsage is one row of a worst-offender query result.
type UIDUsage struct {
	UID     uint32
	Bytes   int64
	Records int64
	Drops   int64
}

// TopUIDs returns the k heaviest uids in partition, sorted by bytes
// descending.
func (s *Statistics) TopUIDs(partition logrecord.Partition, k int) []UIDUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.partitions[partition]
	rows := make([]UIDUsage, 0, len(p.byUID))
	for uid, c := range p.byUID {
		rows = append(rows, UIDUsage{UID: uid, Bytes: c.Bytes, Records: c.Records, Drops: c.Drops})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Bytes > rows[j].Bytes })
	if k >= 0 && len(rows) > k {
		rows = rows[:k]
	}
	return rows
}

// TagUsage is one row of a per-event-tag usage query result.
type TagUsage struct {
	Tag     uint32
	Bytes   int64
	Records int64
}

// TopTags returns the k heaviest event tags in the events partition,
// sorted by bytes descending, per spec.md §4.3's per-tag table.
func (s *Statistics) TopTags(k int) []TagUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.partitions[logrecord.Events]
	rows := make([]TagUsage, 0, len(p.byTag))
	for tag, c := range p.byTag {
		rows = append(rows, TagUsage{Tag: tag, Bytes: c.Bytes, Records: c.Records})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Bytes > rows[j].Bytes })
	if k >= 0 && len(rows) > k {
		rows = rows[:k]
	}
	return rows
}

// Totals returns the aggregate record count and byte usage for a
// partition.
func (s *Statistics) Totals(partition logrecord.Partition) (records, bytes, drops int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.partitions[partition]
	return p.total.Records, p.total.Bytes, p.drops
}

// DumpText renders a newline-terminated text table across the
// partitions selected by mask, in the teacher's plain-table style.
func (s *Statistics) DumpText(mask uint8) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	for part := logrecord.Partition(0); int(part) < logrecord.NumPartitions; part++ {
		if mask&part.Mask() == 0 {
			continue
		}
		p := s.partitions[part]
		fmt.Fprintf(&sb, "%s: records=%d bytes=%d drops=%d\n", part, p.total.Records, p.total.Bytes, p.drops)
		uids := make([]uint32, 0, len(p.byUID))
		for uid := range p.byUID {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return p.byUID[uids[i]].Bytes > p.byUID[uids[j]].Bytes })
		for _, uid := range uids {
			c := p.byUID[uid]
			fmt.Fprintf(&sb, "  uid=%d records=%d bytes=%d drops=%d\n", uid, c.Records, c.Bytes, c.Drops)
		}
		if part == logrecord.Events {
			tags := make([]uint32, 0, len(p.byTag))
			for tag := range p.byTag {
				tags = append(tags, tag)
			}
			sort.Slice(tags, func(i, j int) bool { return p.byTag[tags[i]].Bytes > p.byTag[tags[j]].Bytes })
			for _, tag := range tags {
				c := p.byTag[tag]
				fmt.Fprintf(&sb, "  tag=%d records=%d bytes=%d\n", tag, c.Records, c.Bytes)
			}
		}
	}
	return sb.String()
}

// DumpJSON renders the same data as DumpText using fastjson, for
// getStatistics' --json reply mode.
func (s *Statistics) DumpJSON(mask uint8) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var arena fastjson.Arena
	root := arena.NewArray()
	idx := 0
	for part := logrecord.Partition(0); int(part) < logrecord.NumPartitions; part++ {
		if mask&part.Mask() == 0 {
			continue
		}
		p := s.partitions[part]
		obj := arena.NewObject()
		obj.Set("partition", arena.NewString(part.String()))
		obj.Set("records", arena.NewNumberInt(int(p.total.Records)))
		obj.Set("bytes", arena.NewNumberInt(int(p.total.Bytes)))
		obj.Set("drops", arena.NewNumberInt(int(p.drops)))

		uidArr := arena.NewArray()
		uids := make([]uint32, 0, len(p.byUID))
		for uid := range p.byUID {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return p.byUID[uids[i]].Bytes > p.byUID[uids[j]].Bytes })
		for i, uid := range uids {
			c := p.byUID[uid]
			uo := arena.NewObject()
			uo.Set("uid", arena.NewNumberInt(int(uid)))
			uo.Set("records", arena.NewNumberInt(int(c.Records)))
			uo.Set("bytes", arena.NewNumberInt(int(c.Bytes)))
			uo.Set("drops", arena.NewNumberInt(int(c.Drops)))
			uidArr.SetArrayItem(i, uo)
		}
		obj.Set("uids", uidArr)

		if part == logrecord.Events {
			tagArr := arena.NewArray()
			tags := make([]uint32, 0, len(p.byTag))
			for tag := range p.byTag {
				tags = append(tags, tag)
			}
			sort.Slice(tags, func(i, j int) bool { return p.byTag[tags[i]].Bytes > p.byTag[tags[j]].Bytes })
			for i, tag := range tags {
				c := p.byTag[tag]
				to := arena.NewObject()
				to.Set("tag", arena.NewNumberInt(int(tag)))
				to.Set("records", arena.NewNumberInt(int(c.Records)))
				to.Set("bytes", arena.NewNumberInt(int(c.Bytes)))
				tagArr.SetArrayItem(i, to)
			}
			obj.Set("tags", tagArr)
		}

		root.SetArrayItem(idx, obj)
		idx++
	}
	return root.MarshalTo(nil)
}
