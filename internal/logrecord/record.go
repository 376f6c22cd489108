// Package logrecord defines the record and partition types shared by the
// store, wire codecs, and endpoints.
package logrecord

import (
	"encoding/binary"
	"time"
)

// Partition identifies one of the eight fixed log partitions.
type Partition uint8

const (
	Main Partition = iota
	Radio
	Events
	System
	Crash
	Stats
	Security
	Kernel

	NumPartitions = int(Kernel) + 1
)

var partitionNames = [NumPartitions]string{
	Main:     "main",
	Radio:    "radio",
	Events:   "events",
	System:   "system",
	Crash:    "crash",
	Stats:    "stats",
	Security: "security",
	Kernel:   "kernel",
}

// String returns the lowercase partition name used on the wire and in
// administrative commands.
func (p Partition) String() string {
	if int(p) < NumPartitions {
		return partitionNames[p]
	}
	return "unknown"
}

// Mask returns the single-bit mask for this partition, as used in
// subscription filters.
func (p Partition) Mask() uint8 {
	return 1 << uint8(p)
}

// ParsePartition resolves a partition name to its identifier.
func ParsePartition(name string) (Partition, bool) {
	for i, n := range partitionNames {
		if n == name {
			return Partition(i), true
		}
	}
	return 0, false
}

// MaxPayload is the largest payload a single record may carry.
const MaxPayload = 4096

// TrustedUID is the uid internal collaborators (the audit and kernel-log
// readers) write as, analogous to AOSP's AID_LOGD. It sits below every
// SecurityPolicy's default ceiling, so a collaborator forwarding a
// denial or kernel line is never itself subject to the permission
// check it is reporting on; the uid the denial was actually about
// travels in the record's payload instead.
const TrustedUID = 1007

// Record is one stored log entry. Payload is opaque to the store: text
// and binary partitions both carry their native encoding unexamined.
type Record struct {
	Partition Partition
	Seq       uint64
	Realtime  time.Time

	UID uint32
	PID int32
	TID int32

	Payload []byte
}

// Priority is a text record's leading severity byte, in AOSP's
// android_LogPriority numbering (grounded in
// original_source/liblog/logger_write.cpp's ANDROID_LOG_* usage).
type Priority uint8

const (
	PriorityUnknown Priority = 0
	PriorityDefault Priority = 1
	PriorityVerbose Priority = 2
	PriorityDebug   Priority = 3
	PriorityInfo    Priority = 4
	PriorityWarn    Priority = 5
	PriorityError   Priority = 6
	PriorityFatal   Priority = 7
	PrioritySilent  Priority = 8
)

// Level extracts the leading priority byte from a text payload, per
// spec.md §4.6's `u8 priority | tag\0 | message\0` framing. The events
// partition carries binary payloads (`le32 tag | ...`) with no
// priority byte, so it always reports ok=false: callers must not
// level-filter it. ok is also false for a payload too short to carry a
// priority byte at all.
func (r *Record) Level() (p Priority, ok bool) {
	if r.Partition == Events || len(r.Payload) == 0 {
		return 0, false
	}
	return Priority(r.Payload[0]), true
}

// EventTag extracts the leading le32 tag id from a binary events-
// partition payload, per spec.md §4.6's `le32 tag | ...` framing. ok is
// false for every other partition, or a payload too short to carry a
// tag.
func (r *Record) EventTag() (tag uint32, ok bool) {
	if r.Partition != Events || len(r.Payload) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(r.Payload[:4]), true
}

// Bytes returns the store accounting size of the record: payload plus a
// fixed per-record overhead for the fields carried alongside it.
func (r *Record) Bytes() int64 {
	const overhead = 28 // seq(8) + realtime(8) + uid(4) + pid(4) + tid(4)
	return int64(len(r.Payload)) + overhead
}

// Filter narrows a subscription to a subset of partitions, a starting
// point, and optional owner filters.
type Filter struct {
	PartitionMask uint8

	StartSeq  uint64
	StartTime time.Time
	StopSeq   uint64 // 0 means unbounded

	// TailCount, if > 0, seeds the subscription with only the last N
	// records per selected partition instead of starting at StartSeq or
	// StartTime.
	TailCount int

	// Tail selects stream mode (serve the initial range, then block for
	// new records) over dump mode (serve the initial range, then
	// terminate), per spec.md §4.2.
	Tail bool

	PID *int32
	UID *uint32

	// MinLevel, if nonzero, drops text records below this priority.
	// Binary-event records (the events partition) always pass regardless
	// of MinLevel, per spec.md §3's "binary-event partitions ignore
	// level".
	MinLevel Priority

	// ReportChatty enables synthetic "chatty" records describing dropped
	// lines when this subscription's cursor falls behind a partition's
	// oldest retained record.
	ReportChatty bool
}

// Matches reports whether r passes the owner and level filters.
// Partition membership and sequence bounds are handled by the caller,
// which knows the current cursor.
func (f *Filter) Matches(r *Record) bool {
	if f.PID != nil && *f.PID != r.PID {
		return false
	}
	if f.UID != nil && *f.UID != r.UID {
		return false
	}
	if f.MinLevel != 0 {
		if lvl, ok := r.Level(); ok && lvl < f.MinLevel {
			return false
		}
	}
	return true
}
