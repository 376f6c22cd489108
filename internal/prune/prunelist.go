// Package prune implements the administrative prune list: a small,
// hand-rolled grammar for per-partition allow/deny rules, in the style of
// the teacher's internal/pkg/nanoql lexer and parser.
package prune

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Lunaris-AOSP/system-logging/internal/logerr"
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

// Entry is a single allow or deny rule for one partition.
type Entry struct {
	UID   *uint32 // nil means wildcard
	PID   *uint32 // nil means wildcard
	Allow bool    // false means deny
	raw   string  // original token, for Format round-tripping
}

// List holds the parsed prune list, keyed by partition, in declaration
// order within each partition (first match wins).
type List struct {
	mu      sync.RWMutex
	entries map[logrecord.Partition][]Entry
	source  string
}

// NewEmpty returns a List with no rules: everything is implicitly
// allowed.
func NewEmpty() *List {
	return &List{entries: make(map[logrecord.Partition][]Entry)}
}

// Parse builds a List from the administrative grammar:
//
//	<partition>: <entry> <entry> ...; <partition>: ...
//
// Each entry is [!]uid[/pid], an optional '~' synonym for allow, or '*'
// matching every uid for its partition (used as a partition-wide deny).
// No prefix means allow; '!' means deny; '~' also means allow, accepted
// for compatibility with the shorthand seen in administrative tooling.
func Parse(spec string) (*List, error) {
	l := NewEmpty()
	l.source = spec
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return l, nil
	}

	for _, clause := range strings.Split(spec, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		parts := strings.SplitN(clause, ":", 2)
		if len(parts) != 2 {
			return nil, logerr.New(logerr.InvalidArgument, "prune.Parse", "missing ':' in clause: "+clause)
		}
		partName := strings.TrimSpace(parts[0])
		partition, ok := logrecord.ParsePartition(partName)
		if !ok {
			return nil, logerr.New(logerr.InvalidArgument, "prune.Parse", "unknown partition: "+partName)
		}

		for _, tok := range strings.Fields(parts[1]) {
			entry, err := parseEntry(tok)
			if err != nil {
				return nil, err
			}
			l.entries[partition] = append(l.entries[partition], entry)
		}
	}
	return l, nil
}

func parseEntry(tok string) (Entry, error) {
	raw := tok
	allow := true
	switch {
	case strings.HasPrefix(tok, "!"):
		allow = false
		tok = tok[1:]
	case strings.HasPrefix(tok, "~"):
		allow = true
		tok = tok[1:]
	}

	if tok == "*" {
		return Entry{Allow: allow, raw: raw}, nil
	}

	uidStr, pidStr, hasPID := strings.Cut(tok, "/")
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return Entry{}, logerr.Wrap(logerr.InvalidArgument, "prune.Parse", "bad uid in entry: "+raw, err)
	}
	u32 := uint32(uid)
	e := Entry{UID: &u32, Allow: allow, raw: raw}
	if hasPID {
		pid, err := strconv.ParseUint(pidStr, 10, 32)
		if err != nil {
			return Entry{}, logerr.Wrap(logerr.InvalidArgument, "prune.Parse", "bad pid in entry: "+raw, err)
		}
		p32 := uint32(pid)
		e.PID = &p32
	}
	return e, nil
}

// Match reports the first matching rule for (partition, uid, pid), if
// any. Entries without a uid match everything in the partition; entries
// with a uid but no pid match any pid for that uid.
func (l *List) Match(partition logrecord.Partition, uid uint32, pid int32) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries[partition] {
		if e.UID != nil && *e.UID != uid {
			continue
		}
		if e.PID != nil && int32(*e.PID) != pid {
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// IsAllowed reports whether (partition, uid) is protected by an allow
// entry, i.e. must not be sacrificed by worst-offender eviction. Like
// Match, the first matching entry wins: a deny entry preceding an allow
// entry for the same uid takes precedence.
func (l *List) IsAllowed(partition logrecord.Partition, uid uint32) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries[partition] {
		if e.UID != nil && *e.UID != uid {
			continue
		}
		return e.Allow
	}
	return false
}

// IsDenied reports whether (partition, uid, pid) is explicitly denied:
// such records are evicted first, ahead of worst-offender selection.
func (l *List) IsDenied(partition logrecord.Partition, uid uint32, pid int32) bool {
	e, ok := l.Match(partition, uid, pid)
	return ok && !e.Allow
}

// Format renders the list back into the administrative grammar, sorted
// by partition for determinism.
func (l *List) Format() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	partitions := make([]logrecord.Partition, 0, len(l.entries))
	for p := range l.entries {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var sb strings.Builder
	for i, p := range partitions {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(p.String())
		sb.WriteString(": ")
		toks := make([]string, len(l.entries[p]))
		for j, e := range l.entries[p] {
			toks[j] = e.raw
		}
		sb.WriteString(strings.Join(toks, " "))
	}
	return sb.String()
}

// Set replaces l's rules with other's, used by ControlEndpoint's
// setPruneList to swap the active list under the store's lock.
func (l *List) Set(other *List) {
	l.mu.Lock()
	other.mu.RLock()
	l.entries = other.entries
	l.source = other.source
	other.mu.RUnlock()
	l.mu.Unlock()
}

func (l *List) String() string {
	return fmt.Sprintf("prune.List(%q)", l.Format())
}
