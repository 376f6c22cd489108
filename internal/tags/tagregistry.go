// Package tags implements the event-tag dictionary: a bidirectional
// id <-> (name, format) map backed by a plain-text file, in the manner
// of the teacher's internal/controller.Store file-backed persistence.
package tags

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"github.com/Lunaris-AOSP/system-logging/internal/logerr"
)

// Entry is one event-tag dictionary row.
type Entry struct {
	ID     uint32
	Name   string
	Format string
}

type snapshot struct {
	byID   map[uint32]Entry
	byName map[string]Entry
}

// Registry is the event-tag dictionary. Reads are lock-free against a
// copy-on-write snapshot; writes are serialized through mu.
type Registry struct {
	mu     sync.Mutex
	paths  []string
	digest [blake2b.Size]byte
	snap   atomic.Pointer[snapshot]
	nextID uint32
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{byID: map[uint32]Entry{}, byName: map[string]Entry{}})
	return r
}

// Load reads the dictionary from the given files, in order, merging
// entries and taking the maximum id seen to seed the allocator for new
// entries created by getEventTag.
func (r *Registry) Load(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := map[uint32]Entry{}
	byName := map[string]Entry{}
	var all []byte
	var maxID uint32

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return logerr.Wrap(logerr.Resource, "tags.Load", "reading "+path, err)
		}
		all = append(all, data...)

		sc := bufio.NewScanner(strings.NewReader(string(data)))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			e, err := parseLine(line)
			if err != nil {
				return logerr.Wrap(logerr.InvalidArgument, "tags.Load", "parsing "+path, err)
			}
			if err := mergeEntry(byID, byName, e); err != nil {
				return logerr.Wrap(logerr.InvalidArgument, "tags.Load", "loading "+path, err)
			}
			if e.ID > maxID {
				maxID = e.ID
			}
		}
	}

	r.paths = paths
	r.digest = blake2b.Sum512(all)
	r.nextID = maxID + 1
	r.snap.Store(&snapshot{byID: byID, byName: byName})
	return nil
}

func parseLine(line string) (Entry, error) {
	// id name "format"
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return Entry{}, fmt.Errorf("malformed tag line: %q", line)
	}
	id, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("bad id in %q: %w", line, err)
	}
	e := Entry{ID: uint32(id), Name: fields[1]}
	if len(fields) == 3 {
		e.Format = strings.Trim(strings.TrimSpace(fields[2]), `"`)
	}
	return e, nil
}

// mergeEntry inserts e into byID/byName, enforcing the dictionary's
// id-based invariant: reinserting an identical (id, name, format)
// triple is a no-op, but a conflicting triple under an id or name
// already registered differently is rejected. byID and byName are left
// unmodified on error.
func mergeEntry(byID map[uint32]Entry, byName map[string]Entry, e Entry) error {
	if existing, ok := byID[e.ID]; ok {
		if existing.Name == e.Name && existing.Format == e.Format {
			return nil
		}
		return fmt.Errorf("id %d already registered as %q/%q", e.ID, existing.Name, existing.Format)
	}
	if existing, ok := byName[e.Name]; ok && existing.ID != e.ID {
		return fmt.Errorf("name %q already registered under id %d", e.Name, existing.ID)
	}
	byID[e.ID] = e
	byName[e.Name] = e
	return nil
}

// Insert registers e under its given id, enforcing the same
// idempotent-or-conflict invariant as Load. Available for a future
// wire path that assigns ids itself rather than asking the registry to
// allocate one (see GetOrCreate).
func (r *Registry) Insert(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	byID := copyByID(cur.byID)
	byName := copyByName(cur.byName)
	if err := mergeEntry(byID, byName, e); err != nil {
		return logerr.New(logerr.InvalidArgument, "tags.Insert", err.Error())
	}
	r.snap.Store(&snapshot{byID: byID, byName: byName})
	if e.ID >= r.nextID {
		r.nextID = e.ID + 1
	}
	return r.persistLocked()
}

// Lookup resolves an id to its entry.
func (r *Registry) Lookup(id uint32) (Entry, bool) {
	s := r.snap.Load()
	e, ok := s.byID[id]
	return e, ok
}

// GetOrCreate returns the id for (name, format), inserting a new entry
// with the next free id if name is not already registered. A name that
// already exists under a different format is a conflict.
func (r *Registry) GetOrCreate(name, format string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if e, ok := cur.byName[name]; ok {
		if e.Format != format {
			return 0, logerr.New(logerr.InvalidArgument, "tags.GetOrCreate",
				fmt.Sprintf("name %q already registered with format %q", name, e.Format))
		}
		return e.ID, nil
	}

	e := Entry{ID: r.nextID, Name: name, Format: format}
	r.nextID++

	byID := copyByID(cur.byID)
	byName := copyByName(cur.byName)
	byID[e.ID] = e
	byName[e.Name] = e
	r.snap.Store(&snapshot{byID: byID, byName: byName})

	return e.ID, r.persistLocked()
}

func copyByID(m map[uint32]Entry) map[uint32]Entry {
	out := make(map[uint32]Entry, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyByName(m map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// persistLocked rewrites the primary dictionary file. Caller must hold mu.
func (r *Registry) persistLocked() error {
	if len(r.paths) == 0 {
		return nil
	}
	path := r.paths[0]
	s := r.snap.Load()

	ids := make([]uint32, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sortUint32s(ids)

	var sb strings.Builder
	for _, id := range ids {
		e := s.byID[id]
		fmt.Fprintf(&sb, "%d %s \"%s\"\n", e.ID, e.Name, e.Format)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0644); err != nil {
		return logerr.Wrap(logerr.Resource, "tags.persist", "writing "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return logerr.Wrap(logerr.Resource, "tags.persist", "renaming to "+path, err)
	}
	return nil
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Reinit reloads the dictionary from disk and reports whether the
// digest of the backing files changed since the last load, matching
// the control socket's reinit command for the tag dictionary.
func (r *Registry) Reinit() (changed bool, err error) {
	r.mu.Lock()
	paths := append([]string(nil), r.paths...)
	oldDigest := r.digest
	r.mu.Unlock()

	if err := r.Load(paths); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.digest != oldDigest, nil
}

// Path returns the primary dictionary file path, for diagnostics.
func (r *Registry) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return filepath.Clean(r.paths[0])
}
