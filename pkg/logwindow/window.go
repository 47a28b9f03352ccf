package logwindow

import (
	"sort"
	"sync"

	"tailview/pkg/core"
)

// Store owns the in-memory window of log entries currently loaded for one
// viewing session: an ordered, deduplicated sequence plus the inclusive time
// bounds it covers. All mutation happens as a single atomic transition under
// the store's lock, so concurrent readers always observe a sorted window.
type Store struct {
	mu           sync.RWMutex
	entries      []core.LogEntry
	seen         map[core.EntryKey]struct{}
	earliestMs   int64
	latestMs     int64
	canLoadOlder bool
}

// NewStore creates an empty window.
func NewStore() *Store {
	return &Store{
		seen:         make(map[core.EntryKey]struct{}),
		canLoadOlder: true,
	}
}

// MergeIn adds the subset of newEntries not already present, keeps the
// sequence sorted ascending by timestamp, recomputes the bounds, and returns
// the number of entries actually added. prepend controls whether the unique
// entries are concatenated before or after the existing sequence; the final
// order is the same either way because the whole window is re-sorted. Windows
// are small enough that a full re-sort per merge is cheaper to reason about
// than ordered insertion.
func (s *Store) MergeIn(newEntries []core.LogEntry, prepend bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unique []core.LogEntry
	for _, e := range newEntries {
		if _, dup := s.seen[e.Key()]; dup {
			continue
		}
		s.seen[e.Key()] = struct{}{}
		unique = append(unique, e)
	}
	if len(unique) == 0 {
		return 0
	}

	if prepend {
		s.entries = append(unique, s.entries...)
	} else {
		s.entries = append(s.entries, unique...)
	}
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].TimestampMs < s.entries[j].TimestampMs
	})

	s.earliestMs = s.entries[0].TimestampMs
	s.latestMs = s.entries[len(s.entries)-1].TimestampMs
	return len(unique)
}

// Clear empties the window, zeroes the bounds, and re-arms history loading.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.seen = make(map[core.EntryKey]struct{})
	s.earliestMs = 0
	s.latestMs = 0
	s.canLoadOlder = true
}

// Entries returns a copy of the current ordered sequence.
func (s *Store) Entries() []core.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// EntriesForService returns a copy of the sequence filtered to one service
// tag. An empty service returns the full sequence.
func (s *Store) EntriesForService(service string) []core.LogEntry {
	if service == "" {
		return s.Entries()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.LogEntry
	for _, e := range s.entries {
		if e.Service == service {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries in the window.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Bounds returns the inclusive [earliest, latest] timestamps covered by the
// window. Both are zero when the window is empty.
func (s *Store) Bounds() (earliestMs, latestMs int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.earliestMs, s.latestMs
}

// CanLoadOlder reports whether history before the earliest bound may still
// exist. It turns false only after a backward fetch came back empty.
func (s *Store) CanLoadOlder() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canLoadOlder
}

func (s *Store) setCanLoadOlder(v bool) {
	s.mu.Lock()
	s.canLoadOlder = v
	s.mu.Unlock()
}

// TimeRangeLabel renders the covered range for display, e.g. a panel header.
func (s *Store) TimeRangeLabel() string {
	earliest, latest := s.Bounds()
	if earliest == 0 && latest == 0 {
		return "no logs loaded"
	}
	return core.FormatTimeStr(earliest) + " ~ " + core.FormatTimeStr(latest)
}
