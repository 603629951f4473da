// Package calendar collects the events extracted from page lines.
//
// Events are deduplicated by their deterministic id, so evaluating an
// unchanged line again never adds a second copy. Each line holds at most
// one event: a line whose text changes replaces its event, and a removed
// line drops it. Two lines with identical text share one event until both
// are gone.
package calendar

import (
	"cmp"
	"slices"
	"sync"

	"github.com/01011010/notesum-hybrid/internal/parser"
)

// MonthLayout formats month group keys, e.g. "March 2025".
const MonthLayout = "January 2006"

// Month is one group of events, ordered by start time.
type Month struct {
	Key    string
	Events []parser.Event
}

type lineKey struct {
	page string
	line int
}

type entry struct {
	event parser.Event
	refs  map[lineKey]struct{}
}

type Store struct {
	mu     sync.Mutex
	byID   map[string]*entry
	byLine map[lineKey]string
}

func New() *Store {
	return &Store{
		byID:   make(map[string]*entry),
		byLine: make(map[lineKey]string),
	}
}

// Set records ev as the event of a page line, replacing the one the line
// held before. A nil ev clears the line. It reports whether the calendar
// changed.
func (s *Store) Set(page string, line int, ev *parser.Event) bool {
	key := lineKey{page, line}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, had := s.byLine[key]
	if ev == nil {
		if !had {
			return false
		}
		s.release(key, old)
		return true
	}
	if had && old == ev.ID {
		return false
	}
	if had {
		s.release(key, old)
	}

	e, ok := s.byID[ev.ID]
	if !ok {
		cp := *ev
		cp.Attendees = slices.Clone(ev.Attendees)
		e = &entry{event: cp, refs: make(map[lineKey]struct{})}
		s.byID[ev.ID] = e
	}
	e.refs[key] = struct{}{}
	s.byLine[key] = ev.ID
	return true
}

// Remove drops the event of a page line, if any.
func (s *Store) Remove(page string, line int) bool {
	return s.Set(page, line, nil)
}

// Renumber moves the events of page after a structural edit. Lines missing
// from oldToNew are dropped.
func (s *Store) Renumber(page string, oldToNew map[int]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type ref struct {
		key lineKey
		id  string
	}
	var refs []ref
	for key, id := range s.byLine {
		if key.page == page {
			refs = append(refs, ref{key, id})
		}
	}
	for _, r := range refs {
		delete(s.byLine, r.key)
		delete(s.byID[r.id].refs, r.key)
	}
	for _, r := range refs {
		n, ok := oldToNew[r.key.line]
		if !ok {
			continue
		}
		key := lineKey{page, n}
		s.byLine[key] = r.id
		s.byID[r.id].refs[key] = struct{}{}
	}
	for _, r := range refs {
		if e, ok := s.byID[r.id]; ok && len(e.refs) == 0 {
			delete(s.byID, r.id)
		}
	}
}

// ClearPage drops every event contributed by page.
func (s *Store) ClearPage(page string) {
	s.Renumber(page, nil)
}

func (s *Store) release(key lineKey, id string) {
	delete(s.byLine, key)
	e, ok := s.byID[id]
	if !ok {
		return
	}
	delete(e.refs, key)
	if len(e.refs) == 0 {
		delete(s.byID, id)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Events returns every event ordered by start time, then id.
func (s *Store) Events() []parser.Event {
	s.mu.Lock()
	out := make([]parser.Event, 0, len(s.byID))
	for _, e := range s.byID {
		ev := e.event
		ev.Attendees = slices.Clone(ev.Attendees)
		out = append(out, ev)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b parser.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Months groups Events by the month of their start, oldest first.
func (s *Store) Months() []Month {
	var out []Month
	for _, ev := range s.Events() {
		key := ev.Start.Format(MonthLayout)
		if n := len(out); n > 0 && out[n-1].Key == key {
			out[n-1].Events = append(out[n-1].Events, ev)
			continue
		}
		out = append(out, Month{Key: key, Events: []parser.Event{ev}})
	}
	return out
}
