package app

import "sort"

// IDSet is the progress store abstraction for one flag family (completed
// tasks, earned badges, ...). Callers never share its backing map; whole-set
// reconciliation goes through ReplaceAll. Not safe for concurrent use.
type IDSet struct {
	ids map[string]struct{}
}

func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s *IDSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Upsert adds id and reports whether it was new.
func (s *IDSet) Upsert(id string) bool {
	if s.Has(id) {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// ReplaceAll swaps the whole content for ids.
func (s *IDSet) ReplaceAll(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.ids = next
}

// Get returns the ids sorted.
func (s *IDSet) Get() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *IDSet) Len() int {
	return len(s.ids)
}
