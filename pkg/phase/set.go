package phase

import "sort"

// Set is an immutable set of element identifiers. The zero value is empty.
type Set struct {
	m map[string]struct{}
}

func newSet(m map[string]struct{}) Set {
	return Set{m: m}
}

// SetOf builds a Set from ids.
func SetOf(ids ...string) Set {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s.m[id]
	return ok
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.m)
}

// Items returns the ids in ascending order.
func (s Set) Items() []string {
	items := make([]string, 0, len(s.m))
	for id := range s.m {
		items = append(items, id)
	}
	sort.Strings(items)
	return items
}

// Each calls fn for every id in unspecified order until fn returns false.
func (s Set) Each(fn func(id string) bool) {
	for id := range s.m {
		if !fn(id) {
			return
		}
	}
}

// Equal reports whether both sets hold the same ids.
func (s Set) Equal(other Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for id := range s.m {
		if _, ok := other.m[id]; !ok {
			return false
		}
	}
	return true
}
