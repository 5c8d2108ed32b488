// Package casemap provides a map keyed by player names where lookups ignore
// case but the first spelling seen is kept as the canonical key.
//
// Purchasers type player names by hand, so "steve", "Steve" and "STEVE" must
// all land on the same entry. The folded key is the Unicode case fold of the
// NFC form, which also merges composed and decomposed spellings.
package casemap

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the lookup key for name.
func Fold(name string) string {
	// cases.Caser is stateful; one per call keeps Fold safe for concurrent use.
	return cases.Fold().String(norm.NFC.String(name))
}

// EqualFold reports whether two names refer to the same key.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Map is a case-insensitive, case-preserving map. Iteration follows the
// order in which keys were first inserted.
//
// Map is not safe for concurrent use; owners guard it with their own lock.
type Map[V any] struct {
	canonical map[string]string // folded -> canonical spelling
	values    map[string]V      // folded -> value
	order     []string          // folded keys in insertion order
}

// New creates an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{
		canonical: make(map[string]string),
		values:    make(map[string]V),
	}
}

// Get returns the value stored under any spelling of name, together with
// the canonical spelling.
func (m *Map[V]) Get(name string) (value V, canonical string, ok bool) {
	k := Fold(name)
	value, ok = m.values[k]
	if !ok {
		return value, "", false
	}
	return value, m.canonical[k], true
}

// Set stores value under name. If a differently-cased key already exists its
// spelling is kept; otherwise name becomes the canonical key. Set returns the
// canonical key used.
func (m *Map[V]) Set(name string, value V) string {
	k := Fold(name)
	if c, exists := m.canonical[k]; exists {
		m.values[k] = value
		return c
	}
	m.canonical[k] = name
	m.values[k] = value
	m.order = append(m.order, k)
	return name
}

// Delete removes the entry for any spelling of name and returns the value
// that was stored.
func (m *Map[V]) Delete(name string) (V, bool) {
	k := Fold(name)
	v, ok := m.values[k]
	if !ok {
		return v, false
	}
	delete(m.values, k)
	delete(m.canonical, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return v, true
}

// Len returns the number of keys.
func (m *Map[V]) Len() int {
	return len(m.values)
}

// Keys returns canonical keys in insertion order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, len(m.order))
	for i, k := range m.order {
		keys[i] = m.canonical[k]
	}
	return keys
}

// Range calls fn for every entry in insertion order until fn returns false.
func (m *Map[V]) Range(fn func(canonical string, value V) bool) {
	for _, k := range m.order {
		if !fn(m.canonical[k], m.values[k]) {
			return
		}
	}
}
