// Package presence tracks which players are connected right now.
package presence

import (
	"sort"
	"sync"
)

// Tracker is the live roster.
//
// The roster is replaced wholesale on every join or leave signal rather
// than patched, so it can never drift from what the game server reported.
// Tracker is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewTracker creates an empty roster.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]struct{})}
}

// Rebuild replaces the roster with names. Empty names are ignored.
func (t *Tracker) Rebuild(names []string) {
	next := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		next[n] = struct{}{}
	}

	t.mu.Lock()
	t.online = next
	t.mu.Unlock()
}

// IsOnline reports whether a session with exactly this name is connected.
// The match is case-sensitive: presence is a fact about the live session,
// whose name the server spells one way only.
func (t *Tracker) IsOnline(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[name]
	return ok
}

// Count returns the number of connected players.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.online)
}

// Names returns the connected players, sorted.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.online))
	for n := range t.online {
		names = append(names, n)
	}
	t.mu.RUnlock()

	sort.Strings(names)
	return names
}
