package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable correlation ids for tests:
// "<prefix>-1", "<prefix>-2", ...
//
// This enables golden-file comparison of logs and traces that carry poll
// cycle ids.
//
// Thread-safety: safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix becomes "cycle".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "cycle"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
