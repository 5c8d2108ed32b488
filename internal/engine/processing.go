package engine

import (
	"sort"
	"sync"

	"github.com/minewebstore/mwsync/internal/model"
)

// Processing is the set of commands that have been acknowledged to the
// storefront and have neither finished nor been parked offline.
//
// Thread-safety: safe for concurrent use; every method is one map
// operation under the lock.
type Processing struct {
	mu   sync.Mutex
	byID map[int]model.Command
}

// NewProcessing creates an empty set.
func NewProcessing() *Processing {
	return &Processing{byID: make(map[int]model.Command)}
}

// Add inserts cmd. Returns false if a command with the same id is already
// being processed.
func (p *Processing) Add(cmd model.Command) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[cmd.ID]; exists {
		return false
	}
	p.byID[cmd.ID] = cmd
	return true
}

// Remove deletes the command with this id and reports whether it was
// present.
func (p *Processing) Remove(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.byID[id]
	delete(p.byID, id)
	return ok
}

// Contains reports whether id is being processed.
func (p *Processing) Contains(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byID[id]
	return ok
}

// Len returns the number of commands being processed.
func (p *Processing) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// IDs returns the ids being processed, ascending.
func (p *Processing) IDs() []int {
	p.mu.Lock()
	ids := make([]int, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	sort.Ints(ids)
	return ids
}
