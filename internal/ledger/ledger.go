// Package ledger records every player the server has ever seen and keeps
// the storefront's copy of that population in sync.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/store"
)

// SnapshotName is the snapshot the ledger persists under.
const SnapshotName = "player_history"

// ErrEmptyIdentifier is returned by Observe for a blank identifier.
var ErrEmptyIdentifier = errors.New("player identifier is empty")

// Ledger maps stable player identifiers to their latest display name.
// Entries are added or renamed, never removed.
//
// Ledger is safe for concurrent use.
type Ledger struct {
	snap store.Snapshotter

	saveMu sync.Mutex
	mu     sync.Mutex
	names  map[string]string // identifier -> display name
}

// Open restores the ledger from snap. A corrupt snapshot is quarantined and
// the ledger starts empty.
func Open(ctx context.Context, snap store.Snapshotter) (*Ledger, error) {
	l := &Ledger{
		snap:  snap,
		names: make(map[string]string),
	}

	var persisted map[string]string
	found, err := store.LoadJSON(ctx, snap, SnapshotName, &persisted)
	switch {
	case store.IsCorrupt(err):
		moved, qerr := snap.Quarantine(ctx, SnapshotName)
		if qerr != nil {
			slog.Warn("player history is corrupt and could not be moved aside",
				"error", err, "quarantine_error", qerr)
		} else {
			slog.Warn("player history is corrupt, starting empty",
				"error", err, "moved_to", moved)
		}
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("restore player history: %w", err)
	case !found:
		return l, nil
	}

	for id, name := range persisted {
		key, ok := canonicalID(id)
		if !ok {
			slog.Warn("dropping player history entry with empty identifier", "name", name)
			continue
		}
		l.names[key] = name
	}

	slog.Info("restored player history", "players", len(l.names))
	return l, nil
}

// canonicalID normalises UUIDs to their lowercase hyphenated form so that
// the same player reported in two spellings is one entry. Identifiers that
// are not UUIDs are kept as given, trimmed.
func canonicalID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if u, err := uuid.Parse(id); err == nil {
		return u.String(), true
	}
	return id, true
}

// Observe records that the player with this identifier joined under name.
//
// Returns isNew=true only the first time an identifier is seen. A known
// identifier with a new name is renamed in place. Any change is persisted
// before Observe returns; a persistence error is returned alongside isNew.
func (l *Ledger) Observe(ctx context.Context, id, name string) (isNew bool, err error) {
	key, ok := canonicalID(id)
	if !ok {
		return false, ErrEmptyIdentifier
	}

	l.mu.Lock()
	prev, known := l.names[key]
	changed := !known || prev != name
	if changed {
		l.names[key] = name
	}
	l.mu.Unlock()

	switch {
	case !known:
		slog.Info("new player recorded", "player_id", key, "name", name)
	case changed:
		slog.Info("player renamed", "player_id", key, "from", prev, "to", name)
	default:
		return false, nil
	}

	return !known, l.persist(ctx)
}

// Count returns the number of players ever seen.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

// Actors returns every entry, sorted by identifier.
func (l *Ledger) Actors() []model.Actor {
	l.mu.Lock()
	actors := make([]model.Actor, 0, len(l.names))
	for id, name := range l.names {
		actors = append(actors, model.Actor{ID: id, Name: name})
	}
	l.mu.Unlock()

	sort.Slice(actors, func(i, j int) bool { return actors[i].ID < actors[j].ID })
	return actors
}

// Names returns every display name, ordered by identifier. This is the
// population sent to the storefront.
func (l *Ledger) Names() []string {
	actors := l.Actors()
	names := make([]string, len(actors))
	for i, a := range actors {
		names[i] = a.Name
	}
	return names
}

// ComputeDigest returns the digest of the current population.
func (l *Ledger) ComputeDigest() string {
	return Digest(l.Actors())
}

// Digest hashes a population: SHA-256 hex over the sorted "id:name" pairs
// joined with ",". Input order does not matter.
func Digest(actors []model.Actor) string {
	pairs := make([]string, len(actors))
	for i, a := range actors {
		pairs[i] = a.ID + ":" + a.Name
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, ",")))
	return hex.EncodeToString(sum[:])
}

func (l *Ledger) persist(ctx context.Context) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	snapshot := make(map[string]string, len(l.names))
	for id, name := range l.names {
		snapshot[id] = name
	}
	l.mu.Unlock()

	if err := store.SaveJSON(ctx, l.snap, SnapshotName, snapshot); err != nil {
		slog.Error("failed to persist player history", "error", err)
		return err
	}
	return nil
}
