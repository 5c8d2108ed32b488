// Package queue holds commands waiting for their player to come online.
//
// The queue is keyed by player name, case-insensitively, and every mutation
// rewrites the whole snapshot through a store.Snapshotter. That trades write
// volume for simple crash semantics: after a crash the snapshot on disk is
// exactly the state after some complete mutation.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/minewebstore/mwsync/internal/casemap"
	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/store"
)

// SnapshotName is the snapshot the queue persists under.
const SnapshotName = "queued_commands"

// Entry is one player's backlog.
type Entry struct {
	Player   string          `json:"player"`
	Commands []model.Command `json:"commands"`
}

// Store is the offline queue.
//
// Thread-safety: all methods are safe for concurrent use. mu guards the
// in-memory map for the duration of one map operation; saveMu serializes
// snapshot writes so the last write always carries the latest state.
type Store struct {
	snap store.Snapshotter

	saveMu sync.Mutex
	mu     sync.Mutex
	byName *casemap.Map[[]model.Command]
}

// Open restores the queue from snap.
//
// A snapshot that cannot be decoded is quarantined and the queue starts
// empty; this is logged as a warning and not returned as an error. Other
// storage errors are returned.
func Open(ctx context.Context, snap store.Snapshotter) (*Store, error) {
	s := &Store{
		snap:   snap,
		byName: casemap.New[[]model.Command](),
	}

	var persisted map[string][]model.Command
	found, err := store.LoadJSON(ctx, snap, SnapshotName, &persisted)
	switch {
	case store.IsCorrupt(err):
		moved, qerr := snap.Quarantine(ctx, SnapshotName)
		if qerr != nil {
			slog.Warn("offline queue snapshot is corrupt and could not be moved aside",
				"error", err, "quarantine_error", qerr)
		} else {
			slog.Warn("offline queue snapshot is corrupt, starting empty",
				"error", err, "moved_to", moved)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("restore offline queue: %w", err)
	case !found:
		slog.Debug("no offline queue snapshot, starting empty")
		return s, nil
	}

	// Sorted keys make the canonical spelling deterministic when a
	// hand-edited snapshot holds two spellings of one name.
	names := make([]string, 0, len(persisted))
	for name := range persisted {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		cmds := persisted[name]
		if len(cmds) == 0 {
			continue
		}
		existing, _, _ := s.byName.Get(name)
		s.byName.Set(name, append(existing, cmds...))
		total += len(cmds)
	}

	slog.Info("restored offline queue", "commands", total, "players", s.byName.Len())
	return s, nil
}

// Enqueue appends cmd to its player's backlog and persists the queue.
//
// Returns the canonical key the command was filed under and the backlog
// depth. A persistence error is returned after the in-memory append; the
// command stays queued either way.
func (s *Store) Enqueue(ctx context.Context, cmd model.Command) (key string, depth int, err error) {
	s.mu.Lock()
	existing, _, _ := s.byName.Get(cmd.PlayerName)
	backlog := append(existing, cmd)
	key = s.byName.Set(cmd.PlayerName, backlog)
	depth = len(backlog)
	s.mu.Unlock()

	slog.Info("queued command for offline player",
		"player", key, "command_id", cmd.ID, "depth", depth)

	return key, depth, s.persist(ctx)
}

// DrainFor removes and returns every command queued for player, oldest
// first, and persists the queue.
//
// The commands are returned even if persisting fails, so the caller can
// still run them; the error is returned alongside.
func (s *Store) DrainFor(ctx context.Context, player string) ([]model.Command, error) {
	s.mu.Lock()
	cmds, ok := s.byName.Delete(player)
	s.mu.Unlock()

	if !ok || len(cmds) == 0 {
		return nil, nil
	}

	slog.Info("draining offline queue", "player", player, "commands", len(cmds))
	return cmds, s.persist(ctx)
}

// PeekFor returns a copy of the commands queued for player without
// removing them.
func (s *Store) PeekFor(player string) []model.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmds, _, ok := s.byName.Get(player)
	if !ok {
		return nil
	}
	out := make([]model.Command, len(cmds))
	copy(out, cmds)
	return out
}

// CountAll returns the number of queued commands across all players.
func (s *Store) CountAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	s.byName.Range(func(_ string, cmds []model.Command) bool {
		total += len(cmds)
		return true
	})
	return total
}

// Entries returns a copy of every backlog in first-queued order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, s.byName.Len())
	s.byName.Range(func(name string, cmds []model.Command) bool {
		c := make([]model.Command, len(cmds))
		copy(c, cmds)
		entries = append(entries, Entry{Player: name, Commands: c})
		return true
	})
	return entries
}

// Flush writes the current state. Called on shutdown.
func (s *Store) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// persist writes a snapshot of the current state.
func (s *Store) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[string][]model.Command, s.byName.Len())
	s.byName.Range(func(name string, cmds []model.Command) bool {
		c := make([]model.Command, len(cmds))
		copy(c, cmds)
		snapshot[name] = c
		return true
	})
	s.mu.Unlock()

	if err := store.SaveJSON(ctx, s.snap, SnapshotName, snapshot); err != nil {
		slog.Error("failed to persist offline queue", "error", err)
		return err
	}
	slog.Debug("persisted offline queue", "players", len(snapshot))
	return nil
}
