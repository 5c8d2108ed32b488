package ledger

import (
	"context"
	"log/slog"
	"sync"
)

// PlayerSyncer is the part of the remote source the Syncer needs.
type PlayerSyncer interface {
	SyncPlayers(ctx context.Context, server string, names []string, previousDigest string) error
}

// Syncer pushes the full population to the storefront when it has changed
// since the last successful push.
//
// The last synced digest only moves forward on success, so a failed push
// is retried with the same payload on the next trigger. It lives in memory
// only: the first trigger after a restart always pushes.
type Syncer struct {
	ledger *Ledger
	source PlayerSyncer
	server string

	pushMu sync.Mutex // serializes pushes

	mu   sync.Mutex
	last string
}

// NewSyncer creates a Syncer for server.
func NewSyncer(l *Ledger, source PlayerSyncer, server string) *Syncer {
	return &Syncer{ledger: l, source: source, server: server}
}

// Sync pushes the population if its digest differs from the last synced
// one. Returns whether a push was made.
func (s *Syncer) Sync(ctx context.Context) (sent bool, err error) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	prev := s.LastDigest()
	digest := s.ledger.ComputeDigest()
	if digest == prev {
		slog.Debug("player population unchanged, skipping sync", "digest", digest)
		return false, nil
	}

	names := s.ledger.Names()
	if err := s.source.SyncPlayers(ctx, s.server, names, prev); err != nil {
		slog.Warn("player sync failed, will retry on next join",
			"players", len(names), "error", err)
		return false, err
	}

	slog.Info("synced player population", "players", len(names), "digest", digest)
	s.mu.Lock()
	s.last = digest
	s.mu.Unlock()
	return true, nil
}

// LastDigest returns the digest of the last successful push, or "".
func (s *Syncer) LastDigest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
