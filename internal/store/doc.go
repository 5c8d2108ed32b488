// Package store persists the daemon's durable state as whole snapshots.
//
// Every component that owns durable state (the offline queue and the player
// history) serializes its entire state on every change and hands the bytes
// to a Snapshotter. Snapshots are replace-on-write: a reader sees either the
// previous snapshot or the new one, never a mix.
//
// # Backends
//
//   - FileStore: one JSON file per snapshot under a data directory. Writes go
//     to a temporary file in the same directory, are fsynced, then renamed
//     over the target.
//   - SQLiteStore: one row per snapshot in a `snapshots` table. Each save is a
//     single UPSERT, which SQLite applies atomically.
//
// # Corruption
//
// A snapshot that exists but cannot be decoded is reported as a
// *CorruptError. Owners respond by calling Quarantine, which moves the bad
// snapshot aside under a timestamped name so it can be inspected later, and
// then start from empty state.
package store
