package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no snapshot exists under a name.
var ErrNotFound = errors.New("snapshot not found")

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Snapshotter stores named, opaque snapshots.
type Snapshotter interface {
	// Load returns the latest snapshot stored under name, or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the snapshot stored under name.
	Save(ctx context.Context, name string, data []byte) error

	// Quarantine moves the snapshot stored under name aside and returns the
	// location it was moved to.
	Quarantine(ctx context.Context, name string) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// CorruptError reports a snapshot that exists but could not be decoded.
type CorruptError struct {
	Name string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("snapshot %q is corrupt: %v", e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err is (or wraps) a *CorruptError.
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

// Open creates the backend named by backend, rooted at dataDir.
// For the sqlite backend the database file is dataDir/mwsync.db.
func Open(backend, dataDir string) (Snapshotter, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dataDir)
	case BackendSQLite:
		return OpenSQLite(sqlitePath(dataDir))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// LoadJSON decodes the snapshot stored under name into v.
//
// Returns found=false (and a nil error) when no snapshot exists. A snapshot
// that fails to decode yields a *CorruptError.
func LoadJSON(ctx context.Context, s Snapshotter, name string, v any) (found bool, err error) {
	data, err := s.Load(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return true, &CorruptError{Name: name, Err: err}
	}
	return true, nil
}

// SaveJSON encodes v as indented JSON and saves it under name.
func SaveJSON(ctx context.Context, s Snapshotter, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')

	if err := s.Save(ctx, name, data); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
