package store

import (
	"path/filepath"
	"testing"
	"time"
)

// fixedNow returns a clock frozen at the given unix millisecond.
func fixedNow(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

// backends returns one store per backend, each rooted in its own temp dir.
func backends(t *testing.T) map[string]Snapshotter {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	fs.now = fixedNow(1700000000000)

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	sq.now = fixedNow(1700000000000)
	t.Cleanup(func() { sq.Close() })

	return map[string]Snapshotter{
		BackendFile:   fs,
		BackendSQLite: sq,
	}
}
