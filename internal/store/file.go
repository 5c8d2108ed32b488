package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps each snapshot in dir/<name>.json.
type FileStore struct {
	dir     string
	now     func() time.Time
	syncDir func(dir string) error
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, now: time.Now, syncDir: syncDir}, nil
}

// Dir returns the directory snapshots are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing the named snapshot.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the named snapshot.
func (s *FileStore) Load(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes data to a temporary file next to the target, syncs it,
// renames it over the target and syncs the directory so the rename is
// durable too.
func (s *FileStore) Save(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	// Removes the temp file on every failure path; a no-op after rename.
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.Path(name)); err != nil {
		return err
	}
	return s.syncDir(s.dir)
}

// Quarantine renames the snapshot to <name>_corrupted_<unix-millis>.json.
func (s *FileStore) Quarantine(_ context.Context, name string) (string, error) {
	dst := filepath.Join(s.dir, fmt.Sprintf("%s_corrupted_%d.json", name, s.now().UnixMilli()))
	if err := os.Rename(s.Path(name), dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", name, err)
	}
	if err := s.syncDir(s.dir); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", name, err)
	}
	return dst, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return d.Close()
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
