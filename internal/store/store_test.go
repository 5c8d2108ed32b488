package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

func TestSnapshotter_LoadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "queue")
			assert.ErrorIs(t, err, ErrNotFound)

			var v sample
			found, err := LoadJSON(context.Background(), s, "queue", &v)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSnapshotter_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, SaveJSON(ctx, s, "queue", sample{Names: []string{"a"}, Count: 1}))
			require.NoError(t, SaveJSON(ctx, s, "queue", sample{Names: []string{"b", "c"}, Count: 2}))

			var got sample
			found, err := LoadJSON(ctx, s, "queue", &got)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, sample{Names: []string{"b", "c"}, Count: 2}, got)
		})
	}
}

func TestSnapshotter_NamesAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "queue", []byte(`{"count":1}`)))
			require.NoError(t, s.Save(ctx, "history", []byte(`{"count":2}`)))

			q, err := s.Load(ctx, "queue")
			require.NoError(t, err)
			h, err := s.Load(ctx, "history")
			require.NoError(t, err)
			assert.JSONEq(t, `{"count":1}`, string(q))
			assert.JSONEq(t, `{"count":2}`, string(h))
		})
	}
}

func TestSnapshotter_CorruptAndQuarantine(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "queue", []byte(`{"names": [`)))

			var v sample
			found, err := LoadJSON(ctx, s, "queue", &v)
			assert.True(t, found)
			require.Error(t, err)
			assert.True(t, IsCorrupt(err))

			moved, err := s.Quarantine(ctx, "queue")
			require.NoError(t, err)
			assert.Contains(t, moved, "queue_corrupted_1700000000000")

			// The original name is free again.
			_, err = s.Load(ctx, "queue")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSnapshotter_QuarantineMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Quarantine(context.Background(), "nothing")
			assert.Error(t, err)
		})
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(context.Background(), "queue", []byte("{}")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "queue.json", entries[0].Name())
	assert.Equal(t, filepath.Join(dir, "queue.json"), s.Path("queue"))
}

func TestFileStore_SyncsDirectoryAfterRename(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	var synced []string
	s.syncDir = func(d string) error {
		synced = append(synced, d)
		return syncDir(d)
	}

	require.NoError(t, s.Save(context.Background(), "queue", []byte("{}")))
	assert.Equal(t, []string{dir}, synced)

	_, err = s.Quarantine(context.Background(), "queue")
	require.NoError(t, err)
	assert.Equal(t, []string{dir, dir}, synced)
}

func TestFileStore_DirectorySyncFailureFailsSave(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	s.syncDir = func(string) error { return errors.New("disk gone") }

	err = s.Save(context.Background(), "queue", []byte("{}"))
	assert.EqualError(t, err, "disk gone")
}

func TestFileStore_QuarantineKeepsBytes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	s.now = fixedNow(42)

	require.NoError(t, s.Save(context.Background(), "queue", []byte("garbage")))
	moved, err := s.Quarantine(context.Background(), "queue")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "queue_corrupted_42.json"), moved)

	data, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestSQLite_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "history", []byte(`{"a":"b"}`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Load(ctx, "history")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(data))
}

func TestSQLite_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "n.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenSQLite(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "newer than supported"))
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(BackendFile, dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, f)

	d, err := Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, d)

	sq, err := Open(BackendSQLite, dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, sq)
	require.NoError(t, sq.Close())
	assert.FileExists(t, filepath.Join(dir, "mwsync.db"))

	_, err = Open("postgres", dir)
	assert.Error(t, err)
}
