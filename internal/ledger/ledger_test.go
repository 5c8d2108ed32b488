package ledger

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/store"
)

const (
	aliceID = "0b7c5c1e-7d8a-4c52-9d1a-5a3c2a1b0e01"
	bobID   = "6f1e2d3c-4b5a-4968-8776-a5b4c3d2e1f0"
)

func openLedger(t *testing.T, dir string) *Ledger {
	t.Helper()
	fs, err := store.NewFileStore(dir)
	require.NoError(t, err)
	l, err := Open(context.Background(), fs)
	require.NoError(t, err)
	return l
}

func TestLedger_ObserveNewKnownRenamed(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, t.TempDir())

	isNew, err := l.Observe(ctx, aliceID, "Alice")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = l.Observe(ctx, aliceID, "Alice")
	require.NoError(t, err)
	assert.False(t, isNew)

	isNew, err = l.Observe(ctx, aliceID, "Alicia")
	require.NoError(t, err)
	assert.False(t, isNew)

	assert.Equal(t, 1, l.Count())
	assert.Equal(t, []string{"Alicia"}, l.Names())
}

func TestLedger_UUIDSpellingsAreOneEntry(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, t.TempDir())

	_, err := l.Observe(ctx, "0B7C5C1E-7D8A-4C52-9D1A-5A3C2A1B0E01", "Alice")
	require.NoError(t, err)
	isNew, err := l.Observe(ctx, "0b7c5c1e7d8a4c529d1a5a3c2a1b0e01", "Alice")
	require.NoError(t, err)

	assert.False(t, isNew)
	assert.Equal(t, []model.Actor{{ID: aliceID, Name: "Alice"}}, l.Actors())
}

func TestLedger_RejectsEmptyIdentifier(t *testing.T) {
	l := openLedger(t, t.TempDir())
	_, err := l.Observe(context.Background(), "  ", "Ghost")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
	assert.Zero(t, l.Count())
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	l := openLedger(t, dir)
	_, err := l.Observe(ctx, aliceID, "Alice")
	require.NoError(t, err)
	_, err = l.Observe(ctx, bobID, "Bob")
	require.NoError(t, err)
	before := l.ComputeDigest()

	reopened := openLedger(t, dir)
	assert.Equal(t, 2, reopened.Count())
	assert.Equal(t, before, reopened.ComputeDigest())

	isNew, err := reopened.Observe(ctx, bobID, "Bob")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestLedger_CorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fs.Path(SnapshotName), []byte(`["not", "a", "map"]`), 0o644))

	l, err := Open(context.Background(), fs)
	require.NoError(t, err)
	assert.Zero(t, l.Count())

	_, err = os.Stat(fs.Path(SnapshotName))
	assert.True(t, os.IsNotExist(err))
}

func TestDigest_OrderIndependent(t *testing.T) {
	forward := Digest([]model.Actor{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}})
	reverse := Digest([]model.Actor{{ID: "u2", Name: "Bob"}, {ID: "u1", Name: "Alice"}})
	assert.Equal(t, forward, reverse)

	renamed := Digest([]model.Actor{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bobby"}})
	assert.NotEqual(t, forward, renamed)

	grown := Digest([]model.Actor{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}, {ID: "u3", Name: "Cid"}})
	assert.NotEqual(t, forward, grown)
}

func TestDigest_KnownValue(t *testing.T) {
	got := Digest([]model.Actor{{ID: "u2", Name: "Bob"}, {ID: "u1", Name: "Alice"}})
	assert.Len(t, got, 64)
	assert.Equal(t, Digest([]model.Actor{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}}), got)

	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(nil), "empty population hashes the empty string")
}

func TestLedger_DigestInsertionOrderIndependent(t *testing.T) {
	ctx := context.Background()

	a := openLedger(t, t.TempDir())
	_, _ = a.Observe(ctx, aliceID, "Alice")
	_, _ = a.Observe(ctx, bobID, "Bob")

	b := openLedger(t, t.TempDir())
	_, _ = b.Observe(ctx, bobID, "Bob")
	_, _ = b.Observe(ctx, aliceID, "Alice")

	assert.Equal(t, a.ComputeDigest(), b.ComputeDigest())
}
