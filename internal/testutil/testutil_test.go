package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/remote"
)

func TestFakeSource_RequiresRegistration(t *testing.T) {
	ctx := context.Background()
	f := NewFakeSource()

	_, err := f.FetchPending(ctx, "s")
	assert.ErrorIs(t, err, remote.ErrNotRegistered)

	key, err := f.RegisterServer(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "key-s", key)

	_, err = f.FetchPending(ctx, "s")
	assert.NoError(t, err)
}

func TestFakeSource_AckRemovesFromPending(t *testing.T) {
	ctx := context.Background()
	f := NewFakeSource()
	_, _ = f.RegisterServer(ctx, "s")
	f.Add(model.Command{ID: 1}, model.Command{ID: 2}, model.Command{ID: 3})

	require.NoError(t, f.AcknowledgeRead(ctx, "s", []int{1, 3}))
	assert.Equal(t, []int{2}, model.IDs(f.Pending()))

	f.SetAckErr(ErrUnavailable)
	assert.Error(t, f.AcknowledgeRead(ctx, "s", []int{2}))
	assert.Equal(t, []int{2}, model.IDs(f.Pending()), "failed ack claims nothing")

	acks := f.CallsTo("ack")
	require.Len(t, acks, 2)
	assert.Equal(t, []int{1, 3}, acks[0].IDs)
}

func TestFakeSource_RegisterFailuresCountDown(t *testing.T) {
	ctx := context.Background()
	f := NewFakeSource()
	f.SetRegisterFailures(2)

	_, err := f.RegisterServer(ctx, "s")
	assert.Error(t, err)
	_, err = f.RegisterServer(ctx, "s")
	assert.Error(t, err)
	_, err = f.RegisterServer(ctx, "s")
	assert.NoError(t, err)
}

func TestFakeInvoker_Script(t *testing.T) {
	inv := NewFakeInvoker()
	boom := errors.New("boom")
	inv.Script("bad", Result{Err: boom})
	inv.Script("nope", Result{OK: false})

	ok, err := inv.Invoke(context.Background(), "say hi")
	assert.True(t, ok)
	assert.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)

	ok, err = inv.Invoke(context.Background(), "nope")
	assert.False(t, ok)
	assert.NoError(t, err)

	assert.Equal(t, []string{"say hi", "bad", "nope"}, inv.Calls())
}

func TestSequenceIDs(t *testing.T) {
	g := NewSequenceIDs("")
	assert.Equal(t, "cycle-1", g.Generate())
	assert.Equal(t, "cycle-2", g.Generate())
}
