package cli

import (
	"context"
	"net/http"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/queue"
	"github.com/minewebstore/mwsync/internal/store"
	"github.com/minewebstore/mwsync/internal/testutil"
)

func TestPending_All(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")
	seedQueue(t, queuedCommands()...)

	out, err := execute(t, NewRootCommand(), "pending")
	require.NoError(t, err)

	golden(t).Assert(t, "pending_all", []byte(out))
}

func TestPending_OnePlayerJSON(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")
	seedQueue(t, queuedCommands()...)

	out, err := execute(t, NewRootCommand(), "pending", "steve", "--format", "json")
	require.NoError(t, err)

	golden(t).Assert(t, "pending_steve_json", []byte(out))
}

func TestPending_PlayerMatchIgnoresCase(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")
	seedQueue(t, queuedCommands()...)

	out, err := execute(t, NewRootCommand(), "pending", "ALEX")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 online")
	assert.Contains(t, out, "#2 online")
	assert.NotContains(t, out, "#3")
}

func TestPending_Empty(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")

	out, err := execute(t, NewRootCommand(), "pending")
	require.NoError(t, err)
	assert.Equal(t, "No queued commands.\n", out)

	out, err = execute(t, NewRootCommand(), "pending", "Herobrine")
	require.NoError(t, err)
	assert.Equal(t, "No queued commands for Herobrine.\n", out)
}

func pendingWithGame(invoker *testutil.FakeInvoker, roster staticRoster) *cobra.Command {
	return newPendingCommand(&PendingOptions{
		RootOptions: &RootOptions{Format: "text", ConfigPath: DefaultConfigPath},
		Invoker:     invoker,
		Roster:      roster,
	})
}

func TestPending_ExecuteRunsPlayerQueue(t *testing.T) {
	workspace(t)
	sf, srv := newStorefront(t)
	writeConfig(t, srv.URL)
	seedQueue(t, queuedCommands()...)

	invoker := testutil.NewFakeInvoker()
	invoker.Script("give Alex torch 32", testutil.Result{OK: false})
	roster := staticRoster{{ID: "853c80ef-3c37-49fd-aa49-938b674adae6", Name: "Alex"}}

	out, err := execute(t, pendingWithGame(invoker, roster), "alex", "--execute")
	require.NoError(t, err)
	golden(t).Assert(t, "pending_execute_alex", []byte(out))

	assert.Equal(t, []string{"give Alex bread 16", "give Alex torch 32"}, invoker.Calls())

	put1 := sf.requestsTo(http.MethodPut, "/commands/1")
	require.Len(t, put1, 1)
	assert.Equal(t, "executed", put1[0].Body["status"])
	put2 := sf.requestsTo(http.MethodPut, "/commands/2")
	require.Len(t, put2, 1)
	assert.Equal(t, "failed", put2[0].Body["status"])

	// The drained queue is saved: only Steve's command is left.
	fs, err := store.NewFileStore("data")
	require.NoError(t, err)
	q, err := queue.Open(context.Background(), fs)
	require.NoError(t, err)
	assert.Equal(t, 1, q.CountAll())
	assert.Equal(t, []int{3}, model.IDs(q.PeekFor("Steve")))
}

func TestPending_ExecuteOfflinePlayerKeepsQueue(t *testing.T) {
	workspace(t)
	sf, srv := newStorefront(t)
	writeConfig(t, srv.URL)
	seedQueue(t, queuedCommands()...)

	invoker := testutil.NewFakeInvoker()
	out, err := execute(t, pendingWithGame(invoker, staticRoster{}), "Steve", "--execute")
	require.NoError(t, err)

	assert.Equal(t, "Executing 1 queued command(s) for Steve...\n"+
		"Steve is not online; commands stay queued.\n"+
		"Executed 0, failed 0, re-queued 1.\n", out)
	assert.Empty(t, invoker.Calls())
	assert.Empty(t, sf.requestsTo(http.MethodPut, "/commands/3"))

	fs, err := store.NewFileStore("data")
	require.NoError(t, err)
	q, err := queue.Open(context.Background(), fs)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, model.IDs(q.PeekFor("steve")))
	assert.Equal(t, 3, q.CountAll())
}

func TestPending_ExecuteNothingQueued(t *testing.T) {
	workspace(t)
	sf, srv := newStorefront(t)
	writeConfig(t, srv.URL)

	out, err := execute(t, pendingWithGame(testutil.NewFakeInvoker(), staticRoster{}), "Herobrine", "--execute")
	require.NoError(t, err)
	assert.Equal(t, "No queued commands to execute for Herobrine.\n", out)
	assert.Empty(t, sf.requestsTo(http.MethodPost, "/register"))
}

func TestPending_ExecuteNeedsPlayer(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")

	_, err := execute(t, NewRootCommand(), "pending", "--execute")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
