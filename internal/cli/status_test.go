package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewebstore/mwsync/internal/ledger"
	"github.com/minewebstore/mwsync/internal/store"
)

func TestStatus_Text(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")
	seedQueue(t, queuedCommands()...)

	out, err := execute(t, NewRootCommand(), "status")
	require.NoError(t, err)

	golden(t).Assert(t, "status_text", []byte(out))
}

func TestStatus_EmptyDataDir(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")

	out, err := execute(t, NewRootCommand(), "status", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   StatusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.QueuedCommands)
	assert.Empty(t, resp.Data.Queues)
	assert.Equal(t, ledger.Digest(nil), resp.Data.LedgerDigest)
}

func TestStatus_CountsLedger(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://shop.example.org")

	fs, err := store.NewFileStore("data")
	require.NoError(t, err)
	l, err := ledger.Open(context.Background(), fs)
	require.NoError(t, err)
	_, err = l.Observe(context.Background(), "069a79f4-44e9-4726-a5be-fca90e38aaf5", "Notch")
	require.NoError(t, err)

	out, err := execute(t, NewRootCommand(), "status", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data StatusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.KnownPlayers)
	assert.Equal(t, l.ComputeDigest(), resp.Data.LedgerDigest)
}

func TestStatus_MissingConfig(t *testing.T) {
	workspace(t)

	out, err := execute(t, NewRootCommand(), "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]: cannot load configuration")
}

func TestStatus_InvalidConfigListsEveryProblem(t *testing.T) {
	workspace(t)
	writeConfig(t, "https://yourdomain.com")
	t.Setenv("MWS_STORAGE_BACKEND", "postgres")

	out, err := execute(t, NewRootCommand(), "status")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]: invalid configuration mwsync.yaml")
	assert.Contains(t, out, "wordpress.base_url")
	assert.Contains(t, out, "storage.backend")
}
