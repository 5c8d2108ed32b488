package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/queue"
	"github.com/minewebstore/mwsync/internal/store"
)

// pkgDir is the package directory, captured before any test changes the
// working directory.
var pkgDir, _ = os.Getwd()

// workspace changes into a fresh directory so config and data paths in
// output are stable.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
	return dir
}

func writeConfig(t *testing.T, baseURL string) {
	t.Helper()
	cfg := `wordpress:
  base_url: "` + baseURL + `"
  secret_key: "s3cr3t"
  timeout_seconds: 5
server:
  name: "survival"
  poll_interval: 1
  registration_retry: 1
host:
  rcon_address: "127.0.0.1:25575"
  roster_interval: 1
storage:
  backend: file
  data_dir: data
reporter:
  workers: 1
`
	require.NoError(t, os.WriteFile(DefaultConfigPath, []byte(cfg), 0o644))
}

func seedQueue(t *testing.T, cmds ...model.Command) {
	t.Helper()
	fs, err := store.NewFileStore("data")
	require.NoError(t, err)
	q, err := queue.Open(context.Background(), fs)
	require.NoError(t, err)
	for _, c := range cmds {
		_, _, err := q.Enqueue(context.Background(), c)
		require.NoError(t, err)
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// safeBuffer is a bytes.Buffer safe to write from the daemon goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(filepath.Join(pkgDir, "testdata", "golden")),
		goldie.WithNameSuffix(".golden"),
	)
}

func queuedCommands() []model.Command {
	return []model.Command{
		{ID: 1, OrderID: 1001, ProductID: 55, PlayerName: "Alex", Instruction: "give Alex bread 16", RunMode: model.RunModeOnline, CreatedAt: "2026-03-01 12:00:00"},
		{ID: 2, OrderID: 1001, ProductID: 56, PlayerName: "alex", Instruction: "give Alex torch 32", RunMode: model.RunModeOnline, CreatedAt: "2026-03-01 12:00:00"},
		{ID: 3, OrderID: 1002, ProductID: 57, PlayerName: "Steve", Instruction: "kit starter Steve", RunMode: model.RunModeOnline, CreatedAt: "2026-03-02 08:30:00"},
	}
}

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// storefront is a minimal stand-in for the WordPress plugin.
type storefront struct {
	t  *testing.T
	mu sync.Mutex

	pending  []model.Command
	requests []recordedRequest
	noPlugin bool
}

func newStorefront(t *testing.T, pending ...model.Command) (*storefront, *httptest.Server) {
	sf := &storefront{t: t, pending: pending}
	srv := httptest.NewServer(http.HandlerFunc(sf.serve))
	t.Cleanup(srv.Close)
	return sf, srv
}

func (sf *storefront) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	path := strings.TrimPrefix(r.URL.Path, "/wp-json/mcapi/v1")

	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.requests = append(sf.requests, recordedRequest{Method: r.Method, Path: path, Body: body})

	w.Header().Set("Content-Type", "application/json")
	switch {
	case sf.noPlugin:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"rest_no_route","message":"No route was found matching the URL and request method."}`)
	case r.Method == http.MethodGet && path == "/status":
		_, _ = io.WriteString(w, `{"success":true,"plugin":"MWS API","version":"1.2.0","status":"active","database_ready":true,"secret_configured":true}`)
	case r.Method == http.MethodPost && path == "/register":
		_, _ = io.WriteString(w, `{"success":true,"server_key":"key-1","message":"Server registered"}`)
	case r.Method == http.MethodGet && path == "/commands":
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "commands": sf.pending, "count": len(sf.pending)})
	case r.Method == http.MethodPost && path == "/commands/read":
		n := len(sf.pending)
		sf.pending = nil
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "updated_count": n})
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/commands/"):
		_, _ = io.WriteString(w, `{"success":true}`)
	case r.Method == http.MethodPost && path == "/players":
		_, _ = io.WriteString(w, `{"success":true,"hash":"h","updated":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"rest_no_route","message":"No route"}`)
	}
}

func (sf *storefront) requestsTo(method, path string) []recordedRequest {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	var out []recordedRequest
	for _, r := range sf.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}
