package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/minewebstore/mwsync/internal/ledger"
	"github.com/minewebstore/mwsync/internal/remote"
)

// SyncResult reports a one-off player sync.
type SyncResult struct {
	Server  string `json:"server"`
	Players int    `json:"players"`
	Digest  string `json:"digest"`
}

// WriteText implements Texter.
func (r SyncResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "✓ Synced %d player(s) for %s (digest %s)\n", r.Players, r.Server, r.Digest)
	return err
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the saved player history to the storefront",
		Long: `Register with the storefront and push the saved player history once.

Use this after restoring a data directory or when the storefront's player
list is out of date. Stop the daemon first: both write the same snapshots.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}
	setupLogging(opts.Verbose || cfg.Debug.Enabled)

	snaps, err := openStore(cfg, formatter)
	if err != nil {
		return err
	}
	defer snaps.Close()

	ctx := cmd.Context()
	l, err := ledger.Open(ctx, snaps)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "cannot read player history", err, nil)
	}

	source := remote.NewHTTPSource(cfg.WordPress.BaseURL, cfg.WordPress.SecretKey, cfg.HTTPTimeout())
	if _, err := source.RegisterServer(ctx, cfg.Server.Name); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeSync, "registration failed", err, nil)
	}
	formatter.VerboseLog("registered %s, pushing %d player(s)", cfg.Server.Name, l.Count())

	if _, err := ledger.NewSyncer(l, source, cfg.Server.Name).Sync(ctx); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeSync, "player sync failed", err, nil)
	}

	return formatter.Success(SyncResult{
		Server:  cfg.Server.Name,
		Players: l.Count(),
		Digest:  l.ComputeDigest(),
	})
}
