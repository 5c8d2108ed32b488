package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/minewebstore/mwsync/internal/ledger"
	"github.com/minewebstore/mwsync/internal/queue"
)

// PlayerQueue is the number of commands waiting for one player.
type PlayerQueue struct {
	Player   string `json:"player"`
	Commands int    `json:"commands"`
}

// StatusResult is the persisted state of a daemon.
type StatusResult struct {
	Server         string        `json:"server"`
	Backend        string        `json:"backend"`
	DataDir        string        `json:"data_dir"`
	KnownPlayers   int           `json:"known_players"`
	LedgerDigest   string        `json:"ledger_digest"`
	QueuedCommands int           `json:"queued_commands"`
	Queues         []PlayerQueue `json:"queues"`
}

// WriteText implements Texter.
func (r StatusResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Server:          %s\n", r.Server)
	fmt.Fprintf(w, "Storage:         %s (%s)\n", r.Backend, r.DataDir)
	fmt.Fprintf(w, "Known players:   %d\n", r.KnownPlayers)
	fmt.Fprintf(w, "Ledger digest:   %s\n", r.LedgerDigest)
	_, err := fmt.Fprintf(w, "Queued commands: %d\n", r.QueuedCommands)
	for _, q := range r.Queues {
		if _, err := fmt.Fprintf(w, "  %-16s %d\n", q.Player, q.Commands); err != nil {
			return err
		}
	}
	return err
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show persisted queue and player history",
		Long: `Show the state saved in the data directory: commands queued for
offline players and the size and digest of the player history.

This reads the snapshots, not a running daemon. A running daemon saves its
queue on every change, so the view is current for queued commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}
	snaps, err := openStore(cfg, formatter)
	if err != nil {
		return err
	}
	defer snaps.Close()

	ctx := cmd.Context()
	q, err := queue.Open(ctx, snaps)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "cannot read offline queue", err, nil)
	}
	l, err := ledger.Open(ctx, snaps)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "cannot read player history", err, nil)
	}

	result := StatusResult{
		Server:         cfg.Server.Name,
		Backend:        cfg.Storage.Backend,
		DataDir:        cfg.Storage.DataDir,
		KnownPlayers:   l.Count(),
		LedgerDigest:   l.ComputeDigest(),
		QueuedCommands: q.CountAll(),
		Queues:         []PlayerQueue{},
	}
	for _, e := range q.Entries() {
		result.Queues = append(result.Queues, PlayerQueue{Player: e.Player, Commands: len(e.Commands)})
	}

	return formatter.Success(result)
}
