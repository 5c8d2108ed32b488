package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/minewebstore/mwsync/internal/casemap"
	"github.com/minewebstore/mwsync/internal/config"
	"github.com/minewebstore/mwsync/internal/engine"
	"github.com/minewebstore/mwsync/internal/host"
	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/presence"
	"github.com/minewebstore/mwsync/internal/queue"
	"github.com/minewebstore/mwsync/internal/remote"
	"github.com/minewebstore/mwsync/internal/reporter"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions

	Execute bool

	// Invoker and Roster replace the RCON connection (for testing).
	Invoker engine.Invoker
	Roster  host.RosterSource
}

// PendingResult lists queued commands.
type PendingResult struct {
	Player   string          `json:"player,omitempty"`
	Commands []model.Command `json:"commands"`
}

// WriteText implements Texter.
func (r PendingResult) WriteText(w io.Writer) error {
	if len(r.Commands) == 0 {
		if r.Player != "" {
			_, err := fmt.Fprintf(w, "No queued commands for %s.\n", r.Player)
			return err
		}
		_, err := fmt.Fprintln(w, "No queued commands.")
		return err
	}
	for _, c := range r.Commands {
		if _, err := fmt.Fprintln(w, c.String()); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteResult reports a forced run of one player's queue.
type ExecuteResult struct {
	Player        string          `json:"player"`
	Online        bool            `json:"online"`
	Drained       int             `json:"drained"`
	Executed      int             `json:"executed"`
	Failed        int             `json:"failed"`
	Requeued      int             `json:"requeued"`
	ReportsFailed int64           `json:"reports_failed"`
	Outcomes      []model.Outcome `json:"outcomes"`
}

// WriteText implements Texter.
func (r ExecuteResult) WriteText(w io.Writer) error {
	if r.Drained == 0 {
		_, err := fmt.Fprintf(w, "No queued commands to execute for %s.\n", r.Player)
		return err
	}

	fmt.Fprintf(w, "Executing %d queued command(s) for %s...\n", r.Drained, r.Player)
	for _, o := range r.Outcomes {
		mark := "✓"
		if !o.Success {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s #%d %s\n", mark, o.CommandID, o.Message)
	}
	if !r.Online {
		fmt.Fprintf(w, "%s is not online; commands stay queued.\n", r.Player)
	}
	if r.ReportsFailed > 0 {
		fmt.Fprintf(w, "Warning: %d status report(s) did not reach the storefront.\n", r.ReportsFailed)
	}
	_, err := fmt.Fprintf(w, "Executed %d, failed %d, re-queued %d.\n", r.Executed, r.Failed, r.Requeued)
	return err
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return newPendingCommand(&PendingOptions{RootOptions: rootOpts})
}

func newPendingCommand(opts *PendingOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending [player]",
		Short: "List commands queued for offline players",
		Long: `List commands queued for offline players, oldest first.

With a player name, list only that player's commands. Names match without
regard to case.

With --execute, run the player's queued commands on the game server now and
report each result to the storefront. Commands for a player who is not
online stay queued. Stop the daemon first: both write the same snapshots.

Example:
  mwsync pending
  mwsync pending Steve --execute`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player := ""
			if len(args) == 1 {
				player = args[0]
			}
			if opts.Execute && player == "" {
				return NewExitError(ExitCommandError, "--execute needs a player name")
			}
			return runPending(opts, player, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "run the player's queued commands now")

	return cmd
}

func runPending(opts *PendingOptions, player string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	snaps, err := openStore(cfg, formatter)
	if err != nil {
		return err
	}
	defer snaps.Close()

	q, err := queue.Open(cmd.Context(), snaps)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "cannot read offline queue", err, nil)
	}

	if opts.Execute {
		return executePending(opts, cfg, q, player, cmd, formatter)
	}

	result := PendingResult{Player: player, Commands: []model.Command{}}
	if player != "" {
		result.Commands = append(result.Commands, q.PeekFor(player)...)
	} else {
		for _, e := range q.Entries() {
			result.Commands = append(result.Commands, e.Commands...)
		}
	}

	return formatter.Success(result)
}

// executePending drains one player's queue through the execution engine,
// driving the simulation loop on this goroutine.
func executePending(
	opts *PendingOptions,
	cfg *config.Config,
	q *queue.Store,
	player string,
	cmd *cobra.Command,
	formatter *OutputFormatter,
) error {
	ctx := cmd.Context()
	if len(q.PeekFor(player)) == 0 {
		return formatter.Success(ExecuteResult{Player: player, Outcomes: []model.Outcome{}})
	}
	setupLogging(opts.Verbose || cfg.Debug.Enabled)

	invoker, roster, closeHost, err := gameHost(cfg, opts.Invoker, opts.Roster, formatter)
	if err != nil {
		return err
	}
	defer closeHost()

	actors, err := roster.Roster(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGame, "cannot read the online roster", err, nil)
	}
	tracker := presence.NewTracker()
	names := make([]string, len(actors))
	session, online := player, false
	for i, a := range actors {
		names[i] = a.Name
		if !online && casemap.EqualFold(a.Name, player) {
			session, online = a.Name, true
		}
	}
	tracker.Rebuild(names)

	source := remote.NewHTTPSource(cfg.WordPress.BaseURL, cfg.WordPress.SecretKey, cfg.HTTPTimeout())
	if _, err := source.RegisterServer(ctx, cfg.Server.Name); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeSync, "registration failed", err, nil)
	}

	rep := reporter.New(source, cfg.Server.Name, 1)
	outcomes := &outcomeLog{next: rep}
	loop := engine.NewLoop()
	eng := engine.New(loop, tracker, invoker, q, engine.NewProcessing(), outcomes)

	formatter.VerboseLog("draining queue of %s (online=%v)", session, online)
	drained := eng.DrainFor(ctx, session)
	runUntilIdle(ctx, loop, eng)
	rep.Close()

	if err := q.Flush(context.WithoutCancel(ctx)); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "cannot save offline queue", err, nil)
	}

	result := ExecuteResult{
		Player:        session,
		Online:        online,
		Drained:       drained,
		Requeued:      len(q.PeekFor(session)),
		ReportsFailed: rep.Failed(),
		Outcomes:      outcomes.list(),
	}
	for _, o := range result.Outcomes {
		if o.Success {
			result.Executed++
		} else {
			result.Failed++
		}
	}
	return formatter.Success(result)
}

// runUntilIdle runs loop tasks until neither the loop nor the engine's
// background re-parks have work left.
func runUntilIdle(ctx context.Context, loop *engine.Loop, eng *engine.Engine) {
	for {
		loop.RunPending(ctx)
		eng.Wait()
		if loop.Pending() == 0 {
			return
		}
	}
}

// outcomeLog keeps every outcome for the result and forwards it to the
// storefront reporter.
type outcomeLog struct {
	mu       sync.Mutex
	outcomes []model.Outcome
	next     engine.Reporter
}

func (l *outcomeLog) Report(o model.Outcome) {
	l.mu.Lock()
	l.outcomes = append(l.outcomes, o)
	l.mu.Unlock()
	l.next.Report(o)
}

func (l *outcomeLog) list() []model.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Outcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}
