// Package bridge owns every component of the daemon and wires them
// together: storefront polling on one side, the game server on the other.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minewebstore/mwsync/internal/engine"
	"github.com/minewebstore/mwsync/internal/ledger"
	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/poller"
	"github.com/minewebstore/mwsync/internal/presence"
	"github.com/minewebstore/mwsync/internal/queue"
	"github.com/minewebstore/mwsync/internal/remote"
	"github.com/minewebstore/mwsync/internal/reporter"
	"github.com/minewebstore/mwsync/internal/store"
)

// Options configures a Bridge.
type Options struct {
	Server            string
	Source            remote.Source
	Invoker           engine.Invoker
	Snapshots         store.Snapshotter
	PollInterval      time.Duration
	RegistrationRetry time.Duration
	ReporterWorkers   int

	// CycleIDs overrides the UUIDv7 poll-cycle ids.
	CycleIDs poller.IDGenerator
}

// Bridge is the running daemon.
//
// Thread-safety model:
//   - HandleJoin(), HandleLeave(), Status(): safe from any goroutine
//   - Start(), Shutdown(): call once each, from the owning goroutine
type Bridge struct {
	server string
	source remote.Source

	loop       *engine.Loop
	presence   *presence.Tracker
	queue      *queue.Store
	ledger     *ledger.Ledger
	syncer     *ledger.Syncer
	processing *engine.Processing
	engine     *engine.Engine
	reporter   *reporter.Reporter
	poller     *poller.Poller
	registrar  *poller.Registrar

	// joinMu orders a join's drain against dispatches from the poller.
	joinMu sync.Mutex

	background sync.WaitGroup
	loopDone   chan struct{}
	started    bool
}

// New restores persisted state and builds every component. Nothing runs
// until Start.
func New(ctx context.Context, opts Options) (*Bridge, error) {
	if opts.Server == "" {
		return nil, errors.New("server name is required")
	}

	q, err := queue.Open(ctx, opts.Snapshots)
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(ctx, opts.Snapshots)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		server:     opts.Server,
		source:     opts.Source,
		loop:       engine.NewLoop(),
		presence:   presence.NewTracker(),
		queue:      q,
		ledger:     l,
		syncer:     ledger.NewSyncer(l, opts.Source, opts.Server),
		processing: engine.NewProcessing(),
		reporter:   reporter.New(opts.Source, opts.Server, opts.ReporterWorkers),
		loopDone:   make(chan struct{}),
	}
	b.engine = engine.New(b.loop, b.presence, opts.Invoker, b.queue, b.processing, b.reporter)

	var pollOpts []poller.Option
	if opts.CycleIDs != nil {
		pollOpts = append(pollOpts, poller.WithIDGenerator(opts.CycleIDs))
	}
	b.poller = poller.New(opts.Source, joinOrdered{b}, opts.Server, opts.PollInterval, pollOpts...)
	b.registrar = poller.NewRegistrar(opts.Source, opts.Server, opts.RegistrationRetry, b.poller)

	slog.Info("bridge ready",
		"server", opts.Server,
		"queued_commands", q.CountAll(),
		"known_players", l.Count())
	return b, nil
}

// Start runs the simulation loop and begins registration, then polling.
// Cancelling ctx stops registration and polling; call Shutdown afterwards.
func (b *Bridge) Start(ctx context.Context) {
	b.started = true
	go func() {
		defer close(b.loopDone)
		// The loop outlives ctx so Shutdown can let queued tasks finish.
		_ = b.loop.Run(context.WithoutCancel(ctx))
	}()
	b.registrar.Start(ctx)
}

// HandleJoin processes a player connecting. roster is every name online
// after the join.
//
// The roster is published and the player's queue drained without a poll
// dispatch in between, so commands fetched after the join run after the
// ones that were already waiting.
func (b *Bridge) HandleJoin(ctx context.Context, actor model.Actor, roster []string) {
	b.joinMu.Lock()
	b.presence.Rebuild(roster)
	n := b.engine.DrainFor(ctx, actor.Name)
	b.joinMu.Unlock()

	if n > 0 {
		slog.Info("running queued commands for joining player", "player", actor.Name, "commands", n)
	}

	isNew, err := b.ledger.Observe(ctx, actor.ID, actor.Name)
	if err != nil && !errors.Is(err, ledger.ErrEmptyIdentifier) {
		slog.Error("recording player failed", "player", actor.Name, "error", err)
	}
	if isNew {
		b.background.Add(1)
		go func() {
			defer b.background.Done()
			_, _ = b.syncer.Sync(context.WithoutCancel(ctx))
		}()
	}
}

// joinOrdered is the poller's view of the engine. Dispatch waits for a
// join in progress to finish draining.
type joinOrdered struct {
	b *Bridge
}

func (j joinOrdered) Processing() *engine.Processing {
	return j.b.engine.Processing()
}

func (j joinOrdered) Dispatch(ctx context.Context, cmd model.Command) {
	j.b.joinMu.Lock()
	defer j.b.joinMu.Unlock()
	j.b.engine.Dispatch(ctx, cmd)
}

// HandleLeave processes a player disconnecting.
func (b *Bridge) HandleLeave(_ context.Context, name string, roster []string) {
	b.presence.Rebuild(roster)
	slog.Debug("player left", "player", name, "online", b.presence.Count())
}

// SyncPlayers pushes the player population now, if it changed.
func (b *Bridge) SyncPlayers(ctx context.Context) (bool, error) {
	return b.syncer.Sync(ctx)
}

// Queued returns the commands waiting for player, oldest first.
func (b *Bridge) Queued(player string) []model.Command {
	return b.queue.PeekFor(player)
}

// Poller exposes the poller, for driving cycles by hand.
func (b *Bridge) Poller() *poller.Poller {
	return b.poller
}

// Loop exposes the simulation loop, for driving it by hand when Start
// was not called.
func (b *Bridge) Loop() *engine.Loop {
	return b.loop
}

// Settle runs the loop by hand until it is empty, letting each task's
// report land before the next task runs, then waits for background syncs
// and offline-queue writes. Use it only on a bridge that was not started.
func (b *Bridge) Settle(ctx context.Context) {
	b.background.Wait()
	for {
		for b.loop.RunOne(ctx) {
			b.reporter.Flush()
		}
		// Re-parked commands can be handed back to the loop.
		b.engine.Wait()
		if b.loop.Pending() == 0 {
			break
		}
	}
	b.reporter.Flush()
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Server          string `json:"server"`
	Registered      bool   `json:"registered"`
	HasCredential   bool   `json:"has_credential"`
	OnlinePlayers   int    `json:"online_players"`
	Processing      int    `json:"processing"`
	QueuedCommands  int    `json:"queued_commands"`
	QueuedPlayers   int    `json:"queued_players"`
	KnownPlayers    int    `json:"known_players"`
	LastSyncDigest  string `json:"last_sync_digest"`
	ReportsSent     int64  `json:"reports_sent"`
	ReportsFailed   int64  `json:"reports_failed"`
	PendingReports  int    `json:"pending_reports"`
	PendingLoopWork int    `json:"pending_loop_work"`
}

// Status returns the current state.
func (b *Bridge) Status() Status {
	return Status{
		Server:          b.server,
		Registered:      b.registrar.Registered(),
		HasCredential:   b.hasCredential(),
		OnlinePlayers:   b.presence.Count(),
		Processing:      b.processing.Len(),
		QueuedCommands:  b.queue.CountAll(),
		QueuedPlayers:   len(b.queue.Entries()),
		KnownPlayers:    b.ledger.Count(),
		LastSyncDigest:  b.syncer.LastDigest(),
		ReportsSent:     b.reporter.Sent(),
		ReportsFailed:   b.reporter.Failed(),
		PendingReports:  b.reporter.Pending(),
		PendingLoopWork: b.loop.Pending(),
	}
}

// credentialed is implemented by sources that hold a server key.
type credentialed interface {
	Registered() bool
}

func (b *Bridge) hasCredential() bool {
	if c, ok := b.source.(credentialed); ok {
		return c.Registered()
	}
	return b.registrar.Registered()
}

// Shutdown stops the daemon. The context passed to Start should already
// be cancelled. Queued loop tasks finish, background syncs finish, the
// offline queue is flushed, and pending reports are sent.
func (b *Bridge) Shutdown(ctx context.Context) error {
	slog.Info("bridge shutting down")

	if b.started {
		select {
		case <-b.registrar.Done():
		case <-ctx.Done():
		}
	}

	b.loop.Stop()
	if b.started {
		select {
		case <-b.loopDone:
		case <-ctx.Done():
			slog.Warn("simulation loop did not drain before shutdown deadline",
				"abandoned", b.loop.Pending())
		}
	} else {
		b.loop.RunPending(ctx)
	}

	b.engine.Wait()
	b.background.Wait()

	var errs []error
	if err := b.queue.Flush(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("flush offline queue: %w", err))
	}
	b.reporter.Close()

	st := b.Status()
	slog.Info("bridge stopped",
		"queued_commands", st.QueuedCommands,
		"reports_sent", st.ReportsSent,
		"reports_failed", st.ReportsFailed)
	return errors.Join(errs...)
}
