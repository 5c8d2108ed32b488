// Package poller drives the fetch, acknowledge, dispatch cycle against the
// storefront, and holds it back until the server is registered.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minewebstore/mwsync/internal/engine"
	"github.com/minewebstore/mwsync/internal/model"
)

// CommandFeed is the part of the remote source the Poller needs.
type CommandFeed interface {
	FetchPending(ctx context.Context, server string) ([]model.Command, error)
	AcknowledgeRead(ctx context.Context, server string, ids []int) error
}

// Dispatcher receives acknowledged commands.
type Dispatcher interface {
	Processing() *engine.Processing
	Dispatch(ctx context.Context, cmd model.Command)
}

// IDGenerator produces correlation ids for poll cycles.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 cycle ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	ID         string
	Fetched    int
	Dispatched int
	Skipped    int
	Err        error
}

// Poller runs poll cycles.
type Poller struct {
	feed     CommandFeed
	dispatch Dispatcher
	server   string
	interval time.Duration
	ids      IDGenerator
}

// Option configures a Poller.
type Option func(*Poller)

// WithIDGenerator replaces the UUIDv7 cycle ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Poller) {
		p.ids = g
	}
}

// New creates a Poller that polls every interval.
func New(feed CommandFeed, d Dispatcher, server string, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		feed:     feed,
		dispatch: d,
		server:   server,
		interval: interval,
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the polling interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls once immediately and then every interval until ctx is done.
// A cycle in progress when ctx is cancelled runs to completion.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("command polling started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Cycle(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			slog.Info("command polling stopped")
			return
		case <-ticker.C:
		}
	}
}

// Cycle runs one fetch, acknowledge, dispatch cycle.
//
// Nothing is dispatched unless the whole batch was acknowledged in one
// call. A failed fetch or acknowledgement ends the cycle; the storefront
// still holds the commands and the next cycle fetches them again.
func (p *Poller) Cycle(ctx context.Context) CycleResult {
	res := CycleResult{ID: p.ids.Generate()}
	log := slog.With("cycle", res.ID)

	cmds, err := p.feed.FetchPending(ctx, p.server)
	if err != nil {
		log.Warn("fetching commands failed", "error", err)
		res.Err = err
		return res
	}
	res.Fetched = len(cmds)
	if len(cmds) == 0 {
		log.Debug("no pending commands")
		return res
	}

	ids := model.IDs(cmds)
	if err := p.feed.AcknowledgeRead(ctx, p.server, ids); err != nil {
		log.Warn("acknowledging commands failed, batch not executed",
			"commands", len(ids), "error", err)
		res.Err = err
		return res
	}
	log.Info("acknowledged commands", "commands", len(ids))

	processing := p.dispatch.Processing()
	for _, cmd := range cmds {
		if !processing.Add(cmd) {
			log.Warn("command already processing, skipping", "command_id", cmd.ID)
			res.Skipped++
			continue
		}
		p.dispatch.Dispatch(ctx, cmd)
		res.Dispatched++
	}
	return res
}
