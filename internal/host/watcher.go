package host

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/minewebstore/mwsync/internal/model"
)

// RosterSource lists online players.
type RosterSource interface {
	Roster(ctx context.Context) ([]model.Actor, error)
}

// Handler receives join and leave signals, each with the full roster of
// names online after the change.
type Handler interface {
	HandleJoin(ctx context.Context, actor model.Actor, roster []string)
	HandleLeave(ctx context.Context, name string, roster []string)
}

// RosterWatcher polls the roster and turns differences into join and
// leave signals. Players already online at the first poll count as
// joining.
type RosterWatcher struct {
	source   RosterSource
	handler  Handler
	interval time.Duration

	known map[string]model.Actor // by id; touched only by the Run goroutine
}

// NewRosterWatcher creates a watcher polling every interval.
func NewRosterWatcher(source RosterSource, handler Handler, interval time.Duration) *RosterWatcher {
	return &RosterWatcher{
		source:   source,
		handler:  handler,
		interval: interval,
		known:    make(map[string]model.Actor),
	}
}

// Run polls until ctx is done.
func (w *RosterWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil {
			slog.Warn("roster poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches the roster once and emits leaves, then joins. On error no
// signals are emitted and the previous roster is kept.
func (w *RosterWatcher) Poll(ctx context.Context) error {
	current, err := w.source.Roster(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]model.Actor, len(current))
	names := make([]string, 0, len(current))
	for _, a := range current {
		next[a.ID] = a
		names = append(names, a.Name)
	}

	var left []model.Actor
	var joined []model.Actor
	for id, a := range w.known {
		if n, ok := next[id]; !ok || n.Name != a.Name {
			left = append(left, a)
		}
	}
	for _, a := range current {
		if k, ok := w.known[a.ID]; !ok || k.Name != a.Name {
			joined = append(joined, a)
		}
	}
	w.known = next
	sort.Slice(left, func(i, j int) bool { return left[i].Name < left[j].Name })

	for _, a := range left {
		w.handler.HandleLeave(ctx, a.Name, names)
	}
	for _, a := range joined {
		w.handler.HandleJoin(ctx, a, names)
	}
	return nil
}
