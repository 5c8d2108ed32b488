package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRetryInterval is how long to wait between registration attempts.
const DefaultRetryInterval = 30 * time.Second

// Registerer is the part of the remote source the Registrar needs.
type Registerer interface {
	RegisterServer(ctx context.Context, server string) (string, error)
}

// Registrar registers the server with the storefront, retrying forever on
// a fixed delay, and starts the Poller only once registration succeeds.
type Registrar struct {
	source Registerer
	server string
	retry  time.Duration
	poller *Poller

	registered atomic.Bool
	attempts   atomic.Int64

	startOnce sync.Once
	done      chan struct{}
}

// NewRegistrar creates a Registrar. retry <= 0 means DefaultRetryInterval.
func NewRegistrar(source Registerer, server string, retry time.Duration, p *Poller) *Registrar {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &Registrar{
		source: source,
		server: server,
		retry:  retry,
		poller: p,
		done:   make(chan struct{}),
	}
}

// Registered reports whether registration has succeeded.
func (r *Registrar) Registered() bool {
	return r.registered.Load()
}

// Attempts returns how many registration attempts were made.
func (r *Registrar) Attempts() int64 {
	return r.attempts.Load()
}

// Start runs registration and then polling in the background. Calling
// Start again has no effect.
func (r *Registrar) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.done)
			r.Run(ctx)
		}()
	})
}

// Done is closed when the goroutine started by Start returns.
func (r *Registrar) Done() <-chan struct{} {
	return r.done
}

// Run blocks until ctx is done: it registers, then polls.
func (r *Registrar) Run(ctx context.Context) {
	if !r.register(ctx) {
		return
	}
	r.poller.Run(ctx)
}

// register retries until success or ctx is done.
func (r *Registrar) register(ctx context.Context) bool {
	for {
		r.attempts.Add(1)
		_, err := r.source.RegisterServer(context.WithoutCancel(ctx), r.server)
		if err == nil {
			r.registered.Store(true)
			slog.Info("server registered, polling can start", "server", r.server)
			return true
		}

		slog.Warn("server registration failed, command polling will not start",
			"server", r.server, "retry_in", r.retry, "error", err)

		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
