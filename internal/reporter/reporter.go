// Package reporter sends command outcomes back to the storefront.
package reporter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/workqueue"
)

// StatusSink is the part of the remote source the Reporter needs.
type StatusSink interface {
	ReportStatus(ctx context.Context, server string, id int, status model.Status, message string) error
}

// Reporter delivers outcomes from a small pool of background workers so
// the simulation loop never waits on the network.
//
// Each outcome gets exactly one attempt. A failed report is logged and the
// outcome is dropped: there is no journal of unreported outcomes, so the
// storefront keeps showing that command as read but not finished.
//
// Thread-safety: Report is safe from any goroutine.
type Reporter struct {
	sink   StatusSink
	server string
	queue  *workqueue.Queue[model.Outcome]
	wg     sync.WaitGroup

	sent   atomic.Int64
	failed atomic.Int64

	mu          sync.Mutex
	idle        *sync.Cond
	outstanding int
}

// New starts a Reporter with the given number of workers (at least one).
func New(sink StatusSink, server string, workers int) *Reporter {
	if workers < 1 {
		workers = 1
	}
	r := &Reporter{
		sink:   sink,
		server: server,
		queue:  workqueue.New[model.Outcome](),
	}
	r.idle = sync.NewCond(&r.mu)
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Report queues an outcome for delivery and returns immediately.
func (r *Reporter) Report(o model.Outcome) {
	r.mu.Lock()
	r.outstanding++
	r.mu.Unlock()

	if !r.queue.Push(o) {
		r.done()
		r.failed.Add(1)
		slog.Error("reporter closed, outcome not reported",
			"command_id", o.CommandID, "status", o.Status())
	}
}

// Close stops accepting outcomes and waits until queued ones are sent.
func (r *Reporter) Close() {
	r.queue.Close()
	r.wg.Wait()
}

// Flush blocks until every outcome reported so far has been sent or has
// failed.
func (r *Reporter) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.outstanding > 0 {
		r.idle.Wait()
	}
}

func (r *Reporter) done() {
	r.mu.Lock()
	r.outstanding--
	if r.outstanding == 0 {
		r.idle.Broadcast()
	}
	r.mu.Unlock()
}

// Pending returns the number of outcomes waiting for a worker.
func (r *Reporter) Pending() int {
	return r.queue.Len()
}

// Sent returns how many reports the storefront accepted.
func (r *Reporter) Sent() int64 {
	return r.sent.Load()
}

// Failed returns how many outcomes were never reported.
func (r *Reporter) Failed() int64 {
	return r.failed.Load()
}

func (r *Reporter) work() {
	defer r.wg.Done()

	for {
		o, ok := r.queue.TryPop()
		if ok {
			r.send(o)
			continue
		}

		<-r.queue.Wait()
		if r.queue.Closed() && r.queue.Len() == 0 {
			return
		}
	}
}

func (r *Reporter) send(o model.Outcome) {
	defer r.done()

	err := r.sink.ReportStatus(context.Background(), r.server, o.CommandID, o.Status(), o.Message)
	if err != nil {
		r.failed.Add(1)
		slog.Error("failed to report command status, not retrying",
			"command_id", o.CommandID, "status", o.Status(), "error", err)
		return
	}

	r.sent.Add(1)
	slog.Debug("reported command status", "command_id", o.CommandID, "status", o.Status())
}
