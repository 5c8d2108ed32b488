package engine

import (
	"context"
	"log/slog"

	"github.com/minewebstore/mwsync/internal/workqueue"
)

// Task is one unit of work for the simulation loop.
type Task struct {
	// Seq is stamped by Submit.
	Seq int64

	// Name labels the task in logs.
	Name string

	// Fn runs on the loop goroutine.
	Fn func(ctx context.Context)
}

// Loop is the simulation thread: a single goroutine that runs submitted
// tasks one at a time, in submission order.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - RunPending(): only when Run is not running (tests, one-shot tools)
type Loop struct {
	queue *workqueue.Queue[Task]
	clock *Clock
}

// NewLoop creates a loop with an empty task queue.
func NewLoop() *Loop {
	return &Loop{
		queue: workqueue.New[Task](),
		clock: NewClock(),
	}
}

// Submit queues fn to run on the loop. Returns false if the loop has been
// stopped.
func (l *Loop) Submit(name string, fn func(ctx context.Context)) bool {
	return l.queue.Push(Task{Seq: l.clock.Next(), Name: name, Fn: fn})
}

// Pending returns the number of tasks waiting to run.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// Run executes tasks until ctx is cancelled or Stop is called.
//
// After Stop, tasks already queued still run before Run returns. After ctx
// is cancelled, Run returns at once and queued tasks are abandoned.
//
// A panicking task is logged and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("simulation loop starting")

	for {
		task, ok := l.queue.TryPop()
		if ok {
			l.runTask(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("simulation loop stopping: context cancelled",
				"abandoned", l.queue.Len())
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel is closed by Stop, so this also fires on
			// shutdown; an empty closed queue means we are done.
			if l.queue.Closed() && l.queue.Len() == 0 {
				slog.Info("simulation loop stopping: queue closed")
				return nil
			}
		}
	}
}

// RunPending runs every queued task on the calling goroutine, including
// tasks those tasks submit, and returns how many ran.
func (l *Loop) RunPending(ctx context.Context) int {
	n := 0
	for l.RunOne(ctx) {
		n++
	}
	return n
}

// RunOne runs the oldest queued task on the calling goroutine. It reports
// false when nothing was queued.
func (l *Loop) RunOne(ctx context.Context) bool {
	task, ok := l.queue.TryPop()
	if !ok {
		return false
	}
	l.runTask(ctx, task)
	return true
}

// Stop rejects further submissions. Run returns once the queue is empty.
func (l *Loop) Stop() {
	l.queue.Close()
}

func (l *Loop) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("simulation task panicked",
				"task", task.Name, "seq", task.Seq, "panic", r)
		}
	}()

	slog.Debug("running simulation task", "task", task.Name, "seq", task.Seq)
	task.Fn(ctx)
}
