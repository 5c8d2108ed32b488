package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/workqueue"
)

// Presence answers whether a session is connected right now.
type Presence interface {
	IsOnline(name string) bool
}

// Invoker runs one instruction against the game. It returns the game's
// success signal, or an error when the instruction could not be run at all.
type Invoker interface {
	Invoke(ctx context.Context, instruction string) (bool, error)
}

// OfflineQueue parks commands for players who are not online.
type OfflineQueue interface {
	Enqueue(ctx context.Context, cmd model.Command) (key string, depth int, err error)
	DrainFor(ctx context.Context, player string) ([]model.Command, error)
}

// Reporter receives terminal outcomes. Report must not block.
type Reporter interface {
	Report(outcome model.Outcome)
}

// Engine routes acknowledged commands and runs them on the simulation loop.
//
// Thread-safety model:
//   - Dispatch(), DrainFor(): safe from any goroutine
//   - execute(): runs only on the Loop goroutine
type Engine struct {
	loop       *Loop
	presence   Presence
	invoker    Invoker
	queue      OfflineQueue
	processing *Processing
	reporter   Reporter

	// Commands re-parked from the loop are written by one background
	// goroutine, in the order the loop gave them up, so file I/O never
	// stalls the game and a player's queue keeps its order.
	parkMu      sync.Mutex
	parkIdle    *sync.Cond
	parking     *workqueue.Queue[parkJob]
	parkRunning bool
	outstanding int
}

type parkJob struct {
	ctx    context.Context
	cmd    model.Command
	target string
}

// New creates an Engine. The caller runs loop.
func New(
	loop *Loop,
	presence Presence,
	invoker Invoker,
	queue OfflineQueue,
	processing *Processing,
	reporter Reporter,
) *Engine {
	e := &Engine{
		loop:       loop,
		presence:   presence,
		invoker:    invoker,
		queue:      queue,
		processing: processing,
		reporter:   reporter,
		parking:    workqueue.New[parkJob](),
	}
	e.parkIdle = sync.NewCond(&e.parkMu)
	return e
}

// Processing returns the engine's Processing set.
func (e *Engine) Processing() *Processing {
	return e.processing
}

// Dispatch routes one command that is already in the Processing set.
//
// "always" commands, and "online" commands whose player is connected, are
// handed to the simulation loop. Other commands leave Processing and are
// parked in the offline queue; that is not a failure and nothing is
// reported for them.
func (e *Engine) Dispatch(ctx context.Context, cmd model.Command) {
	if cmd.RequiresPresence() && !e.presence.IsOnline(cmd.PlayerName) {
		slog.Debug("player offline, parking command",
			"command_id", cmd.ID, "player", cmd.PlayerName)
		e.park(ctx, cmd)
		return
	}

	e.submit(ctx, cmd, cmd.PlayerName)
}

// DrainFor moves every command queued for a joining player back into
// Processing and submits them to the loop in queue order.
//
// session is the name the player is connected under. Drained commands are
// checked for presence against it, so a purchaser's different casing does
// not bounce the command straight back into the queue.
//
// Re-parks still in flight from the loop are written first, so none of
// them lands in the queue after it was drained.
func (e *Engine) DrainFor(ctx context.Context, session string) int {
	e.Wait()
	return e.drain(ctx, session)
}

func (e *Engine) drain(ctx context.Context, session string) int {
	cmds, err := e.queue.DrainFor(ctx, session)
	if err != nil {
		// The commands were removed from memory; running them still beats
		// leaving them stranded until the next restart.
		slog.Error("offline queue drain was not persisted", "player", session, "error", err)
	}

	for _, cmd := range cmds {
		if !e.processing.Add(cmd) {
			slog.Warn("drained command already processing, skipping",
				"command_id", cmd.ID, "player", session)
			continue
		}
		e.submit(ctx, cmd, session)
	}
	return len(cmds)
}

// Wait blocks until offline-queue writes started from the loop finish.
func (e *Engine) Wait() {
	e.parkMu.Lock()
	defer e.parkMu.Unlock()
	for e.outstanding > 0 {
		e.parkIdle.Wait()
	}
}

// repark hands cmd to the background parker. Called on the loop goroutine.
func (e *Engine) repark(ctx context.Context, cmd model.Command, target string) {
	e.parkMu.Lock()
	defer e.parkMu.Unlock()

	e.parking.Push(parkJob{ctx: context.WithoutCancel(ctx), cmd: cmd, target: target})
	e.outstanding++
	if !e.parkRunning {
		e.parkRunning = true
		go e.runParks()
	}
}

// runParks writes re-parked commands one at a time until none are left.
func (e *Engine) runParks() {
	for {
		e.parkMu.Lock()
		job, ok := e.parking.TryPop()
		if !ok {
			e.parkRunning = false
			e.parkMu.Unlock()
			return
		}
		e.parkMu.Unlock()

		e.park(job.ctx, job.cmd)
		if e.presence.IsOnline(job.target) {
			// Back before the write landed: hand the queue out again.
			e.drain(job.ctx, job.target)
		}

		e.parkMu.Lock()
		e.outstanding--
		if e.outstanding == 0 {
			e.parkIdle.Broadcast()
		}
		e.parkMu.Unlock()
	}
}

func (e *Engine) submit(ctx context.Context, cmd model.Command, target string) {
	ok := e.loop.Submit(fmt.Sprintf("command %d", cmd.ID), func(ctx context.Context) {
		e.execute(ctx, cmd, target)
	})
	if !ok {
		slog.Warn("simulation loop stopped, parking command",
			"command_id", cmd.ID, "player", cmd.PlayerName)
		e.park(ctx, cmd)
	}
}

// park moves cmd from Processing into the offline queue.
func (e *Engine) park(ctx context.Context, cmd model.Command) {
	key, depth, err := e.queue.Enqueue(ctx, cmd)
	if err != nil {
		slog.Error("queued command was not persisted",
			"command_id", cmd.ID, "player", key, "error", err)
	}
	e.processing.Remove(cmd.ID)
	slog.Debug("command parked", "command_id", cmd.ID, "player", key, "depth", depth)
}

// execute runs on the loop goroutine.
func (e *Engine) execute(ctx context.Context, cmd model.Command, target string) {
	online := cmd.RequiresPresence()

	if online && !e.presence.IsOnline(target) {
		// Gone between dispatch and now. Not executed, so not failed.
		slog.Info("player left before execution, re-queueing",
			"command_id", cmd.ID, "player", target)
		e.repark(ctx, cmd, target)
		return
	}

	ok, err := e.invoke(ctx, cmd)

	switch {
	case err != nil:
	case !ok:
		err = newReturnedFalse(cmd.ID)
	case online && !e.presence.IsOnline(target):
		err = newActorLeft(cmd.ID, target)
	}

	e.finish(cmd, err)
}

// invoke calls the invoker, turning a panic into an ExecutionError.
func (e *Engine) invoke(ctx context.Context, cmd model.Command) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, newInvocationPanic(cmd.ID, r)
		}
	}()

	ok, err = e.invoker.Invoke(ctx, cmd.Instruction)
	if err != nil {
		return false, newInvocationFailed(cmd.ID, err)
	}
	return ok, nil
}

// finish removes cmd from Processing and hands the outcome to the
// reporter. Removal happens whether or not the report later succeeds.
func (e *Engine) finish(cmd model.Command, err error) {
	e.processing.Remove(cmd.ID)

	outcome := model.Outcome{CommandID: cmd.ID, Success: true, Message: "Command executed successfully"}
	if err != nil {
		outcome.Success = false
		outcome.Message = err.Error()
		var ee *ExecutionError
		if errors.As(err, &ee) {
			outcome.Message = ee.Message
		}
		slog.Warn("command failed",
			"command_id", cmd.ID, "player", cmd.PlayerName, "code", CodeOf(err), "error", err)
	} else {
		slog.Info("command executed", "command_id", cmd.ID, "player", cmd.PlayerName)
	}

	e.reporter.Report(outcome)
}
