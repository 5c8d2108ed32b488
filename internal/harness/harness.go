package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/minewebstore/mwsync/internal/bridge"
	"github.com/minewebstore/mwsync/internal/engine"
	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/store"
	"github.com/minewebstore/mwsync/internal/testutil"
)

// Errors the scripted storefront and game return.
var (
	ErrGameUnreachable       = errors.New("game server unreachable")
	ErrStorefrontUnavailable = testutil.ErrUnavailable
)

// tracer collects events from every goroutine of a scenario.
type tracer struct {
	mu     sync.Mutex
	clock  *engine.Clock
	events []TraceEvent
}

func (t *tracer) record(typ string, args map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TraceEvent{Seq: t.clock.Next(), Type: typ, Args: args})
}

// reset drops everything recorded so far and restarts numbering. Setup
// is not part of the trace.
func (t *tracer) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
	t.clock = engine.NewClock()
}

func (t *tracer) snapshot() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.events)
}

func withError(args map[string]any, err error) map[string]any {
	args["ok"] = err == nil
	return args
}

// recordingSource traces every storefront call.
type recordingSource struct {
	*testutil.FakeSource
	trace *tracer
}

func (s *recordingSource) RegisterServer(ctx context.Context, server string) (string, error) {
	key, err := s.FakeSource.RegisterServer(ctx, server)
	s.trace.record(EventRegister, withError(map[string]any{"server": server}, err))
	return key, err
}

func (s *recordingSource) FetchPending(ctx context.Context, server string) ([]model.Command, error) {
	cmds, err := s.FakeSource.FetchPending(ctx, server)
	s.trace.record(EventFetch, withError(map[string]any{"ids": intsToAny(model.IDs(cmds))}, err))
	return cmds, err
}

func (s *recordingSource) AcknowledgeRead(ctx context.Context, server string, ids []int) error {
	err := s.FakeSource.AcknowledgeRead(ctx, server, ids)
	s.trace.record(EventAck, withError(map[string]any{"ids": intsToAny(ids)}, err))
	return err
}

func (s *recordingSource) ReportStatus(ctx context.Context, server string, id int, status model.Status, message string) error {
	err := s.FakeSource.ReportStatus(ctx, server, id, status, message)
	s.trace.record(EventReport, withError(map[string]any{
		"id":      id,
		"status":  string(status),
		"message": message,
	}, err))
	return err
}

func (s *recordingSource) SyncPlayers(ctx context.Context, server string, names []string, previous string) error {
	err := s.FakeSource.SyncPlayers(ctx, server, names, previous)
	s.trace.record(EventSync, withError(map[string]any{
		"players":  stringsToAny(names),
		"previous": previous,
	}, err))
	return err
}

// recordingInvoker traces every game invocation with its answer.
type recordingInvoker struct {
	*testutil.FakeInvoker
	trace *tracer
}

func (i *recordingInvoker) Invoke(ctx context.Context, instruction string) (ok bool, err error) {
	defer func() {
		args := map[string]any{"command": instruction}
		switch r := recover(); {
		case r != nil:
			args["result"] = ResultPanic
			i.trace.record(EventInvoke, args)
			panic(r)
		case err != nil:
			args["result"] = ResultError
		case !ok:
			args["result"] = ResultFalse
		default:
			args["result"] = ResultOK
		}
		i.trace.record(EventInvoke, args)
	}()
	return i.FakeInvoker.Invoke(ctx, instruction)
}

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	trace    *tracer
	source   *recordingSource
	invoker  *recordingInvoker
	snaps    store.Snapshotter
	bridge   *bridge.Bridge

	// online is the roster by name, in join order.
	online []Player
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh temporary data directory. Sequence
// numbers and poll cycle ids are deterministic, so the trace can be
// compared against a golden file.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "mwsync-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	defer os.RemoveAll(dir)

	snaps, err := store.Open(scenario.Backend, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer snaps.Close()

	tr := &tracer{clock: engine.NewClock()}
	h := &Harness{
		scenario: scenario,
		trace:    tr,
		source:   &recordingSource{FakeSource: testutil.NewFakeSource(), trace: tr},
		invoker:  &recordingInvoker{FakeInvoker: testutil.NewFakeInvoker(), trace: tr},
		snaps:    snaps,
	}

	ctx := context.Background()
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	if _, err := h.source.RegisterServer(ctx, scenario.Server); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	for _, p := range scenario.Setup.Online {
		h.setOnline(p)
		h.bridge.HandleJoin(ctx, model.Actor{ID: p.ID, Name: p.Name}, h.roster())
	}
	h.bridge.Settle(ctx)
	tr.reset()

	for i, step := range scenario.Flow {
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("flow step %d (%s): %w", i, step.Do, err)
		}
	}

	result := NewResult()
	result.Trace = tr.snapshot()
	result.State = h.state()
	for _, a := range scenario.Assertions {
		if a.Type == AssertFinalState && a.Player != "" {
			cmds := h.bridge.Queued(a.Player)
			result.State[playerKey(a.Player)] = map[string]any{
				"queued":     len(cmds),
				"queued_ids": intsToAny(model.IDs(cmds)),
			}
		}
	}

	if err := h.bridge.Shutdown(ctx); err != nil {
		return nil, fmt.Errorf("shutdown: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) open(ctx context.Context) error {
	b, err := bridge.New(ctx, bridge.Options{
		Server:          h.scenario.Server,
		Source:          h.source,
		Invoker:         h.invoker,
		Snapshots:       h.snaps,
		PollInterval:    time.Hour,
		ReporterWorkers: 1,
		CycleIDs:        testutil.NewSequenceIDs("cycle"),
	})
	if err != nil {
		return fmt.Errorf("failed to build bridge: %w", err)
	}
	h.bridge = b
	return nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch step.Do {
	case StepPurchase:
		for _, p := range step.Commands {
			h.source.Add(p.Model())
		}

	case StepPoll:
		h.bridge.Poller().Cycle(ctx)
		h.bridge.Settle(ctx)

	case StepJoin:
		p := *step.Player
		h.setOnline(p)
		h.trace.record(EventJoin, map[string]any{"name": p.Name})
		h.bridge.HandleJoin(ctx, model.Actor{ID: p.ID, Name: p.Name}, h.roster())
		h.bridge.Settle(ctx)

	case StepLeave:
		h.leave(ctx, step.Player.Name)
		h.bridge.Settle(ctx)

	case StepScript:
		h.invoker.Script(step.Command, h.scriptResult(ctx, step))

	case StepFailReports:
		h.source.FailReport(step.ID, ErrStorefrontUnavailable)
	case StepFailFetch:
		h.source.SetFetchErr(ErrStorefrontUnavailable)
	case StepFailAck:
		h.source.SetAckErr(ErrStorefrontUnavailable)
	case StepFailSync:
		h.source.SetSyncErr(ErrStorefrontUnavailable)
	case StepRecover:
		h.source.SetFetchErr(nil)
		h.source.SetAckErr(nil)
		h.source.SetSyncErr(nil)

	case StepRestart:
		if err := h.bridge.Shutdown(ctx); err != nil {
			return err
		}
		if err := h.open(ctx); err != nil {
			return err
		}
		// The first roster poll after a restart reports everyone online
		// as joining.
		for _, p := range h.online {
			h.trace.record(EventJoin, map[string]any{"name": p.Name})
			h.bridge.HandleJoin(ctx, model.Actor{ID: p.ID, Name: p.Name}, h.roster())
		}
		h.bridge.Settle(ctx)

	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
	return nil
}

func (h *Harness) scriptResult(ctx context.Context, step Step) testutil.Result {
	var r testutil.Result
	switch step.Result {
	case "", ResultOK:
		r.OK = true
	case ResultFalse:
	case ResultError:
		r.Err = ErrGameUnreachable
	case ResultPanic:
		r.Panic = "boom"
	}
	if step.Leave != "" {
		name := step.Leave
		r.Before = func() { h.leave(ctx, name) }
	}
	return r
}

func (h *Harness) leave(ctx context.Context, name string) {
	h.online = slices.DeleteFunc(h.online, func(p Player) bool { return p.Name == name })
	h.trace.record(EventLeave, map[string]any{"name": name})
	h.bridge.HandleLeave(ctx, name, h.roster())
}

func (h *Harness) setOnline(p Player) {
	for i, o := range h.online {
		if o.ID == p.ID {
			h.online[i] = p
			return
		}
	}
	h.online = append(h.online, p)
}

func (h *Harness) roster() []string {
	names := make([]string, len(h.online))
	for i, p := range h.online {
		names[i] = p.Name
	}
	return names
}

func playerKey(name string) string {
	return "player:" + name
}

// state captures what final_state assertions can check.
func (h *Harness) state() map[string]any {
	st := h.bridge.Status()
	return map[string]any{
		"processing":         st.Processing,
		"queued":             st.QueuedCommands,
		"queued_players":     st.QueuedPlayers,
		"known_players":      st.KnownPlayers,
		"online":             st.OnlinePlayers,
		"reports_sent":       int(st.ReportsSent),
		"reports_failed":     int(st.ReportsFailed),
		"storefront_pending": len(h.source.Pending()),
	}
}
