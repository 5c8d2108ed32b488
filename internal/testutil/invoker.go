package testutil

import (
	"context"
	"sync"
)

// Result scripts the game's answer to one instruction.
type Result struct {
	OK    bool
	Err   error
	Panic any

	// Before runs just before the result is returned, on the invoking
	// goroutine. Tests use it to make a player leave mid-command.
	Before func()
}

// FakeInvoker records instructions and answers them from a script.
// Unscripted instructions succeed.
//
// Thread-safety: safe for concurrent use.
type FakeInvoker struct {
	mu      sync.Mutex
	results map[string]Result
	calls   []string
}

// NewFakeInvoker creates an invoker where everything succeeds.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{results: make(map[string]Result)}
}

// Script sets the answer for instruction.
func (f *FakeInvoker) Script(instruction string, r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[instruction] = r
}

// Invoke implements engine.Invoker.
func (f *FakeInvoker) Invoke(_ context.Context, instruction string) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, instruction)
	r, scripted := f.results[instruction]
	f.mu.Unlock()

	if !scripted {
		return true, nil
	}
	if r.Before != nil {
		r.Before()
	}
	if r.Panic != nil {
		panic(r.Panic)
	}
	return r.OK, r.Err
}

// Calls returns the instructions invoked so far, in order.
func (f *FakeInvoker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}
