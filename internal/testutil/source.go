// Package testutil holds in-memory stand-ins for the storefront and the
// game server, shared by package tests and the scenario harness.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/remote"
)

var _ remote.Source = (*FakeSource)(nil)

// Call is one recorded call to FakeSource.
type Call struct {
	Op       string
	IDs      []int
	Status   model.Status
	Message  string
	Names    []string
	Previous string
}

// FakeSource is a scripted storefront.
//
// Commands added with Add are returned by every fetch until acknowledged,
// which is how the real storefront behaves. Set the *Err fields to make
// the corresponding call fail.
//
// Thread-safety: safe for concurrent use.
type FakeSource struct {
	mu sync.Mutex

	pending []model.Command
	key     string
	calls   []Call

	// RegisterFailures makes the next N registrations fail.
	RegisterFailures int
	FetchErr         error
	AckErr           error
	SyncErr          error
	// ReportErr fails reports for every command id in the map, or for all
	// commands when the map holds key 0.
	ReportErr map[int]error
}

// NewFakeSource creates a storefront with no pending commands.
func NewFakeSource() *FakeSource {
	return &FakeSource{ReportErr: make(map[int]error)}
}

// Add makes commands available to the next fetch.
func (f *FakeSource) Add(cmds ...model.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, cmds...)
}

// SetFetchErr sets FetchErr under the lock.
func (f *FakeSource) SetFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchErr = err
}

// SetAckErr sets AckErr under the lock.
func (f *FakeSource) SetAckErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AckErr = err
}

// SetSyncErr sets SyncErr under the lock.
func (f *FakeSource) SetSyncErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SyncErr = err
}

// SetRegisterFailures sets RegisterFailures under the lock.
func (f *FakeSource) SetRegisterFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RegisterFailures = n
}

// FailReport makes reports for id fail. id 0 fails every report.
func (f *FakeSource) FailReport(id int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReportErr[id] = err
}

// RegisterServer implements remote.Source.
func (f *FakeSource) RegisterServer(_ context.Context, server string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "register"})
	if f.RegisterFailures > 0 {
		f.RegisterFailures--
		return "", &remote.Error{Op: "register", StatusCode: 401, Message: "Invalid secret key"}
	}
	f.key = "key-" + server
	return f.key, nil
}

// FetchPending implements remote.Source.
func (f *FakeSource) FetchPending(_ context.Context, _ string) ([]model.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "fetch"})
	if f.key == "" {
		return nil, remote.ErrNotRegistered
	}
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	out := make([]model.Command, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

// AcknowledgeRead implements remote.Source.
func (f *FakeSource) AcknowledgeRead(_ context.Context, _ string, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "ack", IDs: append([]int(nil), ids...)})
	if f.key == "" {
		return remote.ErrNotRegistered
	}
	if f.AckErr != nil {
		return f.AckErr
	}

	claimed := make(map[int]bool, len(ids))
	for _, id := range ids {
		claimed[id] = true
	}
	kept := f.pending[:0]
	for _, c := range f.pending {
		if !claimed[c.ID] {
			kept = append(kept, c)
		}
	}
	f.pending = kept
	return nil
}

// ReportStatus implements remote.Source.
func (f *FakeSource) ReportStatus(_ context.Context, _ string, id int, status model.Status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "report", IDs: []int{id}, Status: status, Message: message})
	if f.key == "" {
		return remote.ErrNotRegistered
	}
	if err, ok := f.ReportErr[id]; ok {
		return err
	}
	if err, ok := f.ReportErr[0]; ok {
		return err
	}
	return nil
}

// SyncPlayers implements remote.Source.
func (f *FakeSource) SyncPlayers(_ context.Context, _ string, names []string, previous string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "sync", Names: append([]string(nil), names...), Previous: previous})
	if f.key == "" {
		return remote.ErrNotRegistered
	}
	return f.SyncErr
}

// Calls returns a copy of every recorded call.
func (f *FakeSource) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls with the given op.
func (f *FakeSource) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Pending returns the commands not yet acknowledged.
func (f *FakeSource) Pending() []model.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Command, len(f.pending))
	copy(out, f.pending)
	return out
}

// ErrUnavailable is a stock transport failure.
var ErrUnavailable = errors.New("storefront unavailable")
