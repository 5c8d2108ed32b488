package testutil

import (
	"sync"

	"github.com/minewebstore/mwsync/internal/model"
)

// RecordingReporter collects outcomes synchronously.
type RecordingReporter struct {
	mu       sync.Mutex
	outcomes []model.Outcome
}

// Report implements engine.Reporter.
func (r *RecordingReporter) Report(o model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// Outcomes returns a copy of the outcomes seen so far.
func (r *RecordingReporter) Outcomes() []model.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// ByID returns the outcome for id, if any.
func (r *RecordingReporter) ByID(id int) (model.Outcome, bool) {
	for _, o := range r.Outcomes() {
		if o.CommandID == id {
			return o, true
		}
	}
	return model.Outcome{}, false
}
