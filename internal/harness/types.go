package harness

// Trace event types.
const (
	EventRegister = "register"
	EventFetch    = "fetch"
	EventAck      = "ack"
	EventInvoke   = "invoke"
	EventReport   = "report"
	EventSync     = "sync"
	EventJoin     = "join"
	EventLeave    = "leave"
)

// TraceEvent is one observable interaction. Args hold YAML-comparable
// values: int, string, bool and []any.
type TraceEvent struct {
	Seq  int64          `json:"seq"`
	Type string         `json:"type"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors lists failed assertions. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final bridge state used by final_state assertions.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func intsToAny(ids []int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
