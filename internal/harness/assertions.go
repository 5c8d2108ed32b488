package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, formatArgs(event.Args))
		}
	}

	return buf.String()
}

// matches reports whether event has type typ and carries every expected
// arg (subset match).
func matches(event TraceEvent, typ string, expected map[string]any) bool {
	if event.Type != typ {
		return false
	}
	for key, want := range expected {
		got, ok := event.Args[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// assertTraceContains checks if the trace contains a matching event.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a.Event, a.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %s", a.Event, formatArgs(a.Args)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that each listed event is matched after the
// previous one. Events don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for i, want := range a.Events {
		found := false
		for ; pos < len(trace); pos++ {
			if matches(trace[pos], want.Event, want.Args) {
				found = true
				pos++
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %s", formatMatches(a.Events)),
				Actual:   fmt.Sprintf("no %s %s after event %d", want.Event, formatArgs(want.Args), i),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if exactly Count events match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a.Event, a.Args) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", a.Count, a.Event, formatArgs(a.Args)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks Expect against the final state (subset match).
// With Player set, "queued" and "queued_ids" refer to that player.
func assertFinalState(state map[string]any, a Assertion) error {
	actual := state
	if a.Player != "" {
		actual = make(map[string]any, len(state)+2)
		for k, v := range state {
			actual[k] = v
		}
		if ps, ok := state[playerKey(a.Player)].(map[string]any); ok {
			for k, v := range ps {
				actual[k] = v
			}
		}
	}

	for _, key := range sortedKeys(a.Expect) {
		want := a.Expect[key]
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields present: %v", sortedKeys(actual)),
			}
		}
		if !valuesEqual(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", key, want),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

// valuesEqual compares a traced or state value with a YAML-decoded one.
// YAML decodes an empty flow sequence as []any{}, which equals a nil or
// empty traced list.
func valuesEqual(actual, expected any) bool {
	if a, ok := actual.([]any); ok {
		if e, ok := expected.([]any); ok && len(a) == 0 && len(e) == 0 {
			return true
		}
	}
	return reflect.DeepEqual(actual, expected)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(args))
	for _, k := range sortedKeys(args) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func formatMatches(ms []EventMatch) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.Event + " " + formatArgs(m.Args)
	}
	return strings.Join(parts, ", ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
