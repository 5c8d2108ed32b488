package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minewebstore/mwsync/internal/model"
	"github.com/minewebstore/mwsync/internal/store"
)

// Scenario is one end-to-end behaviour, driven step by step.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Server is the registered server name. Defaults to "survival".
	Server string `yaml:"server,omitempty"`

	// Backend is the snapshot backend, "file" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	Setup Setup  `yaml:"setup,omitempty"`
	Flow  []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the world before the flow starts. Setup joins are not traced.
type Setup struct {
	Online []Player `yaml:"online,omitempty"`
}

// Player identifies a game account.
type Player struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Purchase is a command the storefront will hand out.
type Purchase struct {
	ID      int    `yaml:"id"`
	OrderID int    `yaml:"order_id,omitempty"`
	Player  string `yaml:"player"`
	Command string `yaml:"command"`
	RunMode string `yaml:"run_mode,omitempty"`
}

// Model converts p to the wire model. An empty run mode is "online".
func (p Purchase) Model() model.Command {
	return model.Command{
		ID:          p.ID,
		OrderID:     p.OrderID,
		PlayerName:  p.Player,
		Instruction: p.Command,
		RunMode:     model.ParseRunMode(p.RunMode),
	}
}

// Step actions.
const (
	StepPurchase    = "purchase"
	StepPoll        = "poll"
	StepJoin        = "join"
	StepLeave       = "leave"
	StepScript      = "script"
	StepFailReports = "fail_reports"
	StepFailFetch   = "fail_fetch"
	StepFailAck     = "fail_ack"
	StepFailSync    = "fail_sync"
	StepRecover     = "recover"
	StepRestart     = "restart"
)

// Script results.
const (
	ResultOK    = "ok"
	ResultFalse = "false"
	ResultError = "error"
	ResultPanic = "panic"
)

// Step is one action in the flow. Which fields apply depends on Do.
type Step struct {
	Do string `yaml:"do"`

	// purchase
	Commands []Purchase `yaml:"commands,omitempty"`

	// join, leave
	Player *Player `yaml:"player,omitempty"`

	// script
	Command string `yaml:"command,omitempty"`
	Result  string `yaml:"result,omitempty"`
	Leave   string `yaml:"leave,omitempty"`

	// fail_reports: 0 fails every report
	ID int `yaml:"id,omitempty"`
}

// EventMatch selects trace events by type and a subset of args.
type EventMatch struct {
	Event string         `yaml:"event"`
	Args  map[string]any `yaml:"args,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with matching args exists
	// - "trace_order": matching events appear in the listed order
	// - "trace_count": exactly Count events match
	// - "final_state": Expect is a subset of the final state
	Type string `yaml:"type"`

	// Event and Args are used by trace_contains and trace_count.
	Event string         `yaml:"event,omitempty"`
	Args  map[string]any `yaml:"args,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Events is the expected order (used by trace_order).
	Events []EventMatch `yaml:"events,omitempty"`

	// Player narrows the queue keys of final_state to one player.
	Player string         `yaml:"player,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Server == "" {
		scenario.Server = "survival"
	}
	if scenario.Backend == "" {
		scenario.Backend = store.BackendFile
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Backend != store.BackendFile && s.Backend != store.BackendSQLite {
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, p := range s.Setup.Online {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("setup.online[%d]: id and name are required", i)
		}
	}
	for i := range s.Flow {
		if err := validateStep(i, &s.Flow[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st *Step) error {
	switch st.Do {
	case StepPurchase:
		if len(st.Commands) == 0 {
			return fmt.Errorf("flow[%d]: purchase needs commands", i)
		}
		for j, c := range st.Commands {
			if c.ID <= 0 || c.Player == "" || c.Command == "" {
				return fmt.Errorf("flow[%d].commands[%d]: id, player and command are required", i, j)
			}
		}
	case StepJoin:
		if st.Player == nil || st.Player.ID == "" || st.Player.Name == "" {
			return fmt.Errorf("flow[%d]: join needs player id and name", i)
		}
	case StepLeave:
		if st.Player == nil || st.Player.Name == "" {
			return fmt.Errorf("flow[%d]: leave needs player name", i)
		}
	case StepScript:
		if st.Command == "" {
			return fmt.Errorf("flow[%d]: script needs command", i)
		}
		switch st.Result {
		case "", ResultOK, ResultFalse, ResultError, ResultPanic:
		default:
			return fmt.Errorf("flow[%d]: unknown script result %q", i, st.Result)
		}
	case StepPoll, StepFailReports, StepFailFetch, StepFailAck, StepFailSync, StepRecover, StepRestart:
	case "":
		return fmt.Errorf("flow[%d]: do is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown step %q", i, st.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two events", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
