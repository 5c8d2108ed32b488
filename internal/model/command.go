package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RunMode decides whether a command needs its target player online.
type RunMode string

const (
	// RunModeAlways commands execute as soon as they are received.
	RunModeAlways RunMode = "always"
	// RunModeOnline commands execute only while the target player is online.
	RunModeOnline RunMode = "online"
)

// ParseRunMode maps a wire value to a RunMode.
// Anything other than "always" is treated as "online".
func ParseRunMode(s string) RunMode {
	if strings.TrimSpace(s) == string(RunModeAlways) {
		return RunModeAlways
	}
	return RunModeOnline
}

// Command is one purchased instruction to run against a player's session.
//
// JSON field names match the storefront's wire format and are reused for the
// offline queue snapshot, so a snapshot line looks exactly like a fetched
// command.
type Command struct {
	ID          int     `json:"id"`
	OrderID     int     `json:"order_id"`
	ProductID   int     `json:"product_id"`
	PlayerName  string  `json:"player_name"`
	Instruction string  `json:"command"`
	RunMode     RunMode `json:"run_mode"`
	CreatedAt   string  `json:"created_at"`
}

// UnmarshalJSON decodes a command and normalizes a missing or unknown
// run_mode to RunModeOnline.
func (c *Command) UnmarshalJSON(b []byte) error {
	type plain Command
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Command(p)
	c.RunMode = ParseRunMode(string(p.RunMode))
	return nil
}

// RequiresPresence reports whether the command may only run while its
// player is online.
func (c Command) RequiresPresence() bool {
	return c.RunMode != RunModeAlways
}

// String renders the command for logs.
func (c Command) String() string {
	return fmt.Sprintf("#%d %s %q for %s", c.ID, c.RunMode, c.Instruction, c.PlayerName)
}

// IDs returns the ids of the given commands in order.
func IDs(cmds []Command) []int {
	ids := make([]int, len(cmds))
	for i, c := range cmds {
		ids[i] = c.ID
	}
	return ids
}
