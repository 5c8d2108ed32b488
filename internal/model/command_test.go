package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunMode(t *testing.T) {
	tests := []struct {
		in   string
		want RunMode
	}{
		{"always", RunModeAlways},
		{"online", RunModeOnline},
		{"", RunModeOnline},
		{"ALWAYS", RunModeOnline},
		{"sometimes", RunModeOnline},
		{" always ", RunModeAlways},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRunMode(tt.in))
		})
	}
}

func TestCommand_UnmarshalWireFormat(t *testing.T) {
	raw := `{
		"id": 12,
		"order_id": 1001,
		"product_id": 55,
		"player_name": "Steve",
		"command": "give Steve diamond 1",
		"run_mode": "always",
		"created_at": "2025-01-02 03:04:05"
	}`

	var c Command
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, 12, c.ID)
	assert.Equal(t, 1001, c.OrderID)
	assert.Equal(t, 55, c.ProductID)
	assert.Equal(t, "Steve", c.PlayerName)
	assert.Equal(t, "give Steve diamond 1", c.Instruction)
	assert.Equal(t, RunModeAlways, c.RunMode)
	assert.Equal(t, "2025-01-02 03:04:05", c.CreatedAt)
	assert.False(t, c.RequiresPresence())
}

func TestCommand_MissingRunModeDefaultsToOnline(t *testing.T) {
	var c Command
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"player_name":"Alex","command":"say hi"}`), &c))
	assert.Equal(t, RunModeOnline, c.RunMode)
	assert.True(t, c.RequiresPresence())

	require.NoError(t, json.Unmarshal([]byte(`{"id":2,"run_mode":"weird"}`), &c))
	assert.Equal(t, RunModeOnline, c.RunMode)
}

func TestIDs(t *testing.T) {
	cmds := []Command{{ID: 3}, {ID: 1}, {ID: 2}}
	assert.Equal(t, []int{3, 1, 2}, IDs(cmds))
	assert.Empty(t, IDs(nil))
}

func TestOutcome_Status(t *testing.T) {
	assert.Equal(t, StatusExecuted, Outcome{Success: true}.Status())
	assert.Equal(t, StatusFailed, Outcome{Success: false}.Status())
}
