// Package host adapts the game server to the engine: it runs instructions
// and watches who is online.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/minewebstore/mwsync/internal/model"
)

// DefaultFailurePatterns match the replies a Minecraft server gives when it
// rejects a command. A reply matching any of them makes Invoke return false.
var DefaultFailurePatterns = []string{
	`Unknown command`,
	`Unknown or incomplete command`,
	`Incorrect argument`,
	`No player was found`,
	`Expected`,
}

// Executor runs a console command and returns its output.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// RCONHost is the game server behind an RCON connection.
type RCONHost struct {
	exec     Executor
	failures []*regexp.Regexp
}

// NewRCONHost creates a host. patterns are regular expressions matched
// against command output; nil means DefaultFailurePatterns.
func NewRCONHost(exec Executor, patterns []string) (*RCONHost, error) {
	if patterns == nil {
		patterns = DefaultFailurePatterns
	}
	h := &RCONHost{exec: exec}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failure pattern %q: %w", p, err)
		}
		h.failures = append(h.failures, re)
	}
	return h, nil
}

// Invoke runs instruction. A leading slash is dropped, since the console
// does not take one.
func (h *RCONHost) Invoke(ctx context.Context, instruction string) (bool, error) {
	instruction = strings.TrimPrefix(strings.TrimSpace(instruction), "/")
	if instruction == "" {
		return false, fmt.Errorf("empty instruction")
	}

	out, err := h.exec.Execute(ctx, instruction)
	if err != nil {
		return false, err
	}

	for _, re := range h.failures {
		if re.MatchString(out) {
			slog.Debug("game rejected instruction",
				"instruction", instruction, "output", out, "pattern", re.String())
			return false, nil
		}
	}
	return true, nil
}

// Roster lists online players with their UUIDs.
func (h *RCONHost) Roster(ctx context.Context) ([]model.Actor, error) {
	out, err := h.exec.Execute(ctx, "list uuids")
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return ParseRoster(out), nil
}

var (
	formatCode = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)
	rosterPair = regexp.MustCompile(`([A-Za-z0-9_.\-]{1,32}) \(([0-9a-fA-F\-]{32,36})\)`)
)

// ParseRoster extracts "Name (uuid)" pairs from the output of
// "list uuids", e.g.
//
//	There are 2 of a max of 20 players online: Steve (8667ba71-b85a-4004-af54-457a9734eed7), Alex (ec561538-f3fd-461d-aff5-086b22154bce)
//
// Pairs whose UUID does not parse are skipped. The result is sorted by
// name.
func ParseRoster(out string) []model.Actor {
	out = formatCode.ReplaceAllString(out, "")
	if i := strings.Index(out, ":"); i >= 0 {
		out = out[i+1:]
	}

	var actors []model.Actor
	for _, m := range rosterPair.FindAllStringSubmatch(out, -1) {
		id, err := uuid.Parse(m[2])
		if err != nil {
			continue
		}
		actors = append(actors, model.Actor{ID: id.String(), Name: m[1]})
	}

	sort.Slice(actors, func(i, j int) bool { return actors[i].Name < actors[j].Name })
	return actors
}
