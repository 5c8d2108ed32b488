// Package remote talks to the storefront that sells commands.
//
// Source is the contract the rest of the daemon depends on. HTTPSource
// implements it against the WordPress plugin's REST API (mcapi/v1).
package remote

import (
	"context"

	"github.com/minewebstore/mwsync/internal/model"
)

// Source is the storefront as seen by the daemon.
//
// Every method except RegisterServer requires a prior successful
// registration; implementations return ErrNotRegistered otherwise.
type Source interface {
	// RegisterServer announces this server and returns the server-scoped
	// credential used by every other call.
	RegisterServer(ctx context.Context, server string) (string, error)

	// FetchPending returns commands waiting for this server.
	FetchPending(ctx context.Context, server string) ([]model.Command, error)

	// AcknowledgeRead claims a batch of commands in a single call.
	AcknowledgeRead(ctx context.Context, server string, ids []int) error

	// ReportStatus records the terminal outcome of one command.
	ReportStatus(ctx context.Context, server string, id int, status model.Status, message string) error

	// SyncPlayers replaces the storefront's list of known players.
	// previousDigest is the digest of the last list accepted, or "".
	SyncPlayers(ctx context.Context, server string, names []string, previousDigest string) error
}
