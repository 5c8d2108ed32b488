// Package model defines the records exchanged between the storefront, the
// daemon's components and the game server.
//
// A Command is created by the storefront, observed once per fetch, and moves
// through Processing and (optionally) Queued before ending as Executed or
// Failed. Nothing keeps a Command after its outcome has been handed to the
// reporter.
package model
