// Package engine decides what happens to each acknowledged command and runs
// it against the game.
//
// ARCHITECTURE:
//
// Simulation loop:
// The game server only tolerates one writer, so every invocation runs on a
// single goroutine (Loop.Run) that drains a FIFO of tasks. Background
// goroutines (the poller, join handling) never touch the game directly; they
// Submit tasks and move on.
//
// Command flow:
//  1. The poller adds an acknowledged command to the Processing set and
//     calls Dispatch.
//  2. Dispatch routes it: "always" commands and "online" commands whose
//     player is present are submitted to the loop; the rest leave Processing
//     and are parked in the offline queue.
//  3. On the loop, presence is checked before and after the invocation for
//     "online" commands, and the result is classified into an Outcome.
//  4. The command leaves Processing and the Outcome goes to the reporter.
//
// When a player joins, DrainFor moves their backlog back into Processing and
// submits it to the loop in queue order.
//
// A command is in exactly one place at any time: the Processing set, one
// player's offline queue, or in hand between the two.
package engine
