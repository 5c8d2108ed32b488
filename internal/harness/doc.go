// Package harness runs YAML scenarios against a real bridge wired to an
// in-memory storefront and game server.
//
// Every scenario gets a fresh data directory, a scripted storefront
// (testutil.FakeSource) and a scripted game (testutil.FakeInvoker). The
// bridge is never started: the harness drives polls and the simulation
// loop by hand, and waits for each status report before the next task
// runs, so traces are deterministic and can be compared against golden
// files.
//
// # Scenario Format
//
//	name: offline_purchase_runs_on_join
//	description: "An online-only purchase waits for its player"
//	server: survival          # optional, defaults to "survival"
//	setup:
//	  online:
//	    - {id: 853c80ef-3c37-49fd-aa49-938b674adae6, name: Alex}
//	flow:
//	  - do: purchase
//	    commands:
//	      - {id: 7, player: Steve, command: "give Steve diamond 1", run_mode: online}
//	  - do: poll
//	  - do: join
//	    player: {id: 069a79f4-44e9-4726-a5be-fca90e38aaf5, name: Steve}
//	assertions:
//	  - type: trace_contains
//	    event: report
//	    args: {id: 7, status: executed}
//	  - type: final_state
//	    expect: {queued: 0, processing: 0}
//
// # Steps
//
//   - purchase: make commands available to the next poll
//   - poll: run one poll cycle, then settle
//   - join / leave: change the roster and signal the bridge
//   - script: fix the game's answer to one instruction (ok, false, error,
//     panic); "leave" makes a player disconnect while it runs
//   - fail_reports / fail_fetch / fail_ack / fail_sync: make the storefront
//     reject calls ("recover" clears fetch, ack and sync failures)
//   - restart: shut the bridge down and restore it from its snapshots
//
// # Trace
//
// The trace records storefront calls (register, fetch, ack, report, sync),
// game invocations (invoke) and roster changes (join, leave), each stamped
// with a logical sequence number.
package harness
