// Package harness runs reducer conformance scenarios.
//
// A scenario is a YAML file holding a literal action log and assertions
// about how the reducer treats it:
//
//	name: undo_then_redo
//	description: "An UNDO of an UNDO restores the original action"
//	validate: true
//	log:
//	  - id: a1
//	    type: score.add
//	    payload: { team: home, points: 2 }
//	  - id: u1
//	    type: undo
//	    payload: { refId: a1 }
//	assertions:
//	  - type: final_state
//	    path: scores.home
//	    expect: 0
//	  - type: trace_contains
//	    action: a1
//	    outcome: tombstoned
//
// # Assertion Types
//
//   - trace_contains: the action appears in the trace, optionally with an outcome
//   - trace_order: the listed actions appear in this relative order
//   - trace_count: exactly count actions have the given outcome
//   - final_state: the value at a dotted path of the final state
//   - effective: the exact list of non-tombstoned action ids
//   - undo_target, redo_target: what the undo and redo controls would pick
//
// Scenarios are deterministic: timestamps default to the log position and
// the reducer has no other inputs, so traces can be compared against golden
// files (see RunWithGolden).
package harness
