// Package reducer derives game state from an action log.
//
// Reduction is two passes over the log. The first walks backward and marks
// the actions neutralized by effective UNDOs (tombstones). An UNDO that is
// itself tombstoned has no effect, which is how redo works: a redo is an
// UNDO whose target is an earlier UNDO. The second pass walks forward and
// applies every remaining generative action through its registered handler.
//
// The same log always produces the same state on every device. Handlers
// are pure functions of (state, payload) and never see wall-clock time,
// randomness, or map iteration order.
package reducer
