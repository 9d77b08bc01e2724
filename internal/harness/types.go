package harness

import (
	"github.com/roach88/scorelog/internal/model"
)

// TraceEvent is the reducer's outcome for one action of the log.
type TraceEvent struct {
	Seq      int    `json:"seq"`
	ActionID string `json:"id"`
	Type     string `json:"type"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// State is the canonical value of the final state.
	State  model.Object `json:"state"`
	Digest string       `json:"digest"`

	Effective  []string `json:"effective"`
	UndoTarget string   `json:"undo_target,omitempty"`
	RedoTarget string   `json:"redo_target,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Effective: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the outcome of the next action.
func (r *Result) AddTrace(id, typ, outcome, reason string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      len(r.Trace) + 1,
		ActionID: id,
		Type:     typ,
		Outcome:  outcome,
		Reason:   reason,
	})
}
