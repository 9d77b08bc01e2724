package reducer

import (
	"fmt"
	"log/slog"

	"github.com/roach88/scorelog/internal/model"
)

// Reducer folds action logs into State.
type Reducer struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithRegistry replaces the built-in handlers.
func WithRegistry(r *Registry) Option {
	return func(rd *Reducer) {
		rd.registry = r
	}
}

// WithLogger sets the logger for skipped actions.
func WithLogger(l *slog.Logger) Option {
	return func(rd *Reducer) {
		rd.logger = l
	}
}

// New creates a Reducer with the default registry.
func New(opts ...Option) *Reducer {
	r := &Reducer{}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = DefaultRegistry()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Tombstones returns the ids neutralized by effective UNDOs.
//
// The log is walked from the end. An action already in the set is skipped,
// so a tombstoned UNDO neutralizes nothing. An UNDO whose reference is
// unknown, or does not precede it, has no effect.
func (r *Reducer) Tombstones(actions []model.Action) map[string]struct{} {
	index := make(map[string]int, len(actions))
	for i, a := range actions {
		if _, dup := index[a.ID]; !dup {
			index[a.ID] = i
		}
	}

	dead := make(map[string]struct{})
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		if _, ok := dead[a.ID]; ok {
			continue
		}
		if !a.IsUndo() {
			continue
		}
		ref := a.RefID()
		j, ok := index[ref]
		switch {
		case !ok:
			r.logger.Warn("undo references unknown action", "undo_id", a.ID, "ref_id", ref)
			continue
		case j >= i:
			r.logger.Warn("undo references a later action", "undo_id", a.ID, "ref_id", ref)
			continue
		}
		dead[ref] = struct{}{}
	}
	return dead
}

// Reduce derives the state of actions.
func (r *Reducer) Reduce(actions []model.Action) State {
	return r.apply(Initial(), actions, r.Tombstones(actions), nil)
}

// Outcome says what a reduction did with one action.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeTombstoned Outcome = "tombstoned"
	OutcomeUndo       Outcome = "undo"
	OutcomeSkipped    Outcome = "skipped"
)

// Step is the outcome of one action. Reason is set for skipped actions.
type Step struct {
	ActionID string
	Type     model.ActionType
	Outcome  Outcome
	Reason   string
}

// Explain reduces actions and reports the outcome of each, in log order.
func (r *Reducer) Explain(actions []model.Action) (State, []Step) {
	steps := make([]Step, 0, len(actions))
	s := r.apply(Initial(), actions, r.Tombstones(actions), func(st Step) {
		steps = append(steps, st)
	})
	return s, steps
}

func (r *Reducer) apply(s State, actions []model.Action, dead map[string]struct{}, record func(Step)) State {
	if record == nil {
		record = func(Step) {}
	}
	for _, a := range actions {
		step := Step{ActionID: a.ID, Type: a.Type}
		if _, ok := dead[a.ID]; ok {
			step.Outcome = OutcomeTombstoned
			record(step)
			continue
		}
		if a.IsUndo() {
			step.Outcome = OutcomeUndo
			record(step)
			continue
		}
		fn, ok := r.registry.lookup(a.Type)
		if !ok {
			r.logger.Warn("skipping action of unknown type", "action_id", a.ID, "type", a.Type)
			step.Outcome, step.Reason = OutcomeSkipped, "unknown type"
			record(step)
			continue
		}
		next, err := fn(s, a)
		if err != nil {
			r.logger.Warn("skipping action rejected by handler", "action_id", a.ID, "type", a.Type, "error", err)
			step.Outcome, step.Reason = OutcomeSkipped, err.Error()
			record(step)
			continue
		}
		next.Applied = s.Applied + 1
		s = next
		step.Outcome = OutcomeApplied
		record(step)
	}
	return s
}

// Effective returns the ids of the non-tombstoned actions in log order.
func (r *Reducer) Effective(actions []model.Action) []string {
	dead := r.Tombstones(actions)
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		if _, ok := dead[a.ID]; !ok {
			out = append(out, a.ID)
		}
	}
	return out
}

// VerifyDeterminism reduces actions twice and compares the state digests.
func (r *Reducer) VerifyDeterminism(actions []model.Action) (string, error) {
	first := r.Reduce(actions).Digest()
	second := r.Reduce(actions).Digest()
	if first != second {
		return "", fmt.Errorf("non-deterministic reduction: %s != %s", first, second)
	}
	return first, nil
}

var defaultReducer = New()

// Reduce derives state with the built-in handlers.
func Reduce(actions []model.Action) State {
	return defaultReducer.Reduce(actions)
}

// Tombstones runs the backward pass with the built-in reducer.
func Tombstones(actions []model.Action) map[string]struct{} {
	return defaultReducer.Tombstones(actions)
}
