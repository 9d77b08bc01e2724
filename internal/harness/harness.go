package harness

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/reducer"
	"github.com/roach88/scorelog/internal/schema"
)

// Harness runs scenarios against one reducer.
type Harness struct {
	reducer *reducer.Reducer
	logger  *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithReducer replaces the built-in reducer.
func WithReducer(r *reducer.Reducer) Option {
	return func(h *Harness) { h.reducer = r }
}

// WithLogger sets the logger, shared with the built-in reducer. Logs are
// discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if h.reducer == nil {
		h.reducer = reducer.New(reducer.WithLogger(h.logger))
	}
	return h
}

// Run executes a scenario with the built-in reducer.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(scenario)
}

// Run reduces the scenario log and evaluates its assertions. The error is
// for scenarios that cannot run at all; failed assertions are reported in
// the result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	actions, err := scenario.Actions()
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		if err := model.Validate(a); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	if scenario.Validate || scenario.Strict {
		v, err := validatorFor(scenario)
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			if err := v.Validate(a); err != nil {
				result.AddError(fmt.Sprintf("schema: %v", err))
			}
		}
	}

	state, steps := h.reducer.Explain(actions)
	for _, st := range steps {
		result.AddTrace(st.ActionID, string(st.Type), string(st.Outcome), st.Reason)
	}
	result.State = state.Value()
	result.Effective = append(result.Effective, h.reducer.Effective(actions)...)
	result.UndoTarget = h.reducer.UndoTarget(actions)
	result.RedoTarget = h.reducer.RedoTarget(actions)

	digest, err := h.reducer.VerifyDeterminism(actions)
	if err != nil {
		result.AddError(err.Error())
	}
	result.Digest = digest

	for i, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	h.logger.Debug("scenario finished", "name", scenario.Name, "pass", result.Pass, "actions", len(actions))
	return result, nil
}

func validatorFor(s *Scenario) (*schema.Validator, error) {
	var opts []schema.Option
	if s.Strict {
		opts = append(opts, schema.WithStrict())
	}
	for _, p := range s.Schema {
		body, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		opts = append(opts, schema.WithSource(p, string(body)))
	}
	v, err := schema.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return v, nil
}
