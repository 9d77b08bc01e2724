package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scorelog/internal/model"
)

// Scenario is one reducer conformance test.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Validate checks every payload against the action schema before
	// reducing. A schema failure fails the scenario.
	Validate bool `yaml:"validate,omitempty"`

	// Strict rejects action types the schema does not know. Implies Validate.
	Strict bool `yaml:"strict,omitempty"`

	// Schema lists extra CUE files unified into the built-in schema. Paths
	// are relative to the scenario file.
	Schema []string `yaml:"schema,omitempty"`

	Log        []ActionStep `yaml:"log"`
	Assertions []Assertion  `yaml:"assertions"`
}

// ActionStep is one log entry.
type ActionStep struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload,omitempty"`
	User    string         `yaml:"user,omitempty"`

	// Timestamp defaults to the 1-based log position.
	Timestamp int64 `yaml:"timestamp,omitempty"`
}

// Assertion checks the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is an action id (trace_contains).
	Action string `yaml:"action,omitempty"`

	// Outcome is applied, tombstoned, undo or skipped (trace_contains,
	// trace_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Actions are action ids (trace_order, effective).
	Actions []string `yaml:"actions,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Path is a dotted path into the final state, e.g. scores.home
	// (final_state).
	Path string `yaml:"path,omitempty"`

	// Expect is the value found at Path (final_state).
	Expect any `yaml:"expect,omitempty"`

	// Target is the id the control would pick, empty for none
	// (undo_target, redo_target).
	Target *string `yaml:"target,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertEffective     = "effective"
	AssertUndoTarget    = "undo_target"
	AssertRedoTarget    = "redo_target"
)

var outcomes = []string{"applied", "tombstoned", "undo", "skipped"}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, p := range s.Schema {
		if !filepath.IsAbs(p) {
			s.Schema[i] = filepath.Join(base, p)
		}
	}
	for _, p := range s.Schema {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%s: schema file: %w", path, err)
		}
	}
	return s, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	slices.Sort(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Actions converts the log into model actions.
func (s *Scenario) Actions() ([]model.Action, error) {
	out := make([]model.Action, len(s.Log))
	for i, step := range s.Log {
		payload, err := model.FromAny(orEmpty(step.Payload))
		if err != nil {
			return nil, fmt.Errorf("log[%d] payload: %w", i, err)
		}
		ts := step.Timestamp
		if ts == 0 {
			ts = int64(i + 1)
		}
		out[i] = model.Action{
			ID:            step.ID,
			Type:          model.ActionType(step.Type),
			Payload:       payload.(model.Object),
			Timestamp:     ts,
			UserID:        step.User,
			SchemaVersion: model.SchemaVersion,
		}
	}
	return out, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Log) == 0 {
		return fmt.Errorf("log is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Log))
	for i, step := range s.Log {
		if step.ID == "" {
			return fmt.Errorf("log[%d]: id is required", i)
		}
		if step.Type == "" {
			return fmt.Errorf("log[%d]: type is required", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("log[%d]: duplicate id %q", i, step.ID)
		}
		seen[step.ID] = true
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Outcome != "" && !slices.Contains(outcomes, a.Outcome) {
		return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two actions", index)
		}
	case AssertTraceCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertEffective:
		if a.Actions == nil {
			return fmt.Errorf("assertions[%d]: actions is required for effective", index)
		}
	case AssertUndoTarget, AssertRedoTarget:
		if a.Target == nil {
			return fmt.Errorf("assertions[%d]: target is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
