package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/scorelog/internal/model"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(r.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	case AssertFinalState:
		return assertFinalState(r.State, a)
	case AssertEffective:
		return assertEffective(r.Effective, a)
	case AssertUndoTarget:
		return assertTarget(a.Type, r.UndoTarget, *a.Target)
	case AssertRedoTarget:
		return assertTarget(a.Type, r.RedoTarget, *a.Target)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.ActionID != a.Action {
			continue
		}
		if a.Outcome == "" || ev.Outcome == a.Outcome {
			return nil
		}
		return &AssertionError{
			Type:     AssertTraceContains,
			Expected: fmt.Sprintf("%s to be %s", a.Action, a.Outcome),
			Actual:   ev.Outcome,
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s in the trace", a.Action),
		Actual:   "not found",
	}
}

func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := make(map[string]int, len(trace))
	for i, ev := range trace {
		pos[ev.ActionID] = i
	}
	last := -1
	for _, id := range a.Actions {
		i, ok := pos[id]
		if !ok {
			return &AssertionError{Type: AssertTraceOrder, Expected: fmt.Sprintf("action %s in the trace", id), Actual: "not found"}
		}
		if i < last {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: strings.Join(a.Actions, " < "),
				Actual:   fmt.Sprintf("%s at position %d", id, i+1),
			}
		}
		last = i
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Outcome == a.Outcome {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertFinalState compares canonical encodings, so 3 in YAML matches an
// Int and lists compare element by element.
func assertFinalState(state model.Object, a Assertion) error {
	got, ok := lookup(state, a.Path)
	if !ok {
		return &AssertionError{Type: AssertFinalState, Expected: "a value at " + a.Path, Actual: "nothing"}
	}
	want, err := model.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: expect: %w", a.Path, err)
	}
	gotJSON, err := model.MarshalCanonical(got)
	if err != nil {
		return err
	}
	wantJSON, err := model.MarshalCanonical(want)
	if err != nil {
		return fmt.Errorf("final_state %s: expect: %w", a.Path, err)
	}
	if !bytes.Equal(gotJSON, wantJSON) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, wantJSON),
			Actual:   string(gotJSON),
		}
	}
	return nil
}

// lookup follows a dotted path through nested objects.
func lookup(obj model.Object, path string) (model.Value, bool) {
	var cur model.Value = obj
	for _, key := range strings.Split(path, ".") {
		o, ok := cur.(model.Object)
		if !ok {
			return nil, false
		}
		cur, ok = o[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func assertEffective(effective []string, a Assertion) error {
	if !slices.Equal(effective, a.Actions) {
		return &AssertionError{
			Type:     AssertEffective,
			Expected: fmt.Sprintf("%v", a.Actions),
			Actual:   fmt.Sprintf("%v", effective),
		}
	}
	return nil
}

func assertTarget(kind, got, want string) error {
	if got != want {
		return &AssertionError{Type: kind, Expected: fmt.Sprintf("%q", want), Actual: fmt.Sprintf("%q", got)}
	}
	return nil
}
