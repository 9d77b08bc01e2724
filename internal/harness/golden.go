package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scorelog/internal/model"
)

// Snapshot is the canonical encoding of a run: the scenario name, the
// per-action trace and the final state.
func Snapshot(name string, r *Result) ([]byte, error) {
	trace := make(model.List, len(r.Trace))
	for i, ev := range r.Trace {
		o := model.Object{
			"seq":     model.Int(ev.Seq),
			"id":      model.String(ev.ActionID),
			"type":    model.String(ev.Type),
			"outcome": model.String(ev.Outcome),
		}
		if ev.Reason != "" {
			o["reason"] = model.String(ev.Reason)
		}
		trace[i] = o
	}
	return model.MarshalCanonical(model.Object{
		"scenario_name": model.String(name),
		"trace":         trace,
		"state":         r.State,
	})
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	snap, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
