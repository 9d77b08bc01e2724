package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/model"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "ok.yaml", `
name: ok
description: "One score"
log:
  - id: a1
    type: score.add
    payload: { team: home, points: 2 }
    user: ana
assertions:
  - type: final_state
    path: scores.home
    expect: 2
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Name)
	require.Len(t, s.Log, 1)
	assert.Equal(t, "ana", s.Log[0].User)

	actions, err := s.Actions()
	require.NoError(t, err)
	assert.Equal(t, model.Action{
		ID:            "a1",
		Type:          "score.add",
		Payload:       model.Obj(model.P("team", model.String("home")), model.P("points", model.Int(2))),
		Timestamp:     1,
		UserID:        "ana",
		SchemaVersion: model.SchemaVersion,
	}, actions[0])
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `
name: typo
description: "misspelled key"
log:
  - id: a1
    type: game.start
assertion:
  - type: effective
    actions: [a1]
`)
	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "parse YAML")
}

func TestLoadScenario_ResolvesSchemaRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "cue"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cue", "x.cue"), []byte(`actions: "x.y": {}`), 0644))
	path := writeScenario(t, dir, "s.yaml", `
name: s
description: "d"
schema: [cue/x.cue]
log:
  - { id: a1, type: x.y }
assertions:
  - { type: trace_count, outcome: skipped, count: 1 }
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "cue", "x.cue")}, s.Schema)

	_, err = LoadScenario(writeScenario(t, dir, "missing.yaml", `
name: s
description: "d"
schema: [nope.cue]
log:
  - { id: a1, type: x.y }
assertions:
  - { type: trace_count, outcome: skipped, count: 1 }
`))
	assert.ErrorContains(t, err, "schema file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", `
description: d
log: [{id: a1, type: t}]
assertions: [{type: effective, actions: []}]`, "name is required"},
		{"no description", `
name: n
log: [{id: a1, type: t}]
assertions: [{type: effective, actions: []}]`, "description is required"},
		{"empty log", `
name: n
description: d
assertions: [{type: effective, actions: []}]`, "log is required"},
		{"no assertions", `
name: n
description: d
log: [{id: a1, type: t}]`, "assertions list is required"},
		{"missing id", `
name: n
description: d
log: [{type: t}]
assertions: [{type: effective, actions: []}]`, "log[0]: id is required"},
		{"missing type", `
name: n
description: d
log: [{id: a1}]
assertions: [{type: effective, actions: []}]`, "log[0]: type is required"},
		{"duplicate id", `
name: n
description: d
log: [{id: a1, type: t}, {id: a1, type: t}]
assertions: [{type: effective, actions: []}]`, "duplicate id"},
		{"unknown assertion", `
name: n
description: d
log: [{id: a1, type: t}]
assertions: [{type: vibes}]`, "unknown assertion type"},
		{"unknown outcome", `
name: n
description: d
log: [{id: a1, type: t}]
assertions: [{type: trace_count, outcome: maybe, count: 1}]`, "unknown outcome"},
		{"final_state without path", `
name: n
description: d
log: [{id: a1, type: t}]
assertions: [{type: final_state, expect: 1}]`, "path is required"},
		{"final_state without expect", `
name: n
description: d
log: [{id: a1, type: t}]
assertions: [{type: final_state, path: period}]`, "expect is required"},
		{"trace_order with one action", `
name: n
description: d
log: [{id: a1, type: t}]
assertions: [{type: trace_order, actions: [a1]}]`, "at least two"},
		{"undo_target without target", `
name: n
description: d
log: [{id: a1, type: t}]
assertions: [{type: undo_target}]`, "target is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScenarioActions_RejectsFloats(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: n
description: d
log: [{id: a1, type: score.add, payload: {team: home, points: 1.5}}]
assertions: [{type: effective, actions: [a1]}]`))
	require.NoError(t, err)
	_, err = s.Actions()
	assert.ErrorContains(t, err, "floats are not allowed")
}

func TestLoadScenarios_SortedByName(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"basic_scoring", "custom_schema", "double_undo", "undo_edge_cases", "undo_then_redo"}, names)
}
