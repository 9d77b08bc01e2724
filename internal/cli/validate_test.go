package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidLog(t *testing.T) {
	path := writeFile(t, "game.json", sampleLog)
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "5 actions, valid")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	path := writeFile(t, "bad.json", `[
  {"id": "a1", "type": "score.add", "payload": {"team": "home"}, "timestamp": 1},
  {"id": "a1", "type": "game.start", "timestamp": 2},
  {"id": "a3", "type": "undo", "payload": {"refId": "a9"}, "timestamp": 3},
  {"id": "", "type": "game.end", "timestamp": 4}
]`)
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode[ValidateResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	indexes := make([]int, 0, len(resp.Data.Issues))
	for _, is := range resp.Data.Issues {
		indexes = append(indexes, is.Index)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, indexes)
	assert.Contains(t, resp.Data.Issues[1].Message, "duplicate id")
	assert.Contains(t, resp.Data.Issues[2].Message, "does not precede it")
}

func TestValidateStrictRejectsUnknownTypes(t *testing.T) {
	path := writeFile(t, "custom.json", `[{"id": "a1", "type": "foul.add", "payload": {"team": "home", "player": "7"}, "timestamp": 1}]`)

	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)

	_, err = execute(NewValidateCommand(&RootOptions{Format: "text"}), path, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	schemaFile := filepath.Join("..", "harness", "testdata", "schema", "fouls.cue")
	_, err = execute(NewValidateCommand(&RootOptions{Format: "text"}), path, "--strict", "--schema", schemaFile)
	require.NoError(t, err)
}

func TestValidateMissingSchemaFile(t *testing.T) {
	path := writeFile(t, "game.json", sampleLog)
	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path, "--schema", filepath.Join(t.TempDir(), "none.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
