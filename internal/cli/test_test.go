package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), scenariosDir)
	require.NoError(t, err)

	resp := decode[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.Data.Total)
	assert.Equal(t, 5, resp.Data.Passed)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "undo_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ undo_then_redo")
	assert.Contains(t, out, "✓ undo_edge_cases")
	assert.NotContains(t, out, "basic_scoring")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandGolden(t *testing.T) {
	for _, name := range []string{"basic_scoring", "undo_then_redo", "double_undo", "undo_edge_cases"} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", name, "--golden", goldenDir)
			require.NoError(t, err)
		})
	}
}

func TestTestCommandUpdateWritesGoldens(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "basic_scoring", "--golden", dir, "--update")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "basic_scoring.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "basic_scoring.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic_scoring.golden"), []byte("{}\n"), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "basic_scoring", "--golden", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "snapshot differs")
}

func TestTestCommandErrors(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--update")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
