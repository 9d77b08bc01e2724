package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/scorelog/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
	Golden string
	Update bool
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Digest string   `json:"digest,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the output of test.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run reducer conformance scenarios",
		Long: `Run YAML reducer scenarios and check their assertions. With --golden,
each scenario's trace and final state are also compared against
<golden-dir>/<name>.golden; --update rewrites those files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  scorelog test ./scenarios
  scorelog test ./scenarios --filter "undo_*"
  scorelog test ./scenarios --golden ./golden --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden snapshots")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden snapshots")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); err != nil {
		return WrapExitError(ExitCommandError, "scenarios directory not found", err)
	}
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}
	scenarios, err := harness.LoadScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	h := harness.New(harness.WithLogger(opts.Logger()))
	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		sr := runScenario(h, s, opts)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	f := newFormatter(opts.RootOptions, cmd)
	if result.Failed > 0 {
		return f.Failure(result, NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total)))
	}
	return f.Success(result)
}

func runScenario(h *harness.Harness, s *harness.Scenario, opts *TestOptions) ScenarioResult {
	res, err := h.Run(s)
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{err.Error()}}
	}
	sr := ScenarioResult{Name: s.Name, Pass: res.Pass, Digest: res.Digest, Errors: res.Errors}
	if opts.Golden == "" {
		return sr
	}

	snap, err := harness.Snapshot(s.Name, res)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
		return sr
	}
	path := filepath.Join(opts.Golden, s.Name+".golden")
	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err == nil {
			err = os.WriteFile(path, snap, 0o644)
		}
		if err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("write golden: %v", err))
		}
		return sr
	}
	want, err := os.ReadFile(path)
	switch {
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("read golden: %v", err))
	case !bytes.Equal(want, snap):
		sr.Pass = false
		sr.Errors = append(sr.Errors, "snapshot differs from "+path)
	}
	return sr
}

// Text renders the result for humans.
func (r TestResult) Text(w io.Writer) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}
