package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict  bool
	Schemas []string
}

// ValidationIssue is one problem found in a log.
type ValidationIssue struct {
	Index    int    `json:"index"`
	ActionID string `json:"id,omitempty"`
	Message  string `json:"message"`
}

// ValidateResult is the output of validate.
type ValidateResult struct {
	File    string            `json:"file"`
	Actions int               `json:"actions"`
	Valid   bool              `json:"valid"`
	Issues  []ValidationIssue `json:"issues"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <log-file>",
		Short: "Check an action log against the structural rules and payload schema",
		Long: `Check an action log: every action has an id and type, ids are unique,
UNDOs reference an earlier action, and payloads match the action schema.

Exit codes:
  0 - The log is valid
  1 - Problems were found
  2 - Command error (unreadable file, bad schema, etc.)

Examples:
  scorelog validate game.json
  scorelog validate game.json --strict --schema house-rules.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject action types without a schema definition")
	cmd.Flags().StringSliceVar(&opts.Schemas, "schema", nil, "extra CUE schema files")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	actions, err := loadActions(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load log", err)
	}
	v, err := buildValidator(opts.Strict, opts.Schemas)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	result := ValidateResult{File: path, Actions: len(actions), Issues: checkLog(actions, v)}
	result.Valid = len(result.Issues) == 0

	f := newFormatter(opts.RootOptions, cmd)
	if !result.Valid {
		return f.Failure(result, NewExitError(ExitFailure, fmt.Sprintf("%d problem(s) found", len(result.Issues))))
	}
	return f.Success(result)
}

func buildValidator(strict bool, files []string) (*schema.Validator, error) {
	var opts []schema.Option
	if strict {
		opts = append(opts, schema.WithStrict())
	}
	for _, p := range files {
		body, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.WithSource(p, string(body)))
	}
	return schema.New(opts...)
}

// checkLog reports every problem, not only the first.
func checkLog(actions []model.Action, v *schema.Validator) []ValidationIssue {
	issues := []ValidationIssue{}
	add := func(i int, id string, err error) {
		var verr *model.ValidationError
		msg := err.Error()
		if errors.As(err, &verr) {
			msg = verr.Field + ": " + verr.Message
		}
		issues = append(issues, ValidationIssue{Index: i, ActionID: id, Message: msg})
	}

	seen := make(map[string]bool, len(actions))
	for i, a := range actions {
		if err := model.Validate(a); err != nil {
			add(i, a.ID, err)
		} else if err := v.Validate(a); err != nil {
			add(i, a.ID, err)
		}
		if a.ID != "" && seen[a.ID] {
			add(i, a.ID, errors.New("duplicate id"))
		}
		if a.IsUndo() && a.RefID() != "" && a.RefID() != a.ID && !seen[a.RefID()] {
			add(i, a.ID, fmt.Errorf("undo references %q, which does not precede it", a.RefID()))
		}
		seen[a.ID] = true
	}
	return issues
}

// Text renders the result for humans.
func (r ValidateResult) Text(w io.Writer) {
	if r.Valid {
		fmt.Fprintf(w, "✓ %s: %d actions, valid\n", r.File, r.Actions)
		return
	}
	fmt.Fprintf(w, "✗ %s: %d actions, %d problem(s)\n", r.File, r.Actions, len(r.Issues))
	for _, is := range r.Issues {
		if is.ActionID == "" {
			fmt.Fprintf(w, "  [%d] %s\n", is.Index, is.Message)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s: %s\n", is.Index, is.ActionID, is.Message)
	}
}
