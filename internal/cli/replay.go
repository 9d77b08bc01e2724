package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/reducer"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	File    string
	Cache   string
	Game    string
	Explain bool
}

// ReplayStep is one action's outcome in an explained replay.
type ReplayStep struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// ReplayResult is the output of replay.
type ReplayResult struct {
	Source        string        `json:"source"`
	Actions       int           `json:"actions"`
	Effective     int           `json:"effective"`
	Tombstoned    int           `json:"tombstoned"`
	Digest        string        `json:"digest"`
	Deterministic bool          `json:"deterministic"`
	State         reducer.State `json:"state"`
	Steps         []ReplayStep  `json:"steps,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Reduce an action log into game state",
		Long: `Reduce an action log into game state and verify the reduction is
deterministic.

The log comes from a file (--file) or from the client cache (--cache with
--game).

Exit codes:
  0 - Replay is deterministic
  1 - Two reductions disagreed
  2 - Command error (missing file, unknown game, etc.)

Examples:
  scorelog replay --file game.json
  scorelog replay --cache scorelog-cache.db --game g1 --explain
  scorelog replay --file game.jsonl --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "action log file (JSON array, snapshot or JSON lines)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "client cache database")
	cmd.Flags().StringVar(&opts.Game, "game", "", "game id to read from the cache")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "report the outcome of every action")
	cmd.MarkFlagsMutuallyExclusive("file", "cache")
	cmd.MarkFlagsRequiredTogether("cache", "game")
	cmd.MarkFlagsOneRequired("file", "cache")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	var (
		actions []model.Action
		source  string
		err     error
	)
	if opts.File != "" {
		source = opts.File
		actions, err = loadActions(opts.File)
	} else {
		source = opts.Cache + "#" + opts.Game
		actions, err = loadCached(cmd.Context(), opts.Cache, opts.Game)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load log", err)
	}

	r := reducer.New(reducer.WithLogger(opts.Logger()))
	state, steps := r.Explain(actions)
	result := ReplayResult{
		Source:        source,
		Actions:       len(actions),
		Effective:     len(r.Effective(actions)),
		Tombstoned:    len(r.Tombstones(actions)),
		State:         state,
		Deterministic: true,
	}
	if opts.Explain {
		for _, st := range steps {
			result.Steps = append(result.Steps, ReplayStep{
				ID:      st.ActionID,
				Type:    string(st.Type),
				Outcome: string(st.Outcome),
				Reason:  st.Reason,
			})
		}
	}

	f := newFormatter(opts.RootOptions, cmd)
	digest, err := r.VerifyDeterminism(actions)
	if err != nil {
		result.Deterministic = false
		return f.Failure(result, WrapExitError(ExitFailure, "replay is not deterministic", err))
	}
	result.Digest = digest
	return f.Success(result)
}

// Text renders the result for humans.
func (r ReplayResult) Text(w io.Writer) {
	fmt.Fprintf(w, "Replayed %s\n", r.Source)
	fmt.Fprintf(w, "  actions:    %d (%d effective, %d tombstoned)\n", r.Actions, r.Effective, r.Tombstoned)
	fmt.Fprintf(w, "  status:     %s\n", orDash(r.State.Status))
	fmt.Fprintf(w, "  period:     %d\n", r.State.Period)
	fmt.Fprintf(w, "  scores:     %s\n", formatCounts(r.State.Scores))
	if len(r.State.Counters) > 0 {
		fmt.Fprintf(w, "  counters:   %s\n", formatCounts(r.State.Counters))
	}
	if len(r.State.Notes) > 0 {
		fmt.Fprintf(w, "  notes:      %d\n", len(r.State.Notes))
	}
	fmt.Fprintf(w, "  digest:     %s\n", r.Digest)
	for _, st := range r.Steps {
		line := fmt.Sprintf("  %-12s %-16s %s", st.ID, st.Type, st.Outcome)
		if st.Reason != "" {
			line += " (" + st.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func formatCounts(m map[string]int64) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
