package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scorelog/internal/config"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/transport/httpbatch"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Game      string
	Server    string
	Cache     string
	LocalOnly bool
}

// DeleteResult is the output of delete.
type DeleteResult struct {
	Game   string `json:"game"`
	Local  bool   `json:"local"`
	Server bool   `json:"server"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a game from the cache and the server",
		Long: `Delete a game. The cached copy is removed first, then the server's
log unless --local-only is set. Clients syncing the game are disconnected.

Examples:
  scorelog delete --game g1
  scorelog delete --game g1 --local-only`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Game, "game", "", "game id (required)")
	_ = cmd.MarkFlagRequired("game")
	cmd.Flags().StringVar(&opts.Server, "server", "", "server URL (overrides SCORELOG_SERVER_URL)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "cache database (overrides SCORELOG_CACHE_PATH)")
	cmd.Flags().BoolVar(&opts.LocalOnly, "local-only", false, "keep the server's log")

	return cmd
}

func runDelete(opts *DeleteOptions, cmd *cobra.Command) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Server != "" {
		cfg.ServerURL = opts.Server
	}
	if opts.Cache != "" {
		cfg.CachePath = opts.Cache
	}
	logger := opts.Logger()

	st, err := store.Open(cfg.CachePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	result := DeleteResult{Game: opts.Game}
	if _, err := st.Load(ctx, opts.Game); err == nil {
		if err := st.DeleteSnapshot(ctx, opts.Game); err != nil {
			return WrapExitError(ExitFailure, "failed to delete cached game", err)
		}
		result.Local = true
	} else if !errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitFailure, "failed to read cache", err)
	}

	f := newFormatter(opts.RootOptions, cmd)
	if !opts.LocalOnly {
		client, err := httpbatch.New(cfg.ServerURL, httpbatch.WithToken(cfg.AuthToken), httpbatch.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid server URL", err)
		}
		err = client.Delete(ctx, opts.Game)
		switch {
		case err == nil:
			result.Server = true
		case errors.Is(err, httpbatch.ErrNotFound):
			logger.Debug("game not on server", "game", opts.Game)
		default:
			return f.Failure(result, WrapExitError(ExitFailure, "failed to delete server game", err))
		}
	}
	if !result.Local && !result.Server {
		return f.Failure(result, NewExitError(ExitFailure, fmt.Sprintf("unknown game %s", opts.Game)))
	}
	return f.Success(result)
}

// Text renders the result for humans.
func (r DeleteResult) Text(w io.Writer) {
	fmt.Fprintf(w, "Deleted %s (cache: %t, server: %t)\n", r.Game, r.Local, r.Server)
}
