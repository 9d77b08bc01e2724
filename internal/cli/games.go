package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scorelog/internal/config"
	"github.com/roach88/scorelog/internal/merge"
	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/transport/httpbatch"
)

// GamesOptions holds flags for the games command.
type GamesOptions struct {
	*RootOptions
	Server    string
	Cache     string
	Limit     int
	PageSize  int
	LocalOnly bool
}

// GameEntry is one row of the merged game list.
type GameEntry struct {
	ID        string         `json:"id"`
	Revision  model.Revision `json:"revision"`
	Actions   int            `json:"actions"`
	UpdatedAt int64          `json:"updatedAt"`
	Local     bool           `json:"local"`
	Dirty     bool           `json:"dirty"`
}

// GamesResult is the output of games.
type GamesResult struct {
	Games   []GameEntry `json:"games"`
	Fetches int         `json:"fetches"`
}

// NewGamesCommand creates the games command.
func NewGamesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GamesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "games",
		Short: "List cached and server games, most recent first",
		Long: `List the games in the local cache merged with the server's listing.

Local games come first on ties and a game known to both sides is listed once.
Server pages are fetched only as far as --limit requires.

Examples:
  scorelog games
  scorelog games --limit 10
  scorelog games --local-only`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGames(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "server URL (overrides SCORELOG_SERVER_URL)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "cache database (overrides SCORELOG_CACHE_PATH)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list at most this many games (0 lists all)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", merge.DefaultPageSize, "server page size")
	cmd.Flags().BoolVar(&opts.LocalOnly, "local-only", false, "skip the server listing")

	return cmd
}

func runGames(opts *GamesOptions, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
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

	cached, err := st.ListCached(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list cache", err)
	}
	local := make([]GameEntry, 0, len(cached))
	for _, g := range cached {
		local = append(local, GameEntry{
			ID:        g.GameID,
			Revision:  g.Revision,
			Actions:   g.Actions,
			UpdatedAt: g.UpdatedAt,
			Local:     true,
			Dirty:     g.Dirty,
		})
	}

	var remote merge.PageFetcher[GameEntry]
	if !opts.LocalOnly {
		client, err := httpbatch.New(cfg.ServerURL, httpbatch.WithToken(cfg.AuthToken), httpbatch.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid server URL", err)
		}
		remote = serverGames(client)
	}

	m := merge.New(local, remote, newerGame, func(g GameEntry) string { return g.ID }, merge.WithPageSize(opts.PageSize))
	var games []GameEntry
	if opts.Limit > 0 {
		games, err = m.Take(ctx, opts.Limit)
	} else {
		games, err = m.Drain(ctx)
	}
	if games == nil {
		games = []GameEntry{}
	}
	result := GamesResult{Games: games, Fetches: m.Fetches()}

	f := newFormatter(opts.RootOptions, cmd)
	if err != nil {
		return f.Failure(result, WrapExitError(ExitFailure, "failed to list server games", err))
	}
	logger.Debug("listed games", "count", len(games), "fetches", result.Fetches)
	return f.Success(result)
}

// serverGames adapts the server listing to the merged row type.
func serverGames(c *httpbatch.Client) merge.FetcherFunc[GameEntry] {
	return func(ctx context.Context, offset, limit int) (merge.Page[GameEntry], error) {
		page, err := c.FetchPage(ctx, offset, limit)
		if err != nil {
			return merge.Page[GameEntry]{}, err
		}
		items := make([]GameEntry, 0, len(page.Items))
		for _, g := range page.Items {
			items = append(items, GameEntry{
				ID:        g.ID,
				Revision:  g.Head,
				Actions:   g.Actions,
				UpdatedAt: g.UpdatedAt,
			})
		}
		return merge.Page[GameEntry]{Items: items, Total: page.Total}, nil
	}
}

// newerGame orders by last update, newest first, then by id.
func newerGame(a, b GameEntry) bool {
	if a.UpdatedAt != b.UpdatedAt {
		return a.UpdatedAt > b.UpdatedAt
	}
	return a.ID < b.ID
}

// Text renders the result for humans.
func (r GamesResult) Text(w io.Writer) {
	if len(r.Games) == 0 {
		fmt.Fprintln(w, "No games")
		return
	}
	for _, g := range r.Games {
		where := "server"
		if g.Local {
			where = "local"
			if g.Dirty {
				where = "local*"
			}
		}
		updated := time.UnixMilli(g.UpdatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, "%-36s  %-7s  %5d  %s  %s\n", g.ID, where, g.Actions, updated, orDash(string(g.Revision)))
	}
}
