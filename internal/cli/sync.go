package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/scorelog/internal/config"
	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/reducer"
	"github.com/roach88/scorelog/internal/session"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/transport/httpbatch"
	"github.com/roach88/scorelog/internal/transport/ws"
)

// pollInterval is how often sync checks whether the games have settled.
const pollInterval = 50 * time.Millisecond

// catchUpTimeout bounds the wait for the server log before --undo or --redo.
const catchUpTimeout = 5 * time.Second

// errSettled stops the sync workers once every game is synced.
var errSettled = errors.New("settled")

// SyncOptions holds flags for the sync command. Flags override the
// SCORELOG_* environment.
type SyncOptions struct {
	*RootOptions
	Game    string
	Server  string
	Cache   string
	User    string
	Add     []string
	Undo    bool
	Redo    bool
	Resolve string
	ForkID  string
	Wait    time.Duration
}

// GameSync is the sync outcome of one game.
type GameSync struct {
	Game     string         `json:"game"`
	Status   session.Status `json:"status"`
	Revision model.Revision `json:"revision"`
	Actions  int            `json:"actions"`
	Pending  []string       `json:"pending"`
	Recorded []string       `json:"recorded"`
	State    reducer.State  `json:"state"`
}

// SyncResult is the output of sync.
type SyncResult struct {
	Games []GameSync `json:"games"`

	// Stats holds the session counter totals by name.
	Stats map[string]float64 `json:"stats"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Record actions and sync games with the server",
		Long: `Open a game from the local cache, record any new actions, and sync
with the server until the game is caught up and nothing is pending.
Without --game, every cached game with unsent actions is synced.

Actions recorded while the server is unreachable stay in the cache and are
sent by the next sync.

Exit codes:
  0 - Every game is synced
  1 - Not synced before --wait elapsed, or a divergent history needs --resolve
  2 - Command error (bad flags, bad configuration, etc.)

Examples:
  scorelog sync
  scorelog sync --game g1 --add 'score.add={"team":"home","points":2}'
  scorelog sync --game g1 --undo
  scorelog sync --game g1 --resolve keep-remote`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Game, "game", "", "game id (default: every game with unsent actions)")
	cmd.Flags().StringVar(&opts.Server, "server", "", "server URL (overrides SCORELOG_SERVER_URL)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "cache database (overrides SCORELOG_CACHE_PATH)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id stamped on new actions (overrides SCORELOG_USER_ID)")
	cmd.Flags().StringArrayVar(&opts.Add, "add", nil, "record an action: type or type=JSON payload (repeatable)")
	cmd.Flags().BoolVar(&opts.Undo, "undo", false, "undo the last effective action")
	cmd.Flags().BoolVar(&opts.Redo, "redo", false, "redo the last undone action")
	cmd.Flags().StringVar(&opts.Resolve, "resolve", "", "resolve a divergent history: keep-remote, keep-local or fork")
	cmd.Flags().StringVar(&opts.ForkID, "fork-id", "", "game id for --resolve fork (generated when empty)")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 30*time.Second, "how long to wait for the games to sync")
	cmd.MarkFlagsMutuallyExclusive("undo", "redo")

	return cmd
}

type recordSpec struct {
	typ     model.ActionType
	payload model.Object
}

// parseAdd parses "type" or "type=JSON".
func parseAdd(raw string) (recordSpec, error) {
	typ, body, hasBody := strings.Cut(raw, "=")
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return recordSpec{}, fmt.Errorf("--add %q: missing action type", raw)
	}
	rec := recordSpec{typ: model.ActionType(typ), payload: model.Object{}}
	if !hasBody {
		return rec, nil
	}
	v, err := model.ParseValue([]byte(body))
	if err != nil {
		return recordSpec{}, fmt.Errorf("--add %q: %w", raw, err)
	}
	obj, ok := v.(model.Object)
	if !ok {
		return recordSpec{}, fmt.Errorf("--add %q: payload must be a JSON object", raw)
	}
	rec.payload = obj
	return rec, nil
}

func parseStrategy(name, forkID string) (session.Resolution, error) {
	switch name {
	case "keep-remote":
		return session.Resolution{Strategy: session.KeepRemote}, nil
	case "keep-local":
		return session.Resolution{Strategy: session.KeepLocal}, nil
	case "fork":
		if forkID == "" {
			forkID = model.UUIDv7{}.NewID()
		}
		return session.Resolution{Strategy: session.Fork, ForkGameID: forkID}, nil
	default:
		return session.Resolution{}, fmt.Errorf("unknown resolution %q: must be keep-remote, keep-local or fork", name)
	}
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
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
	if opts.User != "" {
		cfg.UserID = opts.User
	}
	if opts.Game == "" && (len(opts.Add) > 0 || opts.Undo || opts.Redo) {
		return NewExitError(ExitCommandError, "--add, --undo and --redo need --game")
	}

	recs := make([]recordSpec, 0, len(opts.Add))
	for _, raw := range opts.Add {
		rec, err := parseAdd(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid action", err)
		}
		recs = append(recs, rec)
	}
	var resolution *session.Resolution
	if opts.Resolve != "" {
		r, err := parseStrategy(opts.Resolve, opts.ForkID)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid resolution", err)
		}
		resolution = &r
	}

	logger := opts.Logger()
	st, err := store.Open(cfg.CachePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer st.Close()

	dialer, err := ws.NewDialer(cfg.ServerURL, ws.WithToken(cfg.AuthToken), ws.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server URL", err)
	}
	batch, err := httpbatch.New(cfg.ServerURL, httpbatch.WithToken(cfg.AuthToken), httpbatch.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server URL", err)
	}

	games := []string{opts.Game}
	if opts.Game == "" {
		games, err = st.ListDirty(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list dirty games", err)
		}
	}

	events := session.NewChannelListener(256)
	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)
	sessionCfg := cfg.Session(Version)
	factory := func(id string) *session.Session {
		return session.New(id,
			session.WithConfig(sessionCfg),
			session.WithDialer(dialer),
			session.WithBatcher(batch),
			session.WithAuthChecker(batch),
			session.WithCache(st),
			session.WithListener(events),
			session.WithLogger(logger),
			session.WithMetrics(metrics),
		)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Wait)
	defer cancel()
	sessions := session.NewRegistry(ctx, factory, logger)
	open := make([]*session.Session, 0, len(games))
	for _, id := range games {
		if id == opts.Game {
			open = append(open, sessions.Activate(id))
			continue
		}
		open = append(open, sessions.Open(id))
	}

	recorded := []string{}
	var syncErr error
	if opts.Game != "" {
		recorded, syncErr = record(ctx, open[0], recs, opts, logger)
	}
	if syncErr == nil {
		syncErr = settle(ctx, sessions, open, events, resolution, logger)
	}

	stop := make(chan struct{})
	go drain(events, stop)
	sessions.CloseAll()
	close(stop)

	result := SyncResult{Games: make([]GameSync, 0, len(open)), Stats: counterTotals(reg)}
	r := reducer.New(reducer.WithLogger(logger))
	for _, s := range open {
		log := s.Log()
		gs := GameSync{
			Game:     s.GameID(),
			Status:   s.Status(),
			Revision: s.Revision(),
			Actions:  len(log),
			Pending:  s.Pending(),
			Recorded: []string{},
			State:    r.Reduce(log),
		}
		if s.GameID() == opts.Game {
			gs.Recorded = recorded
		}
		result.Games = append(result.Games, gs)
	}

	f := newFormatter(opts.RootOptions, cmd)
	if syncErr != nil {
		return f.Failure(result, syncErr)
	}
	return f.Success(result)
}

// record appends the requested actions to s and returns their ids.
func record(ctx context.Context, s *session.Session, recs []recordSpec, opts *SyncOptions, logger *slog.Logger) ([]string, error) {
	ids := []string{}
	for _, rec := range recs {
		a, err := s.Record(ctx, rec.typ, rec.payload)
		if err != nil {
			return ids, WrapExitError(ExitCommandError, "failed to record action", err)
		}
		ids = append(ids, a.ID)
	}
	if !opts.Undo && !opts.Redo {
		return ids, nil
	}

	// Undo acts on the caught-up log when the server answers in time,
	// otherwise on the cached one.
	catchUp, cancel := context.WithTimeout(ctx, catchUpTimeout)
	if err := waitSettled(catchUp, []*session.Session{s}); !errors.Is(err, errSettled) {
		logger.Warn("undo before catching up", "game", s.GameID(), "error", err)
	}
	cancel()

	undo := s.Undo
	if opts.Redo {
		undo = s.Redo
	}
	a, ok, err := undo(ctx)
	if err != nil {
		return ids, WrapExitError(ExitCommandError, "failed to record undo", err)
	}
	if !ok {
		return ids, NewExitError(ExitFailure, "nothing to undo or redo")
	}
	return append(ids, a.ID), nil
}

// settle waits until every session is synced with nothing pending.
func settle(ctx context.Context, sessions *session.Registry, open []*session.Session, events *session.ChannelListener, resolution *session.Resolution, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watch(gctx, sessions, events, resolution, logger)
	})
	g.Go(func() error {
		return waitSettled(gctx, open)
	})

	err := g.Wait()
	switch {
	case errors.Is(err, errSettled):
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		pending := 0
		for _, s := range open {
			pending += len(s.Pending())
		}
		return NewExitError(ExitFailure, fmt.Sprintf("not synced before --wait elapsed; %d action(s) kept in the cache", pending))
	default:
		return err
	}
}

// watch logs session events and answers divergent conflicts.
func watch(ctx context.Context, sessions *session.Registry, events *session.ChannelListener, resolution *session.Resolution, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events.Events():
			switch ev := ev.(type) {
			case session.RemoteActionEvent:
				logger.Info("remote action", "game", ev.GameID, "id", ev.Action.ID, "type", ev.Action.Type)
			case session.StatusEvent:
				logger.Debug("status", "game", ev.GameID, "status", ev.Status)
			case session.ErrorEvent:
				logger.Warn("sync error", "game", ev.GameID, "error", ev.Err)
			case session.ConflictEvent:
				if !ev.Conflict.Divergent {
					logger.Info("caught up after conflict", "game", ev.GameID, "missing", len(ev.Conflict.MissingActions))
					continue
				}
				if resolution == nil {
					return NewExitError(ExitFailure, fmt.Sprintf("game %s diverged from the server; rerun with --resolve", ev.GameID))
				}
				s, ok := sessions.Get(ev.GameID)
				if !ok {
					continue
				}
				logger.Warn("resolving divergent history", "game", ev.GameID, "strategy", resolution.Strategy)
				if err := s.Resolve(ctx, *resolution); err != nil {
					return WrapExitError(ExitFailure, "failed to resolve conflict", err)
				}
			}
		}
	}
}

func waitSettled(ctx context.Context, open []*session.Session) error {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		settled := true
		for _, s := range open {
			if s.Status() != session.StatusSynced || len(s.Pending()) > 0 {
				settled = false
				break
			}
		}
		if settled {
			return errSettled
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// counterTotals sums every counter in g across its labels, keyed by the
// metric name without the session prefix.
func counterTotals(g prometheus.Gatherer) map[string]float64 {
	out := map[string]float64{}
	families, err := g.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		name := strings.TrimSuffix(strings.TrimPrefix(mf.GetName(), "scorelog_session_"), "_total")
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[name] += c.GetValue()
			}
		}
	}
	return out
}

func drain(events *session.ChannelListener, stop <-chan struct{}) {
	for {
		select {
		case <-events.Events():
		case <-stop:
			return
		}
	}
}

// Text renders the result for humans.
func (r SyncResult) Text(w io.Writer) {
	if len(r.Games) == 0 {
		fmt.Fprintln(w, "Nothing to sync")
		return
	}
	for _, g := range r.Games {
		fmt.Fprintf(w, "Game %s: %s at %s\n", g.Game, g.Status, orDash(string(g.Revision)))
		fmt.Fprintf(w, "  actions:  %d (%d pending)\n", g.Actions, len(g.Pending))
		if len(g.Recorded) > 0 {
			fmt.Fprintf(w, "  recorded: %s\n", strings.Join(g.Recorded, " "))
		}
		fmt.Fprintf(w, "  scores:   %s\n", formatCounts(g.State.Scores))
	}
}
