package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/roach88/scorelog/internal/config"
	"github.com/roach88/scorelog/internal/server"
	"github.com/roach88/scorelog/internal/store"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command. Flags override the
// SCORELOG_* environment.
type ServeOptions struct {
	*RootOptions
	Addr string
	DB   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative log server",
		Long: `Run the reference server: websocket channels at /games/{id}/channel,
the batch endpoint at /games/{id}/actions, the game listing at /games and
Prometheus metrics at /metrics.

Settings come from SCORELOG_ADDR, SCORELOG_DB_PATH, SCORELOG_AUTH_TOKEN,
SCORELOG_RATE_LIMIT, SCORELOG_RATE_BURST, SCORELOG_SCHEMA_STRICT,
SCORELOG_SCHEMA_FILE and SCORELOG_PING_INTERVAL.

Examples:
  scorelog serve
  scorelog serve --addr :9000 --db /var/lib/scorelog/server.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides SCORELOG_ADDR)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "server database (overrides SCORELOG_DB_PATH)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}
	logger := opts.Logger()

	st, srv, err := buildServer(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start server", err)
	}
	defer st.Close()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, ln, srv, logger)
}

// buildServer opens the database and assembles the server from cfg.
func buildServer(cfg config.Server, logger *slog.Logger) (*store.Store, *server.Server, error) {
	var schemaFiles []string
	if cfg.SchemaFile != "" {
		schemaFiles = append(schemaFiles, cfg.SchemaFile)
	}
	v, err := buildValidator(cfg.SchemaStrict, schemaFiles)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts := []server.Option{
		server.WithValidator(v),
		server.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		server.WithRegistry(reg),
		server.WithPingInterval(cfg.PingInterval),
		server.WithLogger(logger),
	}
	if cfg.AuthToken != "" {
		opts = append(opts, server.WithToken(cfg.AuthToken))
	}
	return st, server.New(st, opts...), nil
}

// serve runs srv on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, ln net.Listener, srv *server.Server, logger *slog.Logger) error {
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(sctx)
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}
