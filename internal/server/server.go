// Package server is a single-node reference implementation of the
// authoritative log owner. It accepts JOIN and ACTION over websocket
// channels, serves the batched fallback over HTTP and broadcasts every
// accepted action to all channels of its game.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/roach88/scorelog/internal/schema"
	"github.com/roach88/scorelog/internal/store"
)

// MaxBatch is the largest number of actions accepted in one submission.
const MaxBatch = 100

// Server owns the authoritative logs.
type Server struct {
	store     *store.Store
	validator *schema.Validator
	hub       *hub
	limits    *limiter
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	token     string
	upgrader  websocket.Upgrader

	pingInterval time.Duration
	writeTimeout time.Duration
	now          func() time.Time

	// appendMu orders appends with their broadcasts and with JOIN catch-up,
	// so every channel sees one order.
	appendMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithValidator checks payloads before they are appended.
func WithValidator(v *schema.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// WithToken requires "Authorization: Bearer <token>" on every game route.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithRateLimit limits submissions per client.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Server) { s.limits = newLimiter(r, burst) }
}

// WithRegistry registers server metrics on reg and serves them at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = NewMetrics(reg)
		s.gatherer = reg
	}
}

// WithPingInterval sets how often idle channels are pinged. Zero disables.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server backed by st.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:        st,
		hub:          newHub(),
		limits:       newLimiter(rate.Inf, 0),
		logger:       slog.Default(),
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
		now:          time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.healthz)
	if s.gatherer != nil {
		r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	api := r.NewRoute().Subrouter()
	api.Use(s.authenticate)
	api.Methods(http.MethodGet).Path("/auth/check").HandlerFunc(s.authCheck)
	api.Methods(http.MethodGet).Path("/games").HandlerFunc(s.listGames)
	api.Methods(http.MethodGet).Path("/games/{id}/channel").HandlerFunc(s.channel)
	api.Methods(http.MethodPost).Path("/games/{id}/actions").HandlerFunc(s.submitBatch)
	api.Methods(http.MethodPut).Path("/games/{id}/log").HandlerFunc(s.overwriteLog)
	api.Methods(http.MethodDelete).Path("/games/{id}").HandlerFunc(s.deleteGame)
	return r
}

// Shutdown closes every open channel.
func (s *Server) Shutdown(context.Context) {
	s.hub.closeAll()
}

// Channels returns the number of open channels.
func (s *Server) Channels() int {
	return s.hub.count()
}
