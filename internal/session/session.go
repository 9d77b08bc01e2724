package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/scorelog/internal/clock"
	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/reducer"
)

// Config holds the timing and sizing knobs of a session.
type Config struct {
	HeartbeatInterval    time.Duration
	PongTimeout          time.Duration
	MaxReconnectAttempts int
	MaxBatch             int
	RequestTimeout       time.Duration
	ClientVersion        string
	UserID               string

	Reconnect Backoff
	Submit    Backoff
	Auth      Backoff
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    25 * time.Second,
		PongTimeout:          10 * time.Second,
		MaxReconnectAttempts: 10,
		MaxBatch:             100,
		RequestTimeout:       10 * time.Second,
		Reconnect:            ReconnectBackoff(),
		Submit:               SubmitBackoff(),
		Auth:                 AuthBackoff(),
	}
}

// Session synchronizes the log of one game.
type Session struct {
	gameID   string
	cfg      Config
	dialer   Dialer
	batcher  Batcher
	auth     AuthChecker
	cache    Cache
	listener Listener
	clock    clock.Clock
	ids      model.IDGenerator
	logger   *slog.Logger
	metrics  *Metrics
	history  *reducer.Reducer

	inbox   *inbox
	started atomic.Bool
	done    chan struct{}

	mu   sync.Mutex
	view view

	// Owned by the Run goroutine.
	ctx        context.Context
	status     Status
	log        *model.Log
	revision   model.Revision
	confirmed  model.Revision
	pending    *pendingSet
	outbound   []model.Action
	inFlight   string
	conn       Conn
	connCtx    context.Context
	connCancel context.CancelFunc
	timers     map[timerKind]clock.Timer
	conflict   *model.ConflictRecord

	gen       uint64
	epoch     uint64
	authRound uint64

	want           bool
	stopped        bool
	dialing        bool
	batchInFlight  bool
	hold           bool
	authPaused     bool
	awaitingPong   bool
	attempts       int
	submitAttempts int
	authAttempts   int
}

type view struct {
	status   Status
	revision model.Revision
	actions  []model.Action
	pending  []string
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithDialer enables the persistent channel.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithBatcher enables the batched fallback.
func WithBatcher(b Batcher) Option {
	return func(s *Session) { s.batcher = b }
}

// WithAuthChecker sets the authorization poller.
func WithAuthChecker(a AuthChecker) Option {
	return func(s *Session) { s.auth = a }
}

// WithCache persists the local log.
func WithCache(c Cache) Option {
	return func(s *Session) { s.cache = c }
}

// WithListener sets the notification target.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithIDGenerator sets how Record assigns action ids.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records session metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// New creates a session for gameID. Nothing happens until Run is called.
func New(gameID string, opts ...Option) *Session {
	s := &Session{
		gameID:   gameID,
		cfg:      DefaultConfig(),
		listener: NopListener{},
		clock:    clock.Real{},
		ids:      model.UUIDv7{},
		inbox:    newInbox(),
		done:     make(chan struct{}),
		status:   StatusDisconnected,
		log:      &model.Log{},
		pending:  newPendingSet(),
		timers:   make(map[timerKind]clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("game", gameID)
	s.history = reducer.New(reducer.WithLogger(s.logger))
	if s.cfg.MaxBatch <= 0 {
		s.cfg.MaxBatch = 100
	}
	s.view = view{status: StatusDisconnected}
	return s
}

// GameID returns the game this session synchronizes.
func (s *Session) GameID() string {
	return s.gameID
}

// Run processes inputs until ctx is done or Close is called. The local log
// is restored from the cache first, then the channel is dialed.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}
	defer close(s.done)

	s.ctx = ctx
	s.restore()
	s.start()
	s.publish()

	for {
		if in, ok := s.inbox.TryDequeue(); ok {
			s.handle(in)
			s.publish()
			continue
		}
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.inbox.Wait():
			if s.inbox.Drained() {
				s.shutdown()
				return nil
			}
		}
	}
}

// Close stops Run after the queued inputs are handled.
func (s *Session) Close() {
	s.inbox.Close()
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Submit appends a locally created action and queues it for the
// authoritative log. It returns once the action is in the local log.
func (s *Session) Submit(ctx context.Context, a model.Action) error {
	if err := model.Validate(a); err != nil {
		return err
	}
	_, err := s.submit(ctx, submitInput{action: a})
	return err
}

func (s *Session) submit(ctx context.Context, in submitInput) (model.Action, error) {
	in.reply = make(chan submitResult, 1)
	if !s.inbox.Enqueue(in) {
		return model.Action{}, ErrClosed
	}
	select {
	case r := <-in.reply:
		return r.action, r.err
	case <-ctx.Done():
		return model.Action{}, ctx.Err()
	case <-s.done:
		return model.Action{}, ErrClosed
	}
}

func (s *Session) newAction(typ model.ActionType, payload model.Object) model.Action {
	return model.Action{
		ID:            s.ids.NewID(),
		Type:          typ,
		Payload:       payload,
		Timestamp:     s.clock.Now().UnixMilli(),
		UserID:        s.cfg.UserID,
		SchemaVersion: model.SchemaVersion,
	}
}

// Record builds an action with a fresh id and the configured user and
// submits it.
func (s *Session) Record(ctx context.Context, typ model.ActionType, payload model.Object) (model.Action, error) {
	a := s.newAction(typ, payload)
	if err := s.Submit(ctx, a); err != nil {
		return model.Action{}, err
	}
	return a, nil
}

// Undo records an UNDO of the last effective action. It returns false when
// there is nothing to undo. The target is chosen against the log as the
// session holds it when the UNDO is appended.
func (s *Session) Undo(ctx context.Context) (model.Action, bool, error) {
	return s.undo(ctx, s.history.UndoTarget)
}

// Redo records an UNDO of the last undo still eligible for redo. It returns
// false when a newer action has closed the redo history.
func (s *Session) Redo(ctx context.Context) (model.Action, bool, error) {
	return s.undo(ctx, s.history.RedoTarget)
}

func (s *Session) undo(ctx context.Context, target func([]model.Action) string) (model.Action, bool, error) {
	a, err := s.submit(ctx, submitInput{action: s.newAction(model.TypeUndo, nil), target: target})
	if errors.Is(err, errNoTarget) {
		return model.Action{}, false, nil
	}
	if err != nil {
		return model.Action{}, false, err
	}
	return a, true, nil
}

// Connect resumes synchronization after Disconnect.
func (s *Session) Connect() {
	s.inbox.Enqueue(connectInput{})
}

// Disconnect closes the channel, cancels pending timers and stops draining
// the queue. Local submissions are still accepted.
func (s *Session) Disconnect() {
	s.inbox.Enqueue(disconnectInput{})
}

// Strategy chooses how a divergent history is resolved.
type Strategy int

const (
	// KeepRemote adopts the authoritative log and drops local-only actions.
	KeepRemote Strategy = iota + 1
	// KeepLocal replaces the authoritative log with the local one.
	KeepLocal
	// Fork saves the local log as a new game and adopts the authoritative log.
	Fork
)

func (s Strategy) String() string {
	switch s {
	case KeepRemote:
		return "keep-remote"
	case KeepLocal:
		return "keep-local"
	case Fork:
		return "fork"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Resolution is the application's answer to a divergent conflict.
type Resolution struct {
	Strategy   Strategy
	ForkGameID string
}

// Resolve settles a divergent conflict reported through OnConflict.
func (s *Session) Resolve(ctx context.Context, r Resolution) error {
	reply := make(chan error, 1)
	if !s.inbox.Enqueue(resolveInput{res: r, reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.status
}

// Revision returns the last revision known to be fully synchronized.
func (s *Session) Revision() model.Revision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.revision
}

// Log returns a copy of the local log.
func (s *Session) Log() []model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Action, len(s.view.actions))
	copy(out, s.view.actions)
	return out
}

// Pending returns the ids awaiting acknowledgment, in submission order.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.view.pending))
	copy(out, s.view.pending)
	return out
}

func (s *Session) publish() {
	v := view{
		status:   s.status,
		revision: s.revision,
		actions:  s.log.Actions(),
		pending:  s.pending.IDs(),
	}
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
	s.metrics.setPending(s.gameID, len(v.pending))
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.gameID)
}
