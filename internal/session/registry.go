package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Factory builds the session for a game. Registry runs it.
type Factory func(gameID string) *Session

// Registry owns one running session per game. At most one game is active
// (connected) at a time; the others keep their local logs and caches.
type Registry struct {
	ctx     context.Context
	factory Factory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*running
	active   string
}

type running struct {
	session *Session
	cancel  context.CancelFunc
}

// NewRegistry creates a registry whose sessions run until ctx is done.
func NewRegistry(ctx context.Context, factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctx:      ctx,
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*running),
	}
}

// Open returns the session for gameID, starting it if needed.
func (r *Registry) Open(gameID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked(gameID)
}

func (r *Registry) openLocked(gameID string) *Session {
	if run, ok := r.sessions[gameID]; ok {
		return run.session
	}
	s := r.factory(gameID)
	ctx, cancel := context.WithCancel(r.ctx)
	r.sessions[gameID] = &running{session: s, cancel: cancel}
	go func() {
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("session stopped", "game", gameID, "error", err)
		}
	}()
	r.logger.Debug("session opened", "game", gameID)
	return s
}

// Get returns the running session for gameID.
func (r *Registry) Get(gameID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.sessions[gameID]
	if !ok {
		return nil, false
	}
	return run.session, true
}

// Activate makes gameID the connected game. The previously active session
// is disconnected first.
func (r *Registry) Activate(gameID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" && r.active != gameID {
		if run, ok := r.sessions[r.active]; ok {
			run.session.Disconnect()
		}
	}
	s := r.openLocked(gameID)
	s.Connect()
	r.active = gameID
	r.logger.Info("game activated", "game", gameID)
	return s
}

// Active returns the active session.
func (r *Registry) Active() (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return nil, false
	}
	run, ok := r.sessions[r.active]
	if !ok {
		return nil, false
	}
	return run.session, true
}

// Games returns the ids of the open sessions.
func (r *Registry) Games() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close stops the session for gameID and waits for it to exit.
func (r *Registry) Close(gameID string) {
	r.mu.Lock()
	run, ok := r.sessions[gameID]
	if ok {
		delete(r.sessions, gameID)
		if r.active == gameID {
			r.active = ""
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	run.session.Close()
	<-run.session.Done()
	run.cancel()
}

// CloseAll stops every session.
func (r *Registry) CloseAll() {
	for _, id := range r.Games() {
		r.Close(id)
	}
}
