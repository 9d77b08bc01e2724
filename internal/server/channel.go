package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/transport/ws"
	"github.com/roach88/scorelog/internal/wire"
)

// channel upgrades to a websocket and serves the JOIN/ACTION protocol for
// one game until the peer goes away.
func (s *Server) channel(w http.ResponseWriter, r *http.Request) {
	game := mux.Vars(r)["id"]
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("channel upgrade failed", "game", game, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	p := newPeer(game, ws.NewConn(c, s.writeTimeout))
	s.metrics.channelOpened()
	s.logger.Info("channel opened", "game", game, "remote", r.RemoteAddr)
	defer func() {
		s.hub.leave(p)
		p.close()
		s.metrics.channelClosed()
		s.logger.Info("channel closed", "game", game, "remote", r.RemoteAddr)
	}()
	go p.writeLoop(ctx, s.pingInterval)

	key := clientKey(r)
	joined := false
	for {
		m, err := p.conn.Receive(ctx)
		if err != nil {
			var perr *wire.ProtocolError
			if errors.As(err, &perr) {
				s.metrics.reject("protocol")
				p.enqueue(wire.Error{Code: wire.CodeProtocol, Reason: perr.Error()})
				continue
			}
			if !ws.IsClosed(err) {
				s.logger.Debug("channel read failed", "game", game, "error", err)
			}
			return
		}

		switch m := m.(type) {
		case wire.Join:
			joined = s.join(ctx, p, m)
		case wire.Submit:
			if !joined {
				p.enqueue(wire.Error{Code: wire.CodeProtocol, Reason: "ACTION before JOIN"})
				continue
			}
			s.submit(ctx, p, key, m)
		case wire.Ping:
			p.enqueue(wire.Pong{SentAt: m.SentAt})
		case wire.Pong:
		default:
			p.enqueue(wire.Error{Code: wire.CodeProtocol, Reason: "unexpected " + string(m.Kind())})
		}

		select {
		case <-p.quit:
			return
		default:
		}
	}
}

// join catches the peer up from its last revision and subscribes it. It
// reports whether the peer may submit.
func (s *Server) join(ctx context.Context, p *peer, j wire.Join) bool {
	if j.GameID != "" && j.GameID != p.game {
		p.enqueue(wire.Error{Code: wire.CodeProtocol, Reason: "JOIN for " + j.GameID + " on channel of " + p.game})
		return false
	}

	// Held so no append lands between the catch-up read and the subscribe.
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	head, _, err := s.store.Head(ctx, p.game)
	if err != nil {
		s.logger.Error("join failed", "game", p.game, "error", err)
		p.enqueue(errorBody(err))
		return false
	}
	missing, found, err := s.store.Since(ctx, p.game, j.LastRevision)
	if err != nil {
		s.logger.Error("join failed", "game", p.game, "error", err)
		p.enqueue(errorBody(err))
		return false
	}
	if !found {
		all, err := s.store.Actions(ctx, p.game)
		if err != nil {
			p.enqueue(errorBody(err))
			return false
		}
		s.metrics.conflict("join")
		s.logger.Info("join from unknown revision", "game", p.game, "revision", j.LastRevision, "head", head)
		p.enqueue(wire.Conflict{ConflictRecord: model.ConflictRecord{
			ServerHeadRevision: head,
			MissingActions:     all,
			Divergent:          true,
		}})
		return false
	}

	s.hub.join(p)
	if len(missing) > 0 {
		p.enqueue(wire.SyncUpdate{Actions: missing, Head: head})
	}
	p.enqueue(wire.Ack{Head: head})
	s.logger.Debug("joined", "game", p.game, "revision", j.LastRevision, "head", head, "catchup", len(missing))
	return true
}

// submit appends one ACTION. Accepted actions reach the submitter through
// the broadcast; a pure retransmission is answered with an ACK.
func (s *Server) submit(ctx context.Context, p *peer, key string, m wire.Submit) {
	actions := m.All()
	if ok, wait := s.limits.allow(key, len(actions), s.now()); !ok {
		s.metrics.reject("rate_limited")
		p.enqueue(wire.Error{
			Code:         wire.CodeRateLimited,
			Reason:       "rate limit exceeded",
			RetryAfterMs: wait.Milliseconds(),
		})
		return
	}

	res, err := s.appendActions(ctx, p.game, m.BaseRevision, actions, "channel")
	if err != nil {
		body := errorBody(err)
		if body.Code == wire.CodeInternal {
			s.logger.Error("append failed", "game", p.game, "error", err)
		}
		s.metrics.reject(string(body.Code))
		p.enqueue(body)
		return
	}
	switch {
	case res.Conflict != nil:
		p.enqueue(wire.Conflict{ConflictRecord: *res.Conflict})
	case len(res.Accepted) == 0:
		p.enqueue(wire.Ack{Head: res.Head})
	}
}
