package server

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/scorelog/internal/transport/ws"
	"github.com/roach88/scorelog/internal/wire"
)

// outboxSize bounds the messages queued for one channel. A peer that falls
// this far behind is disconnected and catches up on its next JOIN.
const outboxSize = 256

// peer is one open channel. Writes go through out so a slow peer never
// blocks a broadcast.
type peer struct {
	game string
	conn *ws.Conn
	out  chan wire.Message
	quit chan struct{}
	once sync.Once
}

func newPeer(game string, conn *ws.Conn) *peer {
	return &peer{
		game: game,
		conn: conn,
		out:  make(chan wire.Message, outboxSize),
		quit: make(chan struct{}),
	}
}

// enqueue queues m for writing. It reports false when the peer is gone or
// its outbox overflowed, in which case the peer is closed.
func (p *peer) enqueue(m wire.Message) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.out <- m:
		return true
	case <-p.quit:
		return false
	default:
		p.close()
		return false
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.quit)
		p.conn.Close()
	})
}

// writeLoop drains the outbox and pings when interval is positive.
func (p *peer) writeLoop(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case m := <-p.out:
			if err := p.conn.Send(ctx, m); err != nil {
				p.close()
				return
			}
		case now := <-tick:
			if err := p.conn.Send(ctx, wire.Ping{SentAt: now.UnixMilli()}); err != nil {
				p.close()
				return
			}
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// hub tracks the open channels of every game.
type hub struct {
	mu    sync.Mutex
	games map[string]map[*peer]struct{}
}

func newHub() *hub {
	return &hub{games: make(map[string]map[*peer]struct{})}
}

func (h *hub) join(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.games[p.game]
	if !ok {
		peers = make(map[*peer]struct{})
		h.games[p.game] = peers
	}
	peers[p] = struct{}{}
}

func (h *hub) leave(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := h.games[p.game]
	delete(peers, p)
	if len(peers) == 0 {
		delete(h.games, p.game)
	}
}

func (h *hub) peers(game string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*peer, 0, len(h.games[game]))
	for p := range h.games[game] {
		out = append(out, p)
	}
	return out
}

// broadcast queues m on every channel of game, the submitter's included.
func (h *hub) broadcast(game string, m wire.Message) {
	for _, p := range h.peers(game) {
		p.enqueue(m)
	}
}

// closeGame drops every channel of game. Clients reconnect and JOIN again.
func (h *hub) closeGame(game string) {
	for _, p := range h.peers(game) {
		p.close()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*peer
	for _, peers := range h.games {
		for p := range peers {
			all = append(all, p)
		}
	}
	h.mu.Unlock()
	for _, p := range all {
		p.close()
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, peers := range h.games {
		n += len(peers)
	}
	return n
}
