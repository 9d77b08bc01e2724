package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/wire"
)

// input is anything the session loop reacts to.
type input interface {
	isInput()
}

type submitInput struct {
	action model.Action
	// target, when set, picks the UNDO reference from the local log.
	target func([]model.Action) string
	reply  chan submitResult
}

type submitResult struct {
	action model.Action
	err    error
}

type connectInput struct{}

type disconnectInput struct{}

type resolveInput struct {
	res   Resolution
	reply chan error
}

type dialInput struct {
	epoch uint64
	conn  Conn
	err   error
}

type recvInput struct {
	epoch uint64
	msg   wire.Message
}

type lostInput struct {
	epoch uint64
	err   error
}

type timerInput struct {
	kind timerKind
	tag  uint64
}

type batchInput struct {
	gen  uint64
	sent []model.Action
	resp wire.BatchResponse
	err  error
}

type authInput struct {
	round uint64
	err   error
}

type overwriteInput struct {
	actions []model.Action
	head    model.Revision
	err     error
	reply   chan error
}

func (submitInput) isInput()     {}
func (connectInput) isInput()    {}
func (disconnectInput) isInput() {}
func (resolveInput) isInput()    {}
func (dialInput) isInput()       {}
func (recvInput) isInput()       {}
func (lostInput) isInput()       {}
func (timerInput) isInput()      {}
func (batchInput) isInput()      {}
func (authInput) isInput()       {}
func (overwriteInput) isInput()  {}

type timerKind int

const (
	// Tagged with the connection epoch.
	timerReconnect timerKind = iota + 1
	timerHeartbeat
	timerPong

	// Tagged with the generation.
	timerRetry

	// Tagged with the auth round.
	timerAuth
)

func (s *Session) handle(in input) {
	switch in := in.(type) {
	case submitInput:
		s.onSubmit(in)
	case connectInput:
		s.onConnect()
	case disconnectInput:
		s.onDisconnect()
	case resolveInput:
		s.onResolve(in)
	case dialInput:
		s.onDial(in)
	case recvInput:
		s.onReceive(in)
	case lostInput:
		if in.epoch == s.epoch {
			s.logger.Warn("channel lost", "error", in.err)
			s.lost()
		}
	case timerInput:
		s.onTimer(in)
	case batchInput:
		s.onBatch(in)
	case authInput:
		s.onAuth(in)
	case overwriteInput:
		s.onOverwrite(in)
	}
}

func (s *Session) start() {
	s.want = s.dialer != nil
	s.connect()
	s.flush()
}

func (s *Session) shutdown() {
	s.closeConn()
	s.stopTimers()
	s.status = StatusDisconnected
	s.publish()
	s.logger.Debug("session stopped")
}

// restore loads the cached log. Pending ids come back in their saved order.
func (s *Session) restore() {
	if s.cache == nil {
		return
	}
	snap, err := s.cache.Load(s.ctx, s.gameID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("cache load failed", "error", err)
		return
	}
	if err := s.log.Replace(snap.Actions); err != nil {
		s.logger.Error("cached log rejected", "error", err)
		return
	}
	s.revision = snap.Revision
	s.confirmed = snap.Revision
	actions := s.log.Actions()
	for _, id := range snap.Pending {
		if i := s.log.IndexOf(id); i >= 0 {
			s.pending.Add(actions[i])
		}
	}
	s.rebuildOutbound()
	s.logger.Info("restored from cache",
		"actions", len(actions),
		"pending", s.pending.Len(),
		"revision", s.revision,
	)
}

// persist writes the local log to the cache. The entry stays dirty while
// anything is pending.
func (s *Session) persist() {
	if s.cache == nil {
		return
	}
	snap := store.Snapshot{
		GameID:   s.gameID,
		Actions:  s.log.Actions(),
		Revision: s.revision,
		Pending:  s.pending.IDs(),
	}
	if err := s.cache.Save(s.ctx, s.gameID, snap, true); err != nil {
		s.logger.Error("cache save failed", "error", err)
		return
	}
	if s.pending.Len() == 0 {
		if err := s.cache.MarkClean(s.ctx, s.gameID); err != nil {
			s.logger.Error("cache mark clean failed", "error", err)
		}
	}
}

func (s *Session) onSubmit(in submitInput) {
	a := in.action
	if in.target != nil {
		ref := in.target(s.log.Actions())
		if ref == "" {
			in.reply <- submitResult{err: errNoTarget}
			return
		}
		a.Payload = model.Obj(model.P(model.RefKey, model.String(ref)))
	}
	if err := s.log.Append(a); err != nil {
		in.reply <- submitResult{err: err}
		return
	}
	s.pending.Add(a)
	s.outbound = append(s.outbound, a)
	s.persist()
	s.publish()
	in.reply <- submitResult{action: a}
	s.logger.Debug("action submitted", "id", a.ID, "type", a.Type)
	s.flush()
}

func (s *Session) onConnect() {
	s.stopped = false
	s.want = s.dialer != nil
	s.attempts = 0
	if s.status == StatusError && !s.authPaused {
		s.setStatus(StatusDisconnected)
	}
	s.connect()
	s.flush()
}

func (s *Session) onDisconnect() {
	s.stopped = true
	s.want = false
	s.invalidate()
	s.closeConn()
	s.stopTimers()
	s.authPaused = false
	s.setStatus(StatusDisconnected)
	s.logger.Info("disconnected")
}

// connect dials the channel unless a dial is already under way.
func (s *Session) connect() {
	if !s.want || s.stopped || s.authPaused || s.conn != nil || s.dialing {
		return
	}
	s.invalidate()
	s.epoch++
	s.dialing = true
	s.setStatus(StatusConnecting)

	epoch := s.epoch
	ctx, cancel := context.WithCancel(s.ctx)
	s.connCtx = ctx
	s.connCancel = cancel
	go func() {
		conn, err := s.dialer.Dial(ctx, s.gameID)
		if !s.inbox.Enqueue(dialInput{epoch: epoch, conn: conn, err: err}) && conn != nil {
			conn.Close()
		}
	}()
}

func (s *Session) onDial(in dialInput) {
	if in.epoch != s.epoch || !s.dialing {
		if in.conn != nil {
			in.conn.Close()
		}
		return
	}
	s.dialing = false
	if in.err != nil {
		if IsAuthRequired(in.err) {
			s.pauseForAuth(in.err)
			return
		}
		s.logger.Warn("dial failed", "attempt", s.attempts, "error", in.err)
		s.lost()
		return
	}
	s.conn = in.conn
	s.setStatus(StatusSyncing)

	go s.read(s.connCtx, in.conn, in.epoch)

	join := wire.Join{
		GameID:        s.gameID,
		LastRevision:  s.revision,
		SchemaVersion: model.SchemaVersion,
		ClientVersion: s.cfg.ClientVersion,
	}
	if !s.send(join) {
		return
	}
	s.startTimer(timerHeartbeat, s.cfg.HeartbeatInterval, s.epoch)
}

func (s *Session) read(ctx context.Context, conn Conn, epoch uint64) {
	for {
		m, err := conn.Receive(ctx)
		if err != nil {
			s.inbox.Enqueue(lostInput{epoch: epoch, err: err})
			return
		}
		if !s.inbox.Enqueue(recvInput{epoch: epoch, msg: m}) {
			return
		}
	}
}

// send writes m on the channel. A write failure is treated as a lost
// channel and reported as false.
func (s *Session) send(m wire.Message) bool {
	if s.conn == nil {
		return false
	}
	if err := s.conn.Send(s.ctx, m); err != nil {
		s.logger.Warn("channel send failed", "kind", m.Kind(), "error", err)
		s.lost()
		return false
	}
	return true
}

// closeConn tears down the channel and retires its epoch.
func (s *Session) closeConn() {
	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.epoch++
	s.inFlight = ""
	s.dialing = false
	s.awaitingPong = false
	s.stopTimer(timerHeartbeat)
	s.stopTimer(timerPong)
	s.stopTimer(timerReconnect)
}

// lost handles a failed or closed channel: unsent and unacknowledged
// actions go back on the queue and the fallback takes over until the
// reconnect succeeds.
func (s *Session) lost() {
	s.closeConn()
	s.rebuildOutbound()
	if s.want && !s.stopped && !s.authPaused {
		s.scheduleReconnect()
	} else if !s.authPaused {
		s.setStatus(StatusDisconnected)
	}
	s.flush()
}

func (s *Session) scheduleReconnect() {
	if s.attempts >= s.cfg.MaxReconnectAttempts {
		s.want = false
		s.setStatus(StatusError)
		err := &SyncError{
			Kind:    KindNetwork,
			Message: fmt.Sprintf("gave up after %d reconnect attempts", s.attempts),
		}
		s.logger.Error("reconnect abandoned", "attempts", s.attempts)
		s.listener.OnError(s.gameID, err)
		return
	}
	d := s.cfg.Reconnect.Delay(s.attempts)
	s.attempts++
	s.metrics.reconnect(s.gameID)
	s.setStatus(StatusConnecting)
	s.logger.Info("reconnect scheduled", "attempt", s.attempts, "delay", d)
	s.startTimer(timerReconnect, d, s.epoch)
}

func (s *Session) onReceive(in recvInput) {
	if in.epoch != s.epoch {
		return
	}
	switch m := in.msg.(type) {
	case wire.Ack:
		s.onAck(m)
	case wire.SyncUpdate:
		for _, a := range m.Actions {
			s.applyRemote(a)
		}
		s.persist()
		s.flush()
	case wire.Conflict:
		if s.status == StatusSynced && s.inFlight == "" {
			s.logger.Debug("ignoring conflict with nothing in flight", "server_head", m.ServerHeadRevision)
			return
		}
		s.onConflict(m.ConflictRecord)
	case wire.Error:
		s.onServerError(m)
	case wire.Ping:
		s.send(wire.Pong{SentAt: m.SentAt})
	case wire.Pong:
		s.awaitingPong = false
		s.stopTimer(timerPong)
	default:
		s.logger.Warn("unexpected message", "kind", in.msg.Kind())
	}
}

// onAck completes a JOIN. Everything still pending is resent on the channel
// from the last confirmed position. Once synced, an ACK answers an ACTION
// the authoritative log already held.
func (s *Session) onAck(m wire.Ack) {
	s.attempts = 0
	if s.status == StatusSynced {
		if id := s.inFlight; id != "" {
			s.inFlight = ""
			s.pending.Remove(id)
			s.advance(model.Revision(id))
		}
		s.advance(m.Head)
		s.persist()
		s.flush()
		return
	}
	s.setStatus(StatusSynced)
	s.advance(m.Head)
	s.rebuildOutbound()
	s.persist()
	s.logger.Info("synced", "head", m.Head, "pending", s.pending.Len())
	s.flush()
}

// applyRemote folds one action from the authoritative log into the local
// log. Echoes of pending actions only clear the pending entry.
func (s *Session) applyRemote(a model.Action) {
	if s.inFlight == a.ID {
		s.inFlight = ""
	}
	switch {
	case s.pending.Remove(a.ID):
		s.outbound = slices.DeleteFunc(s.outbound, func(o model.Action) bool { return o.ID == a.ID })
	case s.log.Contains(a.ID):
	default:
		s.log.Rebase([]model.Action{a}, s.pending.IDs())
		s.listener.OnRemoteAction(s.gameID, a)
	}
	s.advance(model.Revision(a.ID))
}

// advance moves the confirmed position forward to rev and, once nothing is
// pending, the revision with it. Neither ever moves backward.
func (s *Session) advance(rev model.Revision) {
	if rev != "" {
		at := s.log.IndexOf(string(rev))
		if at >= 0 && (s.confirmed == "" || at > s.log.IndexOf(string(s.confirmed))) {
			s.confirmed = rev
		}
	}
	if s.pending.Len() > 0 || s.confirmed == s.revision {
		return
	}
	if s.revision == "" || s.log.IndexOf(string(s.confirmed)) > s.log.IndexOf(string(s.revision)) {
		s.revision = s.confirmed
	}
}

// onConflict handles a stale base. Actions the authoritative log already
// holds are folded in and pending actions are resubmitted on top of them.
// A divergent history waits for Resolve.
func (s *Session) onConflict(c model.ConflictRecord) {
	s.inFlight = ""
	s.invalidate()
	s.outbound = nil
	s.logger.Info("conflict",
		"server_head", c.ServerHeadRevision,
		"missing", len(c.MissingActions),
		"divergent", c.Divergent,
	)

	if c.Divergent {
		s.metrics.conflict(s.gameID, "divergent")
		rec := c
		s.conflict = &rec
		s.setStatus(StatusConflict)
		s.listener.OnConflict(s.gameID, c)
		return
	}

	s.metrics.conflict(s.gameID, "fast_forward")
	var foreign []model.Action
	for _, a := range c.MissingActions {
		if s.pending.Remove(a.ID) {
			continue
		}
		if !s.log.Contains(a.ID) {
			foreign = append(foreign, a)
		}
	}
	s.log.Rebase(c.MissingActions, s.pending.IDs())
	if s.log.Contains(string(c.ServerHeadRevision)) {
		s.confirmed = c.ServerHeadRevision
	}
	s.advance("")
	s.rebuildOutbound()
	s.persist()
	for _, a := range foreign {
		s.listener.OnRemoteAction(s.gameID, a)
	}
	s.listener.OnConflict(s.gameID, c)
	s.flush()
}

func (s *Session) onServerError(m wire.Error) {
	err := errorFromWire(m)
	s.logger.Warn("server error", "code", m.Code, "reason", m.Reason)
	s.inFlight = ""
	switch m.Code {
	case wire.CodeAuth:
		s.pauseForAuth(err)
	case wire.CodeRateLimited:
		s.rebuildOutbound()
		d := err.RetryAfter
		if d <= 0 {
			d = s.cfg.Submit.Delay(s.submitAttempts)
		}
		s.scheduleRetry(d)
	case wire.CodeValidation, wire.CodeProtocol:
		s.listener.OnError(s.gameID, err)
		s.lost()
	default:
		s.listener.OnError(s.gameID, err)
		s.rebuildOutbound()
		s.retryLater(err)
	}
}

func errorFromWire(m wire.Error) *SyncError {
	kind := KindNetwork
	switch m.Code {
	case wire.CodeAuth:
		kind = KindAuthRequired
	case wire.CodeRateLimited:
		kind = KindRateLimited
	case wire.CodeValidation:
		kind = KindValidation
	case wire.CodeProtocol:
		kind = KindProtocol
	}
	return &SyncError{
		Kind:       kind,
		Message:    m.Reason,
		RetryAfter: time.Duration(m.RetryAfterMs) * time.Millisecond,
	}
}

// flush drains the outbound queue. A synced channel carries one ACTION at
// a time, based on the last confirmed action, and the next one goes out
// after the echo, ACK or CONFLICT. Otherwise the fallback sends one batch
// at a time.
func (s *Session) flush() {
	if s.stopped || s.hold || s.authPaused || s.conflict != nil {
		return
	}
	s.outbound = slices.DeleteFunc(s.outbound, func(a model.Action) bool { return !s.pending.Has(a.ID) })
	if len(s.outbound) == 0 {
		return
	}

	if s.conn != nil && s.status == StatusSynced {
		if s.inFlight != "" {
			return
		}
		a := s.outbound[0]
		if !s.send(wire.Submit{Action: &a, BaseRevision: s.confirmed}) {
			return
		}
		s.inFlight = a.ID
		s.outbound = s.outbound[1:]
		return
	}

	if s.batcher == nil || s.batchInFlight {
		return
	}
	n := min(len(s.outbound), s.cfg.MaxBatch)
	batch := slices.Clone(s.outbound[:n])
	s.outbound = slices.Clone(s.outbound[n:])
	s.batchInFlight = true

	base := s.confirmed
	gen := s.gen
	ctx := s.ctx
	s.logger.Debug("submitting batch", "actions", len(batch), "base", base)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		resp, err := s.batcher.SubmitBatch(ctx, s.gameID, base, batch)
		s.inbox.Enqueue(batchInput{gen: gen, sent: batch, resp: resp, err: err})
	}()
}

func (s *Session) onBatch(in batchInput) {
	if in.gen != s.gen {
		s.logger.Debug("discarding stale batch response", "generation", in.gen, "current", s.gen)
		return
	}
	s.batchInFlight = false

	if in.err == nil {
		s.metrics.batch(s.gameID, "ok")
		s.submitAttempts = 0
		for _, a := range in.sent {
			s.pending.Remove(a.ID)
			s.advance(model.Revision(a.ID))
		}
		s.advance(in.resp.Head)
		s.persist()
		s.flush()
		return
	}

	s.rebuildOutbound()
	switch {
	case IsConflict(in.err):
		s.metrics.batch(s.gameID, "conflict")
		if rec, ok := ConflictOf(in.err); ok {
			s.onConflict(rec)
			return
		}
		s.retryLater(in.err)
	case IsRateLimited(in.err):
		s.metrics.batch(s.gameID, "rate_limited")
		d := RetryAfter(in.err)
		if d <= 0 {
			d = s.cfg.Submit.Delay(s.submitAttempts)
		}
		s.logger.Warn("batch rate limited", "retry_after", d)
		s.scheduleRetry(d)
	case IsAuthRequired(in.err):
		s.metrics.batch(s.gameID, "auth")
		s.pauseForAuth(in.err)
	case IsValidation(in.err):
		s.metrics.batch(s.gameID, "invalid")
		s.listener.OnError(s.gameID, in.err)
		s.retryLater(in.err)
		if s.conn != nil {
			s.lost()
		}
	default:
		s.metrics.batch(s.gameID, "error")
		s.retryLater(in.err)
	}
}

func (s *Session) retryLater(err error) {
	d := s.cfg.Submit.Delay(s.submitAttempts)
	s.submitAttempts++
	s.logger.Warn("submit failed", "attempt", s.submitAttempts, "retry_in", d, "error", err)
	s.scheduleRetry(d)
}

// scheduleRetry holds all sending until d has elapsed.
func (s *Session) scheduleRetry(d time.Duration) {
	s.hold = true
	s.startTimer(timerRetry, d, s.gen)
}

// pauseForAuth stops submitting and polls the auth checker until it
// succeeds.
func (s *Session) pauseForAuth(err error) {
	if s.authPaused {
		return
	}
	s.logger.Warn("authorization required; pausing", "error", err)
	s.closeConn()
	s.rebuildOutbound()
	s.authPaused = true
	s.authRound++
	s.authAttempts = 0
	s.setStatus(StatusError)
	s.listener.OnError(s.gameID, err)
	s.startTimer(timerAuth, s.cfg.Auth.Delay(0), s.authRound)
}

func (s *Session) pollAuth() {
	round := s.authRound
	if s.auth == nil {
		s.onAuth(authInput{round: round})
		return
	}
	ctx := s.ctx
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		s.inbox.Enqueue(authInput{round: round, err: s.auth.CheckAuth(ctx)})
	}()
}

func (s *Session) onAuth(in authInput) {
	if in.round != s.authRound || !s.authPaused {
		return
	}
	if in.err != nil {
		s.authAttempts++
		d := s.cfg.Auth.Delay(s.authAttempts)
		s.logger.Debug("still unauthorized", "attempt", s.authAttempts, "retry_in", d)
		s.startTimer(timerAuth, d, s.authRound)
		return
	}
	s.logger.Info("authorization restored")
	s.authPaused = false
	s.attempts = 0
	s.setStatus(StatusDisconnected)
	s.rebuildOutbound()
	s.connect()
	s.flush()
}

func (s *Session) onTimer(in timerInput) {
	switch in.kind {
	case timerReconnect:
		if in.tag != s.epoch {
			return
		}
		delete(s.timers, in.kind)
		s.connect()
	case timerHeartbeat:
		if in.tag != s.epoch || s.conn == nil {
			return
		}
		delete(s.timers, in.kind)
		if !s.send(wire.Ping{SentAt: s.clock.Now().UnixMilli()}) {
			return
		}
		if !s.awaitingPong {
			s.awaitingPong = true
			s.startTimer(timerPong, s.cfg.PongTimeout, s.epoch)
		}
		s.startTimer(timerHeartbeat, s.cfg.HeartbeatInterval, s.epoch)
	case timerPong:
		if in.tag != s.epoch || !s.awaitingPong {
			return
		}
		delete(s.timers, in.kind)
		s.logger.Warn("heartbeat timeout", "error", errHeartbeatTimeout)
		s.lost()
	case timerRetry:
		if in.tag != s.gen {
			return
		}
		delete(s.timers, in.kind)
		s.hold = false
		s.flush()
	case timerAuth:
		if in.tag != s.authRound {
			return
		}
		delete(s.timers, in.kind)
		s.pollAuth()
	}
}

func (s *Session) onResolve(in resolveInput) {
	if s.conflict == nil {
		in.reply <- ErrNoConflict
		return
	}
	c := *s.conflict
	switch in.res.Strategy {
	case KeepRemote:
		s.metrics.conflict(s.gameID, "keep_remote")
		s.answer(in.reply, s.adopt(c.MissingActions, c.ServerHeadRevision))
	case Fork:
		if in.res.ForkGameID == "" || in.res.ForkGameID == s.gameID {
			in.reply <- errors.New("resolve: fork needs a new game id")
			return
		}
		if s.cache != nil {
			local := s.log.Actions()
			snap := store.Snapshot{GameID: in.res.ForkGameID, Actions: local}
			for _, a := range local {
				snap.Pending = append(snap.Pending, a.ID)
			}
			if err := s.cache.Save(s.ctx, in.res.ForkGameID, snap, true); err != nil {
				in.reply <- fmt.Errorf("resolve: save fork: %w", err)
				return
			}
		}
		s.metrics.conflict(s.gameID, "fork")
		s.logger.Info("forked local history", "fork", in.res.ForkGameID)
		s.answer(in.reply, s.adopt(c.MissingActions, c.ServerHeadRevision))
	case KeepLocal:
		if s.batcher == nil {
			in.reply <- errors.New("resolve: keep local needs a batch transport")
			return
		}
		actions := s.log.Actions()
		ctx := s.ctx
		go func() {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()
			head, err := s.batcher.Overwrite(ctx, s.gameID, actions)
			if !s.inbox.Enqueue(overwriteInput{actions: actions, head: head, err: err, reply: in.reply}) {
				in.reply <- ErrClosed
			}
		}()
	default:
		in.reply <- fmt.Errorf("resolve: unknown strategy %d", in.res.Strategy)
	}
}

func (s *Session) onOverwrite(in overwriteInput) {
	if s.conflict == nil {
		in.reply <- ErrNoConflict
		return
	}
	if in.err != nil {
		s.logger.Warn("overwrite failed", "error", in.err)
		in.reply <- fmt.Errorf("resolve: overwrite: %w", in.err)
		return
	}
	s.metrics.conflict(s.gameID, "keep_local")
	s.answer(in.reply, s.adopt(in.actions, in.head))
}

// answer publishes the new state before unblocking the caller.
func (s *Session) answer(reply chan error, err error) {
	s.publish()
	reply <- err
}

// adopt replaces the local log with an authoritative one and clears the
// conflict. The channel is rejoined from the new revision.
func (s *Session) adopt(actions []model.Action, head model.Revision) error {
	if err := s.log.Replace(actions); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	s.pending.Clear()
	s.outbound = nil
	s.inFlight = ""
	s.revision = head
	s.confirmed = head
	s.conflict = nil
	s.persist()

	s.closeConn()
	s.attempts = 0
	s.setStatus(StatusDisconnected)
	s.logger.Info("conflict resolved", "head", head, "actions", len(actions))
	s.connect()
	return nil
}

// invalidate starts a new generation: in-flight batch responses and retry
// timers from the old one are ignored.
func (s *Session) invalidate() {
	s.gen++
	s.batchInFlight = false
	s.hold = false
	s.stopTimer(timerRetry)
	s.rebuildOutbound()
}

// rebuildOutbound requeues every pending action except one still awaiting
// its answer on the channel. Resubmission is safe because the
// authoritative log skips ids it already holds.
func (s *Session) rebuildOutbound() {
	s.outbound = s.pending.Actions()
	if s.inFlight != "" {
		s.outbound = slices.DeleteFunc(s.outbound, func(a model.Action) bool { return a.ID == s.inFlight })
	}
}

func (s *Session) setStatus(st Status) {
	if s.status == st {
		return
	}
	if s.conflict != nil && st != StatusConflict {
		return
	}
	prev := s.status
	s.status = st
	s.logger.Debug("status changed", "from", prev, "to", st)
	s.listener.OnStatusChange(s.gameID, st)
}

func (s *Session) startTimer(kind timerKind, d time.Duration, tag uint64) {
	s.stopTimer(kind)
	s.timers[kind] = s.clock.AfterFunc(d, func() {
		s.inbox.Enqueue(timerInput{kind: kind, tag: tag})
	})
}

func (s *Session) stopTimer(kind timerKind) {
	if t, ok := s.timers[kind]; ok {
		t.Stop()
		delete(s.timers, kind)
	}
}

func (s *Session) stopTimers() {
	for kind, t := range s.timers {
		t.Stop()
		delete(s.timers, kind)
	}
}
