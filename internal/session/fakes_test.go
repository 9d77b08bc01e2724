package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/testutil"
	"github.com/roach88/scorelog/internal/wire"
)

const waitFor = 2 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeConn is the client end of an in-memory channel. The test plays the
// server through push, next and drop.
type fakeConn struct {
	sent   chan wire.Message
	recv   chan wire.Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sent:   make(chan wire.Message, 256),
		recv:   make(chan wire.Message, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(_ context.Context, m wire.Message) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.sent <- m
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) (wire.Message, error) {
	select {
	case m := <-c.recv:
		return m, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(m wire.Message) {
	c.recv <- m
}

func (c *fakeConn) drop() {
	c.Close()
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) next(t *testing.T) wire.Message {
	t.Helper()
	select {
	case m := <-c.sent:
		return m
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a client message")
		return nil
	}
}

// nextOf skips heartbeats until a message of type M arrives.
func nextOf[M wire.Message](t *testing.T, c *fakeConn) M {
	t.Helper()
	for {
		m := c.next(t)
		if out, ok := m.(M); ok {
			return out
		}
		if _, ok := m.(wire.Ping); ok {
			continue
		}
		t.Fatalf("unexpected client message %s", m.Kind())
	}
}

// expectNoSubmit fails if an ACTION arrives before the client has an
// answer to the previous one.
func expectNoSubmit(t *testing.T, c *fakeConn) {
	t.Helper()
	deadline := time.After(20 * time.Millisecond)
	for {
		select {
		case m := <-c.sent:
			if _, ok := m.(wire.Submit); ok {
				t.Fatalf("ACTION %s sent while another is unanswered", m.(wire.Submit).Action.ID)
			}
		case <-deadline:
			return
		}
	}
}

type fakeDialer struct {
	conns    chan *fakeConn
	failures atomic.Int32
	dials    atomic.Int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.dials.Add(1)
	if d.failures.Load() > 0 {
		d.failures.Add(-1)
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

// joinAndSync consumes the JOIN on c and acknowledges it with head.
func joinAndSync(t *testing.T, c *fakeConn, head model.Revision) wire.Join {
	t.Helper()
	join := nextOf[wire.Join](t, c)
	c.push(wire.Ack{Head: head})
	return join
}

type batchReply struct {
	resp wire.BatchResponse
	err  error
}

type batchCall struct {
	base    model.Revision
	actions []model.Action
	reply   chan batchReply
}

func (c batchCall) ids() []string {
	return actionIDs(c.actions)
}

func (c batchCall) ok() {
	head := c.actions[len(c.actions)-1].ID
	c.reply <- batchReply{resp: wire.BatchResponse{Head: model.Revision(head), Actions: c.actions}}
}

func (c batchCall) fail(err error) {
	c.reply <- batchReply{err: err}
}

type fakeBatcher struct {
	calls      chan batchCall
	overwrites chan []model.Action
	overwrite  func([]model.Action) (model.Revision, error)
}

func newFakeBatcher() *fakeBatcher {
	return &fakeBatcher{
		calls:      make(chan batchCall, 16),
		overwrites: make(chan []model.Action, 4),
	}
}

func (b *fakeBatcher) SubmitBatch(ctx context.Context, _ string, base model.Revision, actions []model.Action) (wire.BatchResponse, error) {
	call := batchCall{base: base, actions: actions, reply: make(chan batchReply, 1)}
	b.calls <- call
	select {
	case r := <-call.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return wire.BatchResponse{}, ctx.Err()
	}
}

func (b *fakeBatcher) Overwrite(_ context.Context, _ string, actions []model.Action) (model.Revision, error) {
	b.overwrites <- actions
	if b.overwrite != nil {
		return b.overwrite(actions)
	}
	return model.Revision(actions[len(actions)-1].ID), nil
}

func (b *fakeBatcher) next(t *testing.T) batchCall {
	t.Helper()
	select {
	case c := <-b.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a batch")
		return batchCall{}
	}
}

type fakeAuth struct {
	mu      sync.Mutex
	results []error
	checks  atomic.Int32
}

func (a *fakeAuth) CheckAuth(context.Context) error {
	a.checks.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.results) == 0 {
		return nil
	}
	err := a.results[0]
	a.results = a.results[1:]
	return err
}

type memCache struct {
	mu    sync.Mutex
	snaps map[string]store.Snapshot
	dirty map[string]bool
}

func newMemCache() *memCache {
	return &memCache{snaps: make(map[string]store.Snapshot), dirty: make(map[string]bool)}
}

func (c *memCache) Save(_ context.Context, id string, snap store.Snapshot, dirty bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[id] = snap
	c.dirty[id] = dirty
	return nil
}

func (c *memCache) Load(_ context.Context, id string) (store.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[id]
	if !ok {
		return store.Snapshot{}, store.ErrNotFound
	}
	return snap, nil
}

func (c *memCache) MarkClean(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.snaps[id]; !ok {
		return store.ErrNotFound
	}
	c.dirty[id] = false
	return nil
}

func (c *memCache) get(id string) (store.Snapshot, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[id]
	return snap, c.dirty[id], ok
}

// recorder is a Listener that keeps everything it is told.
type recorder struct {
	mu        sync.Mutex
	remote    []model.Action
	conflicts []model.ConflictRecord
	errs      []error
	statuses  []Status
}

func (r *recorder) OnRemoteAction(_ string, a model.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote = append(r.remote, a)
}

func (r *recorder) OnConflict(_ string, c model.ConflictRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = append(r.conflicts, c)
}

func (r *recorder) OnError(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) OnStatusChange(_ string, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) remoteIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return actionIDs(r.remote)
}

func (r *recorder) conflictCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conflicts)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

func actionIDs(actions []model.Action) []string {
	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}

func act(id string) model.Action {
	return model.Action{
		ID:            id,
		Type:          "note.add",
		Payload:       model.Obj(model.P("text", model.String(id))),
		Timestamp:     1,
		SchemaVersion: model.SchemaVersion,
	}
}

func scoreAct(id, team string, points int64) model.Action {
	return model.Action{
		ID:            id,
		Type:          "score.add",
		Payload:       model.Obj(model.P("team", model.String(team)), model.P("points", model.Int(points))),
		Timestamp:     1,
		SchemaVersion: model.SchemaVersion,
	}
}

// testConfig removes jitter so every delay is predictable.
func testConfig() Config {
	cfg := DefaultConfig()
	zero := func() float64 { return 0 }
	cfg.Reconnect.Rand = zero
	cfg.Submit.Rand = zero
	cfg.Auth.Rand = zero
	return cfg
}

type harness struct {
	s      *Session
	clock  *testutil.ManualClock
	rec    *recorder
	cancel context.CancelFunc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startSession runs a session on a manual clock until the test ends.
func startSession(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{clock: testutil.NewManualClock(epoch), rec: &recorder{}}
	base := []Option{
		WithConfig(testConfig()),
		WithClock(h.clock),
		WithListener(h.rec),
		WithLogger(quietLogger()),
		WithIDGenerator(testutil.NewSequentialIDs("p")),
	}
	h.s = New("g1", append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.s.Done()
	})
	return h
}

func (h *harness) submit(t *testing.T, a model.Action) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.s.Submit(ctx, a))
}

func (h *harness) waitStatus(t *testing.T, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return h.s.Status() == want },
		waitFor, time.Millisecond, "status never became %s (is %s)", want, h.s.Status())
}

// waitTimer blocks until a timer due in d is armed.
func (h *harness) waitTimer(t *testing.T, d time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool { return slices.Contains(h.clock.Pending(), d) },
		waitFor, time.Millisecond, "no timer armed for %s (pending %v)", d, h.clock.Pending())
}

func (h *harness) waitPendingEmpty(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.s.Pending()) == 0 }, waitFor, time.Millisecond)
}
