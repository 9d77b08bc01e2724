package session

import (
	"github.com/roach88/scorelog/internal/model"
)

// Listener receives session notifications. Calls are made from the session
// goroutine, one at a time, and must not block for long.
type Listener interface {
	// OnRemoteAction is called once for every action another device added.
	OnRemoteAction(gameID string, a model.Action)
	OnConflict(gameID string, c model.ConflictRecord)
	OnError(gameID string, err error)
	OnStatusChange(gameID string, s Status)
}

// NopListener ignores every notification.
type NopListener struct{}

func (NopListener) OnRemoteAction(string, model.Action)     {}
func (NopListener) OnConflict(string, model.ConflictRecord) {}
func (NopListener) OnError(string, error)                   {}
func (NopListener) OnStatusChange(string, Status)           {}

// Event is one notification delivered by ChannelListener.
type Event interface {
	Game() string
}

// RemoteActionEvent carries an action added by another device.
type RemoteActionEvent struct {
	GameID string
	Action model.Action
}

// ConflictEvent carries a conflict record.
type ConflictEvent struct {
	GameID   string
	Conflict model.ConflictRecord
}

// ErrorEvent carries a surfaced error.
type ErrorEvent struct {
	GameID string
	Err    error
}

// StatusEvent carries a status change.
type StatusEvent struct {
	GameID string
	Status Status
}

func (e RemoteActionEvent) Game() string { return e.GameID }
func (e ConflictEvent) Game() string     { return e.GameID }
func (e ErrorEvent) Game() string        { return e.GameID }
func (e StatusEvent) Game() string       { return e.GameID }

// ChannelListener turns notifications into a stream of Events. The channel
// must be drained: a full buffer blocks the session.
type ChannelListener struct {
	ch chan Event
}

// NewChannelListener creates a listener with the given buffer size.
func NewChannelListener(buffer int) *ChannelListener {
	return &ChannelListener{ch: make(chan Event, buffer)}
}

// Events returns the event stream.
func (l *ChannelListener) Events() <-chan Event {
	return l.ch
}

func (l *ChannelListener) OnRemoteAction(g string, a model.Action) {
	l.ch <- RemoteActionEvent{GameID: g, Action: a}
}

func (l *ChannelListener) OnConflict(g string, c model.ConflictRecord) {
	l.ch <- ConflictEvent{GameID: g, Conflict: c}
}

func (l *ChannelListener) OnError(g string, err error) {
	l.ch <- ErrorEvent{GameID: g, Err: err}
}

func (l *ChannelListener) OnStatusChange(g string, s Status) {
	l.ch <- StatusEvent{GameID: g, Status: s}
}
