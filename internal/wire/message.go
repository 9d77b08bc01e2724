// Package wire defines the messages exchanged between a sync session and
// the authoritative log, on the persistent channel and the batch endpoint.
package wire

import (
	"github.com/roach88/scorelog/internal/model"
)

// Kind tags a message on the wire.
type Kind string

const (
	KindJoin       Kind = "JOIN"
	KindAck        Kind = "ACK"
	KindSyncUpdate Kind = "SYNC_UPDATE"
	KindAction     Kind = "ACTION"
	KindConflict   Kind = "CONFLICT"
	KindError      Kind = "ERROR"
	KindPing       Kind = "PING"
	KindPong       Kind = "PONG"
)

// Message is a sealed union of the protocol messages.
type Message interface {
	Kind() Kind
	message()
}

// Join opens a game on the channel and declares the client's last revision.
type Join struct {
	GameID        string         `json:"gameId"`
	LastRevision  model.Revision `json:"lastRevision"`
	SchemaVersion int            `json:"schemaVersion"`
	ClientVersion string         `json:"clientVersion,omitempty"`
}

// Ack confirms the client is caught up to Head.
type Ack struct {
	Head model.Revision `json:"head"`
}

// SyncUpdate carries actions appended to the authoritative log, in order.
// A submitter receives its own accepted actions back this way.
type SyncUpdate struct {
	Actions []model.Action `json:"actions"`
	Head    model.Revision `json:"head,omitempty"`
}

// Submit proposes one or more actions built on BaseRevision. On the wire
// it is the ACTION message; the batch endpoint takes the same body.
type Submit struct {
	Action       *model.Action  `json:"action,omitempty"`
	Actions      []model.Action `json:"actions,omitempty"`
	BaseRevision model.Revision `json:"baseRevision"`
}

// All returns the submitted actions whether sent singly or as a batch.
func (s Submit) All() []model.Action {
	if s.Action == nil {
		return s.Actions
	}
	return append([]model.Action{*s.Action}, s.Actions...)
}

// Conflict rejects a submission whose base is not the authoritative head.
type Conflict struct {
	model.ConflictRecord
}

// ErrorCode classifies an ERROR message.
type ErrorCode string

const (
	CodeValidation  ErrorCode = "validation"
	CodeAuth        ErrorCode = "auth"
	CodeRateLimited ErrorCode = "rate_limited"
	CodeInternal    ErrorCode = "internal"
	CodeProtocol    ErrorCode = "protocol"
)

// Error reports a failure that is not a conflict.
type Error struct {
	Code         ErrorCode `json:"code"`
	Reason       string    `json:"reason"`
	RetryAfterMs int64     `json:"retryAfterMs,omitempty"`
}

// Ping checks liveness. SentAt is echoed in the Pong.
type Ping struct {
	SentAt int64 `json:"sentAt"`
}

// Pong answers a Ping.
type Pong struct {
	SentAt int64 `json:"sentAt"`
}

func (Join) Kind() Kind       { return KindJoin }
func (Ack) Kind() Kind        { return KindAck }
func (SyncUpdate) Kind() Kind { return KindSyncUpdate }
func (Submit) Kind() Kind     { return KindAction }
func (Conflict) Kind() Kind   { return KindConflict }
func (Error) Kind() Kind      { return KindError }
func (Ping) Kind() Kind       { return KindPing }
func (Pong) Kind() Kind       { return KindPong }

func (Join) message()       {}
func (Ack) message()        {}
func (SyncUpdate) message() {}
func (Submit) message()     {}
func (Conflict) message()   {}
func (Error) message()      {}
func (Ping) message()       {}
func (Pong) message()       {}

// BatchResponse is the success body of the batch endpoint: the new head and
// the actions accepted by this request, in log order.
type BatchResponse struct {
	Head    model.Revision `json:"head"`
	Actions []model.Action `json:"actions"`
}

// GameSummary is one row of the game listing.
type GameSummary struct {
	ID        string         `json:"id"`
	Head      model.Revision `json:"head"`
	Actions   int            `json:"actions"`
	UpdatedAt int64          `json:"updatedAt"`
}

// GamePage is one page of the game listing plus the collection size.
type GamePage struct {
	Items []GameSummary `json:"items"`
	Total int           `json:"total"`
}

// Overwrite is the body of the log overwrite endpoint. The response is a
// BatchResponse holding the whole new log.
type Overwrite struct {
	Actions []model.Action `json:"actions"`
}
