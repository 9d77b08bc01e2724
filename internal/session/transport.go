package session

import (
	"context"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/wire"
)

// Conn is an open persistent channel to the authoritative log.
type Conn interface {
	Send(ctx context.Context, m wire.Message) error
	// Receive blocks until a message arrives or the channel fails.
	Receive(ctx context.Context) (wire.Message, error)
	Close() error
}

// Dialer opens persistent channels.
type Dialer interface {
	Dial(ctx context.Context, gameID string) (Conn, error)
}

// Batcher is the request/response fallback transport. SubmitBatch returns a
// *SyncError for every classified failure; a conflict carries its record.
type Batcher interface {
	SubmitBatch(ctx context.Context, gameID string, base model.Revision, actions []model.Action) (wire.BatchResponse, error)
	// Overwrite replaces the authoritative log, used to resolve a divergent
	// history in favor of the local log.
	Overwrite(ctx context.Context, gameID string, actions []model.Action) (model.Revision, error)
}

// AuthChecker asks whether the client is authorized again. A nil error means
// submission may resume.
type AuthChecker interface {
	CheckAuth(ctx context.Context) error
}

// Cache persists the local log between runs.
type Cache interface {
	Save(ctx context.Context, id string, snap store.Snapshot, dirty bool) error
	Load(ctx context.Context, id string) (store.Snapshot, error)
	MarkClean(ctx context.Context, id string) error
}
