package model

import (
	"github.com/google/uuid"
)

// IDGenerator assigns action ids. An id is assigned once, at creation, and
// travels unchanged through every retransmission.
type IDGenerator interface {
	NewID() string
}

// UUIDv7 generates time-sortable UUIDv7 ids. Safe for concurrent use.
type UUIDv7 struct{}

// NewID returns a hyphenated UUIDv7. Panics if the system entropy source fails.
func (UUIDv7) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
