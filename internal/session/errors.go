package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/scorelog/internal/model"
)

// ErrorKind classifies synchronization failures by how they are handled.
type ErrorKind int

const (
	// KindNetwork is a transient transport or server failure; retried with backoff.
	KindNetwork ErrorKind = iota + 1
	// KindConflict is a stale base revision; resolved by fast-forward or Resolve.
	KindConflict
	// KindAuthRequired pauses submission until authorization is restored.
	KindAuthRequired
	// KindRateLimited is retried after the server's hint.
	KindRateLimited
	// KindValidation is a rejected action; forces a full reconnect.
	KindValidation
	// KindProtocol is an undecodable or unexpected message.
	KindProtocol
)

// String returns a human-readable name.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindAuthRequired:
		return "auth_required"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// SyncError is returned by transports and reported to listeners.
type SyncError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Conflict   *model.ConflictRecord
	Err        error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func kindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// IsNetwork reports whether err is a transient network failure. Errors that
// are not SyncErrors count as network failures.
func IsNetwork(err error) bool {
	k := kindOf(err)
	return err != nil && (k == KindNetwork || k == 0)
}

// IsConflict reports whether err is a conflict.
func IsConflict(err error) bool { return kindOf(err) == KindConflict }

// IsAuthRequired reports whether err requires re-authorization.
func IsAuthRequired(err error) bool { return kindOf(err) == KindAuthRequired }

// IsRateLimited reports whether err is a rate limit.
func IsRateLimited(err error) bool { return kindOf(err) == KindRateLimited }

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsProtocol reports whether err is a protocol violation.
func IsProtocol(err error) bool { return kindOf(err) == KindProtocol }

// RetryAfter returns the server's retry hint carried by err, or 0.
func RetryAfter(err error) time.Duration {
	var se *SyncError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// ConflictOf returns the conflict record carried by err, if any.
func ConflictOf(err error) (model.ConflictRecord, bool) {
	var se *SyncError
	if errors.As(err, &se) && se.Conflict != nil {
		return *se.Conflict, true
	}
	return model.ConflictRecord{}, false
}

var (
	// ErrClosed is returned by calls made after Run has returned.
	ErrClosed = errors.New("session: closed")

	// ErrNoConflict is returned by Resolve when nothing awaits resolution.
	ErrNoConflict = errors.New("session: no conflict to resolve")

	errHeartbeatTimeout = errors.New("heartbeat timeout")
	errNoTarget         = errors.New("nothing to undo")
)
