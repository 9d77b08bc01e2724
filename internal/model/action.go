package model

import (
	"fmt"
)

// ActionType names what an action does. Any non-empty value other than
// TypeUndo is generative and is interpreted by the reducer's handlers.
type ActionType string

// TypeUndo marks an action that neutralizes the action named by its refId.
const TypeUndo ActionType = "undo"

// RefKey is the payload key an UNDO uses to name its target.
const RefKey = "refId"

// SchemaVersion is stamped on actions created by this build.
const SchemaVersion = 1

// Action is one immutable entry in a game's log.
type Action struct {
	ID            string     `json:"id"`
	Type          ActionType `json:"type"`
	Payload       Object     `json:"payload,omitempty"`
	Timestamp     int64      `json:"timestamp"`
	UserID        string     `json:"userId,omitempty"`
	SchemaVersion int        `json:"schemaVersion,omitempty"`
}

// IsUndo reports whether the action is an UNDO.
func (a Action) IsUndo() bool {
	return a.Type == TypeUndo
}

// RefID returns the target of an UNDO, or "" for generative actions.
func (a Action) RefID() string {
	if !a.IsUndo() {
		return ""
	}
	return a.Payload.Str(RefKey)
}

// NewUndo builds an UNDO that neutralizes refID.
func NewUndo(id, refID, userID string, ts int64) Action {
	return Action{
		ID:            id,
		Type:          TypeUndo,
		Payload:       Obj(P(RefKey, String(refID))),
		Timestamp:     ts,
		UserID:        userID,
		SchemaVersion: SchemaVersion,
	}
}

// Revision identifies a log position by the id of its last action.
// The empty revision is the empty log.
type Revision string

// ConflictRecord describes a rejected submission: the authoritative head and
// every action after the submitter's base. Divergent is set when the base is
// not part of the authoritative log at all, so no fast-forward is possible.
type ConflictRecord struct {
	ServerHeadRevision Revision `json:"serverHeadRevision"`
	MissingActions     []Action `json:"missingActions,omitempty"`
	Divergent          bool     `json:"divergent,omitempty"`
}

// ValidationError reports a structurally invalid action.
type ValidationError struct {
	ActionID string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.ActionID == "" {
		return fmt.Sprintf("invalid action: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid action %s: %s: %s", e.ActionID, e.Field, e.Message)
}

// Validate checks the shape of a single action.
func Validate(a Action) error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if a.Type == "" {
		return &ValidationError{ActionID: a.ID, Field: "type", Message: "must not be empty"}
	}
	if a.IsUndo() {
		ref := a.RefID()
		if ref == "" {
			return &ValidationError{ActionID: a.ID, Field: "payload.refId", Message: "must name the undone action"}
		}
		if ref == a.ID {
			return &ValidationError{ActionID: a.ID, Field: "payload.refId", Message: "must not reference itself"}
		}
	}
	return nil
}

// ValidateLog checks every action plus the log-level rules: ids are unique
// and an UNDO only references an action that appears earlier.
func ValidateLog(actions []Action) error {
	seen := make(map[string]struct{}, len(actions))
	for i, a := range actions {
		if err := Validate(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("action %d: %w", i, &ValidationError{ActionID: a.ID, Field: "id", Message: "duplicate id"})
		}
		if a.IsUndo() {
			if _, ok := seen[a.RefID()]; !ok {
				return fmt.Errorf("action %d: %w", i, &ValidationError{ActionID: a.ID, Field: "payload.refId", Message: "references an action that does not precede it"})
			}
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
