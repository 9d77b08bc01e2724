package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/scorelog/internal/model"
)

// createTestStore opens a fresh database under t.TempDir with a clock that
// advances one second per call.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	tick := time.Unix(1700000000, 0)
	s, err := Open(path, WithNow(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func note(id string) model.Action {
	return model.Action{
		ID:            id,
		Type:          "note.add",
		Payload:       model.Obj(model.P("text", model.String(id))),
		Timestamp:     1,
		UserID:        "u1",
		SchemaVersion: model.SchemaVersion,
	}
}

func actionIDs(actions []model.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}
