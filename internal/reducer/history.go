package reducer

import (
	"github.com/roach88/scorelog/internal/model"
)

// UndoTarget returns the id of the action an "undo" control should
// neutralize: the last effective generative action. Empty when none.
func (r *Reducer) UndoTarget(actions []model.Action) string {
	dead := r.Tombstones(actions)
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		if _, ok := dead[a.ID]; ok || a.IsUndo() {
			continue
		}
		return a.ID
	}
	return ""
}

// RedoTarget returns the id of the UNDO a "redo" control should neutralize.
// History is linear: once an effective generative action follows the last
// effective UNDO, nothing can be redone. Redos themselves (UNDOs of UNDOs)
// are skipped while searching.
func (r *Reducer) RedoTarget(actions []model.Action) string {
	dead := r.Tombstones(actions)
	kinds := make(map[string]bool, len(actions))
	for _, a := range actions {
		kinds[a.ID] = a.IsUndo()
	}
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		if _, ok := dead[a.ID]; ok {
			continue
		}
		if !a.IsUndo() {
			return ""
		}
		isUndo, known := kinds[a.RefID()]
		if !known || isUndo {
			continue
		}
		return a.ID
	}
	return ""
}
