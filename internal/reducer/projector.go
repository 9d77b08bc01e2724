package reducer

import (
	"sync"

	"github.com/roach88/scorelog/internal/model"
)

// Projector memoizes the state of the most recently reduced log. Any change
// to the log triggers a full two-pass recompute. Safe for concurrent use.
type Projector struct {
	reducer *Reducer

	mu     sync.Mutex
	length int
	head   model.Revision
	digest string
	state  State
	valid  bool
}

// NewProjector wraps a reducer. A nil reducer uses the built-in handlers.
func NewProjector(r *Reducer) *Projector {
	if r == nil {
		r = defaultReducer
	}
	return &Projector{reducer: r}
}

// State returns the derived state of actions, reusing the cached result when
// the log is unchanged.
func (p *Projector) State(actions []model.Action) State {
	head := model.Revision("")
	if n := len(actions); n > 0 {
		head = model.Revision(actions[n-1].ID)
	}
	digest := model.LogDigest(actions)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.length == len(actions) && p.head == head && p.digest == digest {
		return p.state
	}
	p.state = p.reducer.Reduce(actions)
	p.length, p.head, p.digest, p.valid = len(actions), head, digest, true
	return p.state
}

// Invalidate drops the cached state.
func (p *Projector) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}
