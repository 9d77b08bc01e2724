package session

import (
	"slices"

	"github.com/roach88/scorelog/internal/model"
)

// pendingSet holds locally originated actions not yet acknowledged by the
// authoritative log, in submission order.
type pendingSet struct {
	order   []string
	actions map[string]model.Action
}

func newPendingSet() *pendingSet {
	return &pendingSet{actions: make(map[string]model.Action)}
}

func (p *pendingSet) Add(a model.Action) {
	if _, ok := p.actions[a.ID]; ok {
		return
	}
	p.actions[a.ID] = a
	p.order = append(p.order, a.ID)
}

func (p *pendingSet) Has(id string) bool {
	_, ok := p.actions[id]
	return ok
}

// Remove drops id and reports whether it was pending.
func (p *pendingSet) Remove(id string) bool {
	if _, ok := p.actions[id]; !ok {
		return false
	}
	delete(p.actions, id)
	if i := slices.Index(p.order, id); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
	return true
}

func (p *pendingSet) Len() int {
	return len(p.order)
}

func (p *pendingSet) IDs() []string {
	return slices.Clone(p.order)
}

func (p *pendingSet) Actions() []model.Action {
	out := make([]model.Action, len(p.order))
	for i, id := range p.order {
		out[i] = p.actions[id]
	}
	return out
}

func (p *pendingSet) Clear() {
	p.order = nil
	p.actions = make(map[string]model.Action)
}
