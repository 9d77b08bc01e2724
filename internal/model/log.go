package model

import (
	"fmt"
	"slices"
)

// Log is the ordered, append-only action list of one game. Order is the
// authoritative order once synchronized. Not safe for concurrent use.
type Log struct {
	actions []Action
	index   map[string]int
}

// NewLog builds a log from actions, rejecting duplicate ids.
func NewLog(actions ...Action) (*Log, error) {
	l := &Log{index: make(map[string]int, len(actions))}
	for _, a := range actions {
		if err := l.Append(a); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds an action at the end.
func (l *Log) Append(a Action) error {
	if l.index == nil {
		l.index = make(map[string]int)
	}
	if _, ok := l.index[a.ID]; ok {
		return fmt.Errorf("append %s: duplicate action id", a.ID)
	}
	l.index[a.ID] = len(l.actions)
	l.actions = append(l.actions, a)
	return nil
}

// Actions returns a copy of the ordered actions.
func (l *Log) Actions() []Action {
	return slices.Clone(l.actions)
}

// Len returns the number of actions.
func (l *Log) Len() int {
	return len(l.actions)
}

// Head returns the revision of the last action.
func (l *Log) Head() Revision {
	if len(l.actions) == 0 {
		return ""
	}
	return Revision(l.actions[len(l.actions)-1].ID)
}

// Contains reports whether id is in the log.
func (l *Log) Contains(id string) bool {
	_, ok := l.index[id]
	return ok
}

// IndexOf returns the position of id, or -1.
func (l *Log) IndexOf(id string) int {
	if i, ok := l.index[id]; ok {
		return i
	}
	return -1
}

// Since returns the actions after rev. The boolean is false when rev is not
// part of the log. The empty revision returns everything.
func (l *Log) Since(rev Revision) ([]Action, bool) {
	if rev == "" {
		return slices.Clone(l.actions), true
	}
	i, ok := l.index[string(rev)]
	if !ok {
		return nil, false
	}
	return slices.Clone(l.actions[i+1:]), true
}

// Rebase moves the actions named in pending to the end of the log, after
// missing. Missing actions already present are skipped. The relative order
// of pending actions is kept.
func (l *Log) Rebase(missing []Action, pending []string) {
	isPending := make(map[string]struct{}, len(pending))
	for _, id := range pending {
		isPending[id] = struct{}{}
	}
	kept := make([]Action, 0, len(l.actions)+len(missing))
	var moved []Action
	for _, a := range l.actions {
		if _, ok := isPending[a.ID]; ok {
			moved = append(moved, a)
			continue
		}
		kept = append(kept, a)
	}
	present := make(map[string]struct{}, len(kept))
	for _, a := range kept {
		present[a.ID] = struct{}{}
	}
	for _, a := range missing {
		if _, ok := present[a.ID]; ok {
			continue
		}
		if _, ok := isPending[a.ID]; ok {
			continue
		}
		present[a.ID] = struct{}{}
		kept = append(kept, a)
	}
	l.reset(append(kept, moved...))
}

// Replace swaps the whole content, used when adopting the authoritative log.
func (l *Log) Replace(actions []Action) error {
	next, err := NewLog(actions...)
	if err != nil {
		return err
	}
	*l = *next
	return nil
}

// Clone returns an independent copy.
func (l *Log) Clone() *Log {
	c := &Log{}
	c.reset(slices.Clone(l.actions))
	return c
}

func (l *Log) reset(actions []Action) {
	l.actions = actions
	l.index = make(map[string]int, len(actions))
	for i, a := range actions {
		l.index[a.ID] = i
	}
}
