package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs yields prefix-1, prefix-2, ... as action ids. It satisfies
// model.IDGenerator so tests can predict every id a component assigns.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "a".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "a"
	}
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next id.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
