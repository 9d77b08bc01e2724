package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/scorelog/internal/model"
)

var _ model.IDGenerator = (*SequentialIDs)(nil)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("g")
	assert.Equal(t, "g-1", g.NewID())
	assert.Equal(t, "g-2", g.NewID())

	assert.Equal(t, "a-1", NewSequentialIDs("").NewID())
}

func TestSequentialIDsConcurrent(t *testing.T) {
	g := NewSequentialIDs("c")
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.NewID()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}
