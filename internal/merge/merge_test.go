package merge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type game struct {
	id   string
	date int
}

func byDateDesc(a, b game) bool { return a.date > b.date }

func gameID(g game) string { return g.id }

// pages serves items in slices of the requested size and records offsets.
type pages struct {
	items   []game
	offsets []int
	err     error
}

func (p *pages) FetchPage(_ context.Context, offset, limit int) (Page[game], error) {
	p.offsets = append(p.offsets, offset)
	if p.err != nil {
		return Page[game]{}, p.err
	}
	end := min(offset+limit, len(p.items))
	if offset > end {
		offset = end
	}
	return Page[game]{Items: p.items[offset:end], Total: len(p.items)}, nil
}

func ids(gs []game) []string {
	var out []string
	for _, g := range gs {
		out = append(out, g.id)
	}
	return out
}

func TestMergeSharedIDEmittedOnce(t *testing.T) {
	local := []game{{"g1", 5}, {"g3", 3}}
	remote := &pages{items: []game{{"g2", 4}, {"g3", 3}}}

	m := New(local, remote, byDateDesc, gameID)
	got, err := m.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2", "g3"}, ids(got))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		local  []game
		remote []game
		want   []string
	}{
		{
			name: "both empty",
		},
		{
			name:  "local only",
			local: []game{{"a", 3}, {"b", 2}},
			want:  []string{"a", "b"},
		},
		{
			name:   "remote only",
			remote: []game{{"a", 3}, {"b", 2}},
			want:   []string{"a", "b"},
		},
		{
			name:   "local wins ties",
			local:  []game{{"l", 2}},
			remote: []game{{"r", 2}},
			want:   []string{"l", "r"},
		},
		{
			name:   "interleaved",
			local:  []game{{"l1", 9}, {"l2", 5}, {"l3", 1}},
			remote: []game{{"r1", 8}, {"r2", 4}, {"r3", 2}},
			want:   []string{"l1", "r1", "l2", "r2", "r3", "l3"},
		},
		{
			name:   "duplicate with different sort key keeps first seen",
			local:  []game{{"x", 1}},
			remote: []game{{"x", 7}, {"y", 0}},
			want:   []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.local, &pages{items: tt.remote}, byDateDesc, gameID, WithPageSize(2))
			got, err := m.Drain(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestMergeFetchesLazily(t *testing.T) {
	var remote []game
	for i := range 10 {
		remote = append(remote, game{fmt.Sprintf("r%d", i), 100 - i})
	}
	p := &pages{items: remote}
	m := New([]game{{"l", 1000}}, p, byDateDesc, gameID, WithPageSize(3))

	first, err := m.Take(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"l", "r0", "r1"}, ids(first))
	assert.Equal(t, []int{0}, p.offsets, "one page covers the first three items")

	rest, err := m.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, rest, 8)
	assert.Equal(t, []int{0, 3, 6, 9}, p.offsets)
	assert.Equal(t, 4, m.Fetches())

	_, ok, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, m.Fetches(), "exhausted merger does not fetch again")
}

func TestMergeStopsOnEmptyPage(t *testing.T) {
	calls := 0
	fetch := FetcherFunc[game](func(context.Context, int, int) (Page[game], error) {
		calls++
		return Page[game]{Total: 100}, nil
	})
	m := New([]game{{"a", 1}}, fetch, byDateDesc, gameID)

	got, err := m.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
	assert.Equal(t, 1, calls)
}

func TestMergePropagatesFetchError(t *testing.T) {
	boom := errors.New("offline")
	m := New([]game{{"a", 1}}, &pages{err: boom}, byDateDesc, gameID)

	_, _, err := m.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestMergeWithoutRemote(t *testing.T) {
	m := New[game]([]game{{"a", 2}, {"a", 1}}, nil, byDateDesc, gameID)
	got, err := m.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}
