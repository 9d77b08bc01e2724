package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/model"
)

func TestCacheSaveLoad(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap := Snapshot{
		Actions:  []model.Action{note("a1"), note("a2")},
		Revision: "a1",
		Pending:  []string{"a2"},
	}
	require.NoError(t, s.Save(ctx, "g1", snap, true))

	got, err := s.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GameID)
	assert.Equal(t, snap.Actions, got.Actions)
	assert.Equal(t, model.Revision("a1"), got.Revision)
	assert.Equal(t, []string{"a2"}, got.Pending)
}

func TestCacheLoadMissing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheDirtyLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "g2", Snapshot{}, true))
	require.NoError(t, s.Save(ctx, "g1", Snapshot{}, true))
	require.NoError(t, s.Save(ctx, "g3", Snapshot{}, false))

	dirty, err := s.ListDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, dirty)

	require.NoError(t, s.MarkClean(ctx, "g1"))
	dirty, err = s.ListDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, dirty)

	// a later local change makes it dirty again
	require.NoError(t, s.Save(ctx, "g1", Snapshot{Actions: []model.Action{note("x")}}, true))
	dirty, err = s.ListDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, dirty)

	assert.ErrorIs(t, s.MarkClean(ctx, "missing"), ErrNotFound)
}

func TestCacheListCachedNewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "old", Snapshot{Actions: []model.Action{note("a")}, Revision: "a"}, false))
	require.NoError(t, s.Save(ctx, "new", Snapshot{}, true))

	games, err := s.ListCached(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "new", games[0].GameID)
	assert.True(t, games[0].Dirty)
	assert.Equal(t, "old", games[1].GameID)
	assert.Equal(t, 1, games[1].Actions)
	assert.Equal(t, model.Revision("a"), games[1].Revision)
	assert.Greater(t, games[0].UpdatedAt, games[1].UpdatedAt)

	require.NoError(t, s.DeleteSnapshot(ctx, "old"))
	games, err = s.ListCached(ctx)
	require.NoError(t, err)
	assert.Len(t, games, 1)
}
