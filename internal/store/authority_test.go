package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/model"
)

func TestAppendAdvancesHead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	res, err := s.Append(ctx, "g1", "", []model.Action{note("a1")})
	require.NoError(t, err)
	assert.Nil(t, res.Conflict)
	assert.Equal(t, model.Revision("a1"), res.Head)
	assert.Equal(t, []string{"a1"}, actionIDs(res.Accepted))

	res, err = s.Append(ctx, "g1", "a1", []model.Action{note("a2"), note("a3")})
	require.NoError(t, err)
	assert.Equal(t, model.Revision("a3"), res.Head)

	head, count, err := s.Head(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, model.Revision("a3"), head)
	assert.Equal(t, 3, count)

	all, err := s.Actions(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []model.Action{note("a1"), note("a2"), note("a3")}, all)
}

func TestAppendConflictCarriesMissing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "g1", "", []model.Action{note("a1"), note("r1"), note("r2")})
	require.NoError(t, err)

	res, err := s.Append(ctx, "g1", "a1", []model.Action{note("c1")})
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.False(t, res.Conflict.Divergent)
	assert.Equal(t, model.Revision("r2"), res.Conflict.ServerHeadRevision)
	assert.Equal(t, []string{"r1", "r2"}, actionIDs(res.Conflict.MissingActions))

	all, err := s.Actions(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, all, 3, "nothing written on conflict")
}

func TestAppendDivergentBase(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "g1", "", []model.Action{note("a1")})
	require.NoError(t, err)

	res, err := s.Append(ctx, "g1", "unknown", []model.Action{note("c1")})
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.True(t, res.Conflict.Divergent)
	assert.Equal(t, []string{"a1"}, actionIDs(res.Conflict.MissingActions))
}

func TestAppendRetransmissionIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "g1", "", []model.Action{note("a1"), note("a2")})
	require.NoError(t, err)

	// the same submission again: acknowledged, nothing duplicated
	res, err := s.Append(ctx, "g1", "", []model.Action{note("a1"), note("a2")})
	require.NoError(t, err)
	assert.Nil(t, res.Conflict)
	assert.Empty(t, res.Accepted)
	assert.Equal(t, model.Revision("a2"), res.Head)

	// a partially applied batch continues from the last stored action
	res, err = s.Append(ctx, "g1", "", []model.Action{note("a1"), note("a2"), note("a3")})
	require.NoError(t, err)
	assert.Nil(t, res.Conflict)
	assert.Equal(t, []string{"a3"}, actionIDs(res.Accepted))

	_, count, err := s.Head(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAppendRetransmissionAfterForeignWriteConflictsFromClaimedBase(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "g1", "", []model.Action{note("r0")})
	require.NoError(t, err)
	_, err = s.Append(ctx, "g1", "r0", []model.Action{note("p1")})
	require.NoError(t, err)
	_, err = s.Append(ctx, "g1", "p1", []model.Action{note("f1")})
	require.NoError(t, err)

	// the client never saw p1 acknowledged and resends it with p2
	res, err := s.Append(ctx, "g1", "r0", []model.Action{note("p1"), note("p2")})
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, model.Revision("f1"), res.Conflict.ServerHeadRevision)
	assert.Equal(t, []string{"p1", "f1"}, actionIDs(res.Conflict.MissingActions))
}

func TestAppendRejectsInvalidAction(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Append(context.Background(), "g1", "", []model.Action{{ID: "x"}})
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBatchEquivalence(t *testing.T) {
	ctx := context.Background()
	batch := []model.Action{note("a1"), note("a2"), note("a3"), note("a4")}

	one := createTestStore(t)
	_, err := one.Append(ctx, "g", "", batch)
	require.NoError(t, err)

	seq := createTestStore(t)
	base := model.Revision("")
	for _, a := range batch {
		res, err := seq.Append(ctx, "g", base, []model.Action{a})
		require.NoError(t, err)
		require.Nil(t, res.Conflict)
		base = res.Head
	}

	got1, err := one.Actions(ctx, "g")
	require.NoError(t, err)
	got2, err := seq.Actions(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, got1, got2)
}

func TestSinceAndOverwrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "g1", "", []model.Action{note("a1"), note("a2")})
	require.NoError(t, err)

	after, found, err := s.Since(ctx, "g1", "a1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a2"}, actionIDs(after))

	_, found, err = s.Since(ctx, "g1", "zz")
	require.NoError(t, err)
	assert.False(t, found)

	head, err := s.Overwrite(ctx, "g1", []model.Action{note("b1")})
	require.NoError(t, err)
	assert.Equal(t, model.Revision("b1"), head)

	all, err := s.Actions(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, actionIDs(all))
}

func TestDeleteGameAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, g := range []string{"g1", "g2", "g3"} {
		_, err := s.Append(ctx, g, "", []model.Action{note(g + "-a")})
		require.NoError(t, err)
	}

	page, total, err := s.ListGames(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "g3", page[0].GameID, "newest first")
	assert.Equal(t, "g2", page[1].GameID)

	page, _, err = s.ListGames(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "g1", page[0].GameID)

	require.NoError(t, s.DeleteGame(ctx, "g2"))
	assert.ErrorIs(t, s.DeleteGame(ctx, "g2"), ErrNotFound)

	_, total, err = s.ListGames(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	head, count, err := s.Head(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, model.Revision(""), head)
	assert.Zero(t, count)
}
