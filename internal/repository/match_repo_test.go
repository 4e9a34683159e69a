package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartbeam/heartbeam/internal/db"
	"github.com/heartbeam/heartbeam/internal/repository"
)

func TestPromotePairFlipsBothDirections(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	forward, err := repo.GetOrCreatePending(ctx, 1, 2, 80)
	require.NoError(t, err)
	assert.Equal(t, db.MatchStatusPending, forward.Status)
	assert.False(t, forward.IsMutual)

	matchedAt := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.PromotePair(ctx, forward, matchedAt))

	// caller's copy reflects the promotion
	assert.True(t, forward.IsMutual)
	assert.Equal(t, db.MatchStatusMatched, forward.Status)

	var rows []db.Match
	require.NoError(t, dbase.Order("user_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.IsMutual)
		assert.Equal(t, db.MatchStatusMatched, row.Status)
		assert.Equal(t, 80, row.MatchScore)
		require.NotNil(t, row.MatchedAt)
		assert.WithinDuration(t, matchedAt, *row.MatchedAt, time.Second)
	}
	// both sides share one matched_at
	assert.True(t, rows[0].MatchedAt.Equal(*rows[1].MatchedAt))
}

func TestPromotePairWithExistingReverseRow(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	// both directions already pending with their own scores
	_, err := repo.GetOrCreatePending(ctx, 2, 1, 65)
	require.NoError(t, err)
	forward, err := repo.GetOrCreatePending(ctx, 1, 2, 80)
	require.NoError(t, err)

	require.NoError(t, repo.PromotePair(ctx, forward, time.Now().UTC()))

	var reverse db.Match
	require.NoError(t, dbase.First(&reverse, "user_id = ? AND matched_user_id = ?", 2, 1).Error)
	assert.True(t, reverse.IsMutual)
	assert.Equal(t, db.MatchStatusMatched, reverse.Status)
	// pre-existing reverse row keeps its own frozen score
	assert.Equal(t, 65, reverse.MatchScore)
}

func TestGetOrCreatePendingNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	forward, err := repo.GetOrCreatePending(ctx, 1, 2, 80)
	require.NoError(t, err)
	require.NoError(t, repo.PromotePair(ctx, forward, time.Now().UTC()))

	// a repeat like re-runs get-or-create; the matched row must survive
	again, err := repo.GetOrCreatePending(ctx, 1, 2, 10)
	require.NoError(t, err)
	assert.True(t, again.IsMutual)
	assert.Equal(t, db.MatchStatusMatched, again.Status)
	assert.Equal(t, 80, again.MatchScore)
}

func TestMarkPassedOnlyTouchesOwnPendingRow(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	forward, err := repo.GetOrCreatePending(ctx, 1, 2, 50)
	require.NoError(t, err)
	require.NoError(t, repo.MarkPassed(ctx, 1, 2))

	var row db.Match
	require.NoError(t, dbase.First(&row, "user_id = ? AND matched_user_id = ?", 1, 2).Error)
	assert.Equal(t, db.MatchStatusPassed, row.Status)

	// a mutual row is immune to MarkPassed
	forward, err = repo.GetOrCreatePending(ctx, 3, 4, 70)
	require.NoError(t, err)
	require.NoError(t, repo.PromotePair(ctx, forward, time.Now().UTC()))
	require.NoError(t, repo.MarkPassed(ctx, 3, 4))

	row = db.Match{}
	require.NoError(t, dbase.First(&row, "user_id = ? AND matched_user_id = ?", 3, 4).Error)
	assert.Equal(t, db.MatchStatusMatched, row.Status)
}

func TestDeletePairRemovesBothDirections(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	forward, err := repo.GetOrCreatePending(ctx, 1, 2, 70)
	require.NoError(t, err)
	require.NoError(t, repo.PromotePair(ctx, forward, time.Now().UTC()))
	_, err = repo.GetOrCreatePending(ctx, 1, 3, 40)
	require.NoError(t, err)

	require.NoError(t, repo.DeletePair(ctx, 1, 2))

	var count int64
	require.NoError(t, dbase.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count) // only the unrelated 1 -> 3 row remains
}

func TestListLikersExcludesPassedActors(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	swipes := repository.NewSwipeRepository(dbase)
	repo := repository.NewMatchRepository(dbase)

	// actors 1, 2, 3 like recipient 99
	for _, actor := range []uint64{1, 2, 3} {
		_, err := swipes.Upsert(ctx, actor, 99, db.ActionLike, 50)
		require.NoError(t, err)
	}
	// recipient passed actor 2
	_, err := swipes.Upsert(ctx, 99, 2, db.ActionPass, 50)
	require.NoError(t, err)

	likers, next, err := repo.ListLikers(ctx, 99, nil, 10)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, likers, 2)

	actors := []uint64{likers[0].UserID, likers[1].UserID}
	assert.ElementsMatch(t, []uint64{1, 3}, actors)

	count, err := repo.CountLikers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListLikersPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	swipes := repository.NewSwipeRepository(dbase)
	repo := repository.NewMatchRepository(dbase)

	for actor := uint64(1); actor <= 5; actor++ {
		_, err := swipes.Upsert(ctx, actor, 99, db.ActionLike, 50)
		require.NoError(t, err)
	}

	seen := map[uint64]bool{}
	page1, next, err := repo.ListLikers(ctx, 99, nil, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotNil(t, next)
	for _, l := range page1 {
		seen[l.UserID] = true
	}

	page2, next2, err := repo.ListLikers(ctx, 99, next, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Nil(t, next2)
	for _, l := range page2 {
		require.False(t, seen[l.UserID], "liker %d appeared on both pages", l.UserID)
		seen[l.UserID] = true
	}
	assert.Len(t, seen, 5)
}
