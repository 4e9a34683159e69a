package discovery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/config"
	"github.com/heartbeam/heartbeam/internal/db"
	"github.com/heartbeam/heartbeam/internal/service/block"
	"github.com/heartbeam/heartbeam/internal/service/discovery"
	"github.com/heartbeam/heartbeam/internal/service/match"
)

func setupService(t *testing.T) (*discovery.Service, *app.AppContext) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Matching.MinMatchScore = 30

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, redisCache, cfg, logger, nil)
	return discovery.NewService(appCtx), appCtx
}

type profile struct {
	gender    string
	age       int
	goal      string
	interests []uint64
}

func seedProfile(t *testing.T, gdb *gorm.DB, id uint64, p profile) {
	t.Helper()
	birth := time.Date(time.Now().Year()-p.age, 1, 1, 0, 0, 0, 0, time.UTC)
	user := db.User{
		ID:           id,
		Username:     fmt.Sprintf("user%d", id),
		Email:        fmt.Sprintf("u%d@test.com", id),
		PasswordHash: "x",
		Active:       true,
		Gender:       p.gender,
		BirthDate:    &birth,

		RelationshipGoal:  p.goal,
		MinAgePreference:  18,
		MaxAgePreference:  100,
		ProfileCompletion: 90,
	}
	require.NoError(t, gdb.Create(&user).Error)
	for _, interestID := range p.interests {
		require.NoError(t, gdb.Create(&db.UserInterest{UserID: id, InterestID: interestID}).Error)
	}
}

func TestGetPotentialMatchesFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious, interests: []uint64{1, 2, 3}})
	// same goal, big interest overlap: best candidate
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 27, goal: db.GoalSerious, interests: []uint64{1, 2, 3}})
	// weaker goal alignment, no interests in common: scores lower
	seedProfile(t, appCtx.DB, 3, profile{gender: "female", age: 27, goal: db.GoalUnsure, interests: []uint64{8, 9}})
	// inactive accounts never surface
	seedProfile(t, appCtx.DB, 4, profile{gender: "female", age: 27, goal: db.GoalSerious, interests: []uint64{1, 2}})
	require.NoError(t, appCtx.DB.Model(&db.User{}).Where("id = ?", 4).Update("active", false).Error)

	candidates, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// self and the inactive account are absent, best score first
	assert.Equal(t, uint64(2), candidates[0].User.ID)
	assert.Equal(t, uint64(3), candidates[1].User.ID)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
}

func TestGetPotentialMatchesRespectsGenderPreference(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious})
	require.NoError(t, appCtx.DB.Model(&db.User{}).Where("id = ?", 1).
		Update("looking_for_gender", "female").Error)
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 27, goal: db.GoalSerious})
	seedProfile(t, appCtx.DB, 3, profile{gender: "male", age: 27, goal: db.GoalSerious})

	candidates, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(2), candidates[0].User.ID)
}

func TestGetPotentialMatchesExcludesBlockedEitherDirection(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious})
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 27, goal: db.GoalSerious})
	seedProfile(t, appCtx.DB, 3, profile{gender: "female", age: 27, goal: db.GoalSerious})

	blocks := block.NewService(appCtx)
	require.NoError(t, blocks.Block(ctx, 1, 2, "other", "")) // outgoing block
	require.NoError(t, blocks.Block(ctx, 3, 1, "other", "")) // incoming block

	candidates, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGetPotentialMatchesHidesSwipedProfiles(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious})
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 27, goal: db.GoalSerious})
	seedProfile(t, appCtx.DB, 3, profile{gender: "female", age: 27, goal: db.GoalSerious})

	_, err := match.NewService(appCtx).RecordSwipe(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)

	candidates, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(3), candidates[0].User.ID)
}

func TestGetPotentialMatchesEnforcesMinScore(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	appCtx.Config.Matching.MinMatchScore = 95

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious, interests: []uint64{1}})
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 27, goal: db.GoalCasual, interests: []uint64{2}})

	candidates, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGetPotentialMatchesTruncatesToLimit(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious})
	for id := uint64(2); id <= 6; id++ {
		seedProfile(t, appCtx.DB, id, profile{gender: "female", age: 27, goal: db.GoalSerious})
	}

	candidates, err := svc.GetPotentialMatches(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestGetPotentialMatchesCacheHit(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious})
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 27, goal: db.GoalSerious})

	first, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// second call is served from cache and agrees with the first
	second, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].User.ID, second[0].User.ID)
	assert.Equal(t, first[0].Score, second[0].Score)

	// a hit re-reads the user row, so fresh profile data shows up
	require.NoError(t, appCtx.DB.Model(&db.User{}).Where("id = ?", 2).
		Update("username", "renamed").Error)
	third, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "renamed", third[0].User.Username)

	// invalidation forces the pipeline to re-run
	svc.Invalidate(ctx, 1)
	fourth, err := svc.GetPotentialMatches(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, fourth, 1)
}

func TestScoreBetween(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	seedProfile(t, appCtx.DB, 1, profile{gender: "male", age: 28, goal: db.GoalSerious, interests: []uint64{1, 2}})
	seedProfile(t, appCtx.DB, 2, profile{gender: "female", age: 28, goal: db.GoalSerious, interests: []uint64{1, 2}})

	score, err := svc.ScoreBetween(ctx, 1, 2)
	require.NoError(t, err)
	assert.Greater(t, score, 50)
	assert.LessOrEqual(t, score, 100)
}
