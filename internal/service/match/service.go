// Package match owns the swipe -> match state machine: recording swipes,
// detecting reciprocal likes, and keeping both directional rows of a
// mutual pair consistent.
package match

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
	"github.com/heartbeam/heartbeam/internal/repository"
	"github.com/heartbeam/heartbeam/internal/service/scorer"
)

type Service struct {
	appCtx    *app.AppContext
	userRepo  *repository.UserRepository
	swipeRepo *repository.SwipeRepository
	matchRepo *repository.MatchRepository
	blockRepo *repository.BlockRepository
	scorer    *scorer.Scorer
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		userRepo:  repository.NewUserRepository(appCtx.DB),
		swipeRepo: repository.NewSwipeRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
		blockRepo: repository.NewBlockRepository(appCtx.DB),
		scorer:    scorer.New(appCtx.DB),
	}
}

// SwipeResult is what RecordSwipe hands back: the stored swipe and, when
// the like completed a pair, the actor's mutual match row.
type SwipeResult struct {
	Swipe       *db.SwipeAction
	Match       *db.Match // pending or mutual row for a like, nil for a pass
	MutualMatch bool
}

// RecordSwipe registers actor's like/pass on target.
//
// Behavior:
//   - The score is computed fresh at swipe time and frozen on the row.
//   - The swipe upserts: one row per ordered pair, latest action wins.
//   - A like get-or-creates the pending directional match (never
//     downgrading an existing one), then checks the reciprocal like; on
//     reciprocity both directional rows are promoted to mutual with one
//     shared matched_at.
//   - A pass marks only the actor's own pending match row passed.
//
// The swipe write, match upsert and promotion happen in one transaction.
// UPDATE locks on both ordered swipe rows are taken before the reciprocity
// check, so two concurrent reciprocal likes serialize and both converge on
// the fully-mutual state.
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID uint64, action string) (*SwipeResult, error) {
	if actorID == targetID {
		return nil, domainErr.ErrSelfTarget
	}
	if action != db.ActionLike && action != db.ActionPass {
		return nil, domainErr.Validation("action must be %q or %q", db.ActionLike, db.ActionPass)
	}

	actor, err := s.userRepo.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !actor.Active || !target.Active {
		return nil, domainErr.ErrInactiveUser
	}
	if blocked, err := s.blockRepo.ExistsBetween(ctx, actorID, targetID); err != nil {
		return nil, err
	} else if blocked {
		return nil, domainErr.ErrBlocked
	}

	score, err := s.scorer.Score(ctx, actor, target)
	if err != nil {
		return nil, err
	}

	result := &SwipeResult{}
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swipes := s.swipeRepo.WithTx(tx)
		matches := s.matchRepo.WithTx(tx)

		if err := swipes.LockPair(ctx, actorID, targetID); err != nil {
			return err
		}

		swipe, err := swipes.Upsert(ctx, actorID, targetID, action, score)
		if err != nil {
			return err
		}
		result.Swipe = swipe

		if action == db.ActionPass {
			return matches.MarkPassed(ctx, actorID, targetID)
		}

		row, err := matches.GetOrCreatePending(ctx, actorID, targetID, score)
		if err != nil {
			return err
		}

		reciprocal, err := swipes.HasLiked(ctx, targetID, actorID)
		if err != nil {
			return err
		}
		if reciprocal && !row.IsMutual {
			if err := matches.PromotePair(ctx, row, time.Now().UTC()); err != nil {
				return err
			}
		}

		result.Match = row
		result.MutualMatch = row.IsMutual
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSwipe(ctx, actorID, targetID, action, result.MutualMatch)
	return result, nil
}

// afterSwipe handles the non-transactional tail: cache invalidation and
// notifications. Failures here are logged, never surfaced.
func (s *Service) afterSwipe(ctx context.Context, actorID, targetID uint64, action string, mutual bool) {
	keys := cache.KeysDiscoveryAll(actorID)
	if mutual {
		keys = append(keys, cache.KeysDiscoveryAll(targetID)...)
	}
	if err := s.appCtx.RedisCache.Del(ctx, keys...); err != nil {
		s.appCtx.Logger.Warn("failed to invalidate discovery cache after swipe", "err", err)
	}

	if action != db.ActionLike {
		return
	}
	if mutual {
		payload := map[string]string{"type": "mutual_match"}
		s.appCtx.Notifier.Notify(ctx, actorID, "It's a match!", "You matched with someone you liked.", payload)
		s.appCtx.Notifier.Notify(ctx, targetID, "It's a match!", "You matched with someone you liked.", payload)
	} else {
		s.appCtx.Notifier.Notify(ctx, targetID, "Someone liked you", "Open the app to find out who.", map[string]string{"type": "liked_you"})
	}
}

// ListMatches returns the user's match rows, optionally mutual-only,
// newest first.
func (s *Service) ListMatches(ctx context.Context, userID uint64, onlyMutual bool, limit int) ([]db.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.matchRepo.ListByUser(ctx, userID, onlyMutual, limit)
}

// CountMatches returns (total, mutual) counts.
func (s *Service) CountMatches(ctx context.Context, userID uint64) (total, mutual int64, err error) {
	return s.matchRepo.Counts(ctx, userID)
}

// ListLikers pages through the likes the user has received and not passed
// on.
func (s *Service) ListLikers(ctx context.Context, userID uint64, paginationToken *string, limit int) ([]db.SwipeAction, *string, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.matchRepo.ListLikers(ctx, userID, paginationToken, limit)
}

// CountLikers counts the likes the user has received and not passed on.
func (s *Service) CountLikers(ctx context.Context, userID uint64) (int64, error) {
	return s.matchRepo.CountLikers(ctx, userID)
}
