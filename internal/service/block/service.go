// Package block implements the block registry: symmetric cached existence
// checks plus the create path whose cascade deletes both directional match
// rows between the two users.
package block

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
	"github.com/heartbeam/heartbeam/internal/repository"
)

type Service struct {
	appCtx    *app.AppContext
	blockRepo *repository.BlockRepository
	matchRepo *repository.MatchRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		blockRepo: repository.NewBlockRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// IsBlocked reports whether a block exists between the two users in either
// direction. Cache-first on the unordered-pair key; a miss falls through to
// the DB and repopulates with a short TTL. Cache errors degrade to the DB
// path, never to a wrong answer.
func (s *Service) IsBlocked(ctx context.Context, a, b uint64) (bool, error) {
	key := cache.KeyBlockPair(a, b)
	if val, ok, err := s.appCtx.RedisCache.Get(ctx, key); err == nil && ok {
		return val == "1", nil
	}

	blocked, err := s.blockRepo.ExistsBetween(ctx, a, b)
	if err != nil {
		return false, err
	}

	cached := "0"
	if blocked {
		cached = "1"
	}
	if err := s.appCtx.RedisCache.Set(ctx, key, cached, cache.BlockCheckTTL); err != nil {
		s.appCtx.Logger.Warn("failed to cache block check", "err", err)
	}

	return blocked, nil
}

// Block records blocker -> blocked and deletes every match row between the
// pair, both directions, regardless of mutual status. The insert and the
// cascade commit together.
func (s *Service) Block(ctx context.Context, blockerID, blockedID uint64, reason, note string) error {
	if blockerID == blockedID {
		return domainErr.ErrSelfTarget
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.blockRepo.WithTx(tx).Create(ctx, blockerID, blockedID, reason, note); err != nil {
			return err
		}
		return s.matchRepo.WithTx(tx).DeletePair(ctx, blockerID, blockedID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, blockerID, blockedID)
	s.appCtx.Logger.Info("user blocked", "blocker", blockerID, "blocked", blockedID, "reason", reason)
	return nil
}

// Unblock removes the directional block row and the cached pair check.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID uint64) error {
	if err := s.blockRepo.Delete(ctx, blockerID, blockedID); err != nil {
		return err
	}
	s.invalidate(ctx, blockerID, blockedID)
	return nil
}

// BlockedIDs returns the union exclusion set for discovery.
func (s *Service) BlockedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	return s.blockRepo.BlockedIDs(ctx, userID)
}

// invalidate drops the pair check and both users' discovery lists; their
// candidacy toward each other just changed.
func (s *Service) invalidate(ctx context.Context, a, b uint64) {
	keys := []string{cache.KeyBlockPair(a, b)}
	keys = append(keys, cache.KeysDiscoveryAll(a)...)
	keys = append(keys, cache.KeysDiscoveryAll(b)...)
	if err := s.appCtx.RedisCache.Del(ctx, keys...); err != nil {
		s.appCtx.Logger.Warn("failed to invalidate block caches", "err", err,
			"pair", strconv.FormatUint(a, 10)+":"+strconv.FormatUint(b, 10))
	}
}
