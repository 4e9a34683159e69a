// Package discovery implements the candidate pool: hard filters, scoring,
// ranking and the cached top-N feed.
package discovery

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/db"
	"github.com/heartbeam/heartbeam/internal/repository"
	"github.com/heartbeam/heartbeam/internal/service/block"
	"github.com/heartbeam/heartbeam/internal/service/scorer"
)

type Service struct {
	appCtx    *app.AppContext
	userRepo  *repository.UserRepository
	prefRepo  *repository.PreferenceRepository
	swipeRepo *repository.SwipeRepository
	blocks    *block.Service
	scorer    *scorer.Scorer
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		userRepo:  repository.NewUserRepository(appCtx.DB),
		prefRepo:  repository.NewPreferenceRepository(appCtx.DB),
		swipeRepo: repository.NewSwipeRepository(appCtx.DB),
		blocks:    block.NewService(appCtx),
		scorer:    scorer.New(appCtx.DB),
	}
}

// Candidate is one scored entry of the discovery feed.
type Candidate struct {
	User  db.User
	Score int
}

// GetPotentialMatches returns up to limit candidates for the user, best
// score first.
//
// Pipeline:
//  1. Hard filters database-side: active, not self, gender preference,
//     birth-year range from the age preferences, minimum completion,
//     verified-only, block exclusion (either direction), and, when the
//     preference asks, everyone already swiped on.
//  2. An oversized batch (oversample x limit) absorbs score rejection.
//  3. Each survivor is scored; below-threshold and failing candidates are
//     skipped, never aborting the batch.
//  4. Sort by score descending, truncate, cache the id list briefly.
//
// The cache is purely a latency optimization: a miss re-runs the identical
// pipeline.
func (s *Service) GetPotentialMatches(ctx context.Context, userID uint64, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 20
	}

	if cached, ok := s.readCache(ctx, userID, limit); ok {
		return cached, nil
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	pref, err := s.prefRepo.GetOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}

	excludeIDs, err := s.blocks.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref.HideSeenProfiles {
		swiped, err := s.swipeRepo.SwipedTargetIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		excludeIDs = append(excludeIDs, swiped...)
	}

	filter := repository.CandidateFilter{
		ExcludeUserID: userID,
		Gender:        user.LookingForGender,
		MinCompletion: pref.MinProfileCompletion,
		VerifiedOnly:  pref.ShowOnlyVerified,
		ExcludeIDs:    excludeIDs,
		Limit:         limit * s.appCtx.Config.Matching.DiscoveryOversample,
	}
	if _, known := user.Age(time.Now()); known {
		currentYear := time.Now().Year()
		filter.MinBirthYear = currentYear - user.MaxAgePreference - 1
		filter.MaxBirthYear = currentYear - user.MinAgePreference
	}

	pool, err := s.userRepo.ListCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	minScore := s.appCtx.Config.Matching.MinMatchScore
	candidates := make([]Candidate, 0, len(pool))
	for i := range pool {
		score, err := s.scorer.Score(ctx, user, &pool[i])
		if err != nil {
			// One bad candidate must not sink the feed.
			s.appCtx.Logger.Error("failed to score candidate", "user", userID, "candidate", pool[i].ID, "err", err)
			continue
		}
		if score >= minScore {
			candidates = append(candidates, Candidate{User: pool[i], Score: score})
		}
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.writeCache(ctx, userID, limit, candidates)
	return candidates, nil
}

// ScoreBetween recomputes the live compatibility score for a profile view.
func (s *Service) ScoreBetween(ctx context.Context, userID, targetID uint64) (int, error) {
	return s.scorer.ScoreByID(ctx, userID, targetID)
}

// Invalidate drops the user's cached discovery lists. Called after any
// action that changes candidacy (swipe, mutual match, block).
func (s *Service) Invalidate(ctx context.Context, userID uint64) {
	if err := s.appCtx.RedisCache.Del(ctx, cache.KeysDiscoveryAll(userID)...); err != nil {
		s.appCtx.Logger.Warn("failed to invalidate discovery cache", "user", userID, "err", err)
	}
}

// cachedEntry keeps the ranked ids plus scores; user rows are re-fetched
// on a hit so the feed never serves stale profile data.
type cachedEntry struct {
	UserID uint64 `json:"user_id"`
	Score  int    `json:"score"`
}

func (s *Service) readCache(ctx context.Context, userID uint64, limit int) ([]Candidate, bool) {
	raw, ok, err := s.appCtx.RedisCache.Get(ctx, cache.KeyDiscovery(userID, limit))
	if err != nil || !ok {
		return nil, false
	}

	var entries []cachedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}

	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	users, err := s.userRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, false
	}
	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		if u, exists := byID[e.UserID]; exists {
			candidates = append(candidates, Candidate{User: u, Score: e.Score})
		}
	}
	return candidates, true
}

func (s *Service) writeCache(ctx context.Context, userID uint64, limit int, candidates []Candidate) {
	entries := make([]cachedEntry, len(candidates))
	for i, c := range candidates {
		entries[i] = cachedEntry{UserID: c.User.ID, Score: c.Score}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.appCtx.RedisCache.Set(ctx, cache.KeyDiscovery(userID, limit), string(raw), cache.DiscoveryTTL); err != nil {
		s.appCtx.Logger.Warn("failed to cache discovery results", "user", userID, "err", err)
	}
}

// sortCandidates orders by score descending, id ascending for stability.
func sortCandidates(list []Candidate) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].User.ID < list[j].User.ID
	})
}
