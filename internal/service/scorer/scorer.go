// Package scorer assembles scoring inputs from storage and runs the
// scoring engine. Discovery, swipe recording and profile views all score
// through here so the three always agree.
package scorer

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/db"
	"github.com/heartbeam/heartbeam/internal/repository"
	"github.com/heartbeam/heartbeam/internal/scoring"
)

type Scorer struct {
	userRepo *repository.UserRepository
	prefRepo *repository.PreferenceRepository
}

func New(database *gorm.DB) *Scorer {
	return &Scorer{
		userRepo: repository.NewUserRepository(database),
		prefRepo: repository.NewPreferenceRepository(database),
	}
}

// Score computes the overall 0-100 compatibility of target as seen from
// user, fetching preferences (lazily initialized) and interest sets.
func (s *Scorer) Score(ctx context.Context, user, target *db.User) (int, error) {
	pref, err := s.prefRepo.GetOrInit(ctx, user.ID)
	if err != nil {
		return 0, err
	}

	userInterests, err := s.userRepo.InterestIDs(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	targetInterests, err := s.userRepo.InterestIDs(ctx, target.ID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	userAge, userAgeKnown := user.Age(now)
	targetAge, targetAgeKnown := target.Age(now)

	return scoring.OverallScore(scoring.Input{
		UserAge:        userAge,
		UserAgeKnown:   userAgeKnown,
		TargetAge:      targetAge,
		TargetAgeKnown: targetAgeKnown,

		MinAgePreference: user.MinAgePreference,
		MaxAgePreference: user.MaxAgePreference,

		UserInterests:   userInterests,
		TargetInterests: targetInterests,

		UserGoal:   user.RelationshipGoal,
		TargetGoal: target.RelationshipGoal,

		AgeImportance:      pref.AgeImportance,
		InterestImportance: pref.InterestsImportance,
		GoalImportance:     pref.RelationshipGoalImportance,
	}), nil
}

// ScoreByID is Score for callers holding only ids.
func (s *Scorer) ScoreByID(ctx context.Context, userID, targetID uint64) (int, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	target, err := s.userRepo.Get(ctx, targetID)
	if err != nil {
		return 0, err
	}
	return s.Score(ctx, user, target)
}
