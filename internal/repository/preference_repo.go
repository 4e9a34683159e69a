package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
)

// PreferenceRepository manages per-user matching preferences.
type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(database *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: database}
}

// GetOrInit returns the user's preferences, creating the row with schema
// defaults on first access. A single upsert (insert-or-ignore, then read)
// avoids the read-then-create race under concurrent first accesses.
func (r *PreferenceRepository) GetOrInit(ctx context.Context, userID uint64) (*db.Preference, error) {
	seed := db.Preference{
		UserID:                     userID,
		AgeImportance:              2,
		DistanceImportance:         3,
		InterestsImportance:        4,
		RelationshipGoalImportance: 5,
		MinProfileCompletion:       50,
		HideSeenProfiles:           true,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&seed).Error
	if err != nil {
		return nil, err
	}

	var pref db.Preference
	if err := r.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

// Update persists user-edited preference values.
func (r *PreferenceRepository) Update(ctx context.Context, pref *db.Preference) error {
	return r.db.WithContext(ctx).Save(pref).Error
}
