package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
)

// SwipeRepository provides data access for like/pass actions between users.
type SwipeRepository struct {
	db *gorm.DB
}

func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SwipeRepository) WithTx(tx *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: tx}
}

// Upsert inserts or overwrites the swipe for (actor, target).
//
// Behavior:
//   - The composite PK enforces one row per ordered pair.
//   - A repeat swipe overwrites action and score; created_at is kept.
func (r *SwipeRepository) Upsert(ctx context.Context, actorID, targetID uint64, action string, score int) (*db.SwipeAction, error) {
	swipe := db.SwipeAction{
		UserID:       actorID,
		TargetUserID: targetID,
		Action:       action,
		MatchScore:   score,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "target_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"action", "match_score", "updated_at"}),
		}).
		Create(&swipe).Error
	if err != nil {
		return nil, err
	}

	// Re-read so the caller sees the stored row (uuid, timestamps) after an
	// overwrite rather than the insert candidate.
	var stored db.SwipeAction
	if err := r.db.WithContext(ctx).
		First(&stored, "user_id = ? AND target_user_id = ?", actorID, targetID).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// HasLiked reports whether actor has a live "like" toward target.
// Used as the reciprocity test: RecordSwipe checks the opposite direction.
func (r *SwipeRepository) HasLiked(ctx context.Context, actorID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.SwipeAction{}).
		Where("user_id = ? AND target_user_id = ? AND action = ?", actorID, targetID, db.ActionLike).
		Count(&count).Error
	return count > 0, err
}

// LockPair takes UPDATE locks on both ordered swipe rows of a user pair.
// Calling this before the reciprocity check serializes two concurrent
// reciprocal likes on the same pair, so neither promotion can be lost.
// Must run inside a transaction.
func (r *SwipeRepository) LockPair(ctx context.Context, a, b uint64) error {
	var rows []db.SwipeAction
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("(user_id = ? AND target_user_id = ?) OR (user_id = ? AND target_user_id = ?)", a, b, b, a).
		Find(&rows).Error
}

// SwipedTargetIDs returns every user the actor has already swiped on,
// like or pass. Discovery uses it for the hide-seen-profiles filter.
func (r *SwipeRepository) SwipedTargetIDs(ctx context.Context, actorID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.SwipeAction{}).
		Where("user_id = ?", actorID).
		Pluck("target_user_id", &ids).Error
	return ids, err
}
