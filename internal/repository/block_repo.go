package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
)

// BlockRepository stores directional block rows and answers the symmetric
// existence check.
type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(database *gorm.DB) *BlockRepository {
	return &BlockRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BlockRepository) WithTx(tx *gorm.DB) *BlockRepository {
	return &BlockRepository{db: tx}
}

// Create inserts the block row; re-blocking the same user is a no-op.
func (r *BlockRepository) Create(ctx context.Context, blockerID, blockedID uint64, reason, note string) error {
	if reason == "" {
		reason = "other"
	}
	block := db.Block{
		BlockerID:     blockerID,
		BlockedUserID: blockedID,
		Reason:        reason,
		Note:          note,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_user_id"}},
			DoNothing: true,
		}).
		Create(&block).Error
}

// Delete removes the directional block row, if any.
func (r *BlockRepository) Delete(ctx context.Context, blockerID, blockedID uint64) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_user_id = ?", blockerID, blockedID).
		Delete(&db.Block{}).Error
}

// ExistsBetween reports whether a block exists in either direction.
func (r *BlockRepository) ExistsBetween(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Block{}).
		Where("(blocker_id = ? AND blocked_user_id = ?) OR (blocker_id = ? AND blocked_user_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// BlockedIDs returns every user in a block relationship with userID,
// from either side, as one exclusion set for discovery.
func (r *BlockRepository) BlockedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var rows []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_user_id = ?", userID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{}, len(rows))
	var ids []uint64
	for _, row := range rows {
		other := row.BlockedUserID
		if other == userID {
			other = row.BlockerID
		}
		if _, dup := seen[other]; !dup {
			seen[other] = struct{}{}
			ids = append(ids, other)
		}
	}
	return ids, nil
}
