package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
)

// QuotaRepository tracks the per-user per-date message counters gating the
// free-message allowance.
type QuotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(database *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *QuotaRepository) WithTx(tx *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: tx}
}

// GetOrInit returns the quota row for (user, date), creating it with zero
// counters on the first message of the day. Insert-or-ignore plus read, so
// concurrent first messages cannot create two rows.
func (r *QuotaRepository) GetOrInit(ctx context.Context, userID uint64, date string) (*db.DailyMessageQuota, error) {
	seed := db.DailyMessageQuota{
		UserID: userID,
		Date:   date,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(&seed).Error
	if err != nil {
		return nil, err
	}

	var quota db.DailyMessageQuota
	if err := r.db.WithContext(ctx).
		First(&quota, "user_id = ? AND date = ?", userID, date).Error; err != nil {
		return nil, err
	}
	return &quota, nil
}

// Increment bumps the day's counters: total always, and the free or paid
// bucket depending on how the message was covered. Atomic increments keep
// total = free + paid under concurrent sends.
func (r *QuotaRepository) Increment(ctx context.Context, userID uint64, date string, paid bool) error {
	bucket := "free_messages_used"
	if paid {
		bucket = "paid_messages_sent"
	}
	return r.db.WithContext(ctx).
		Model(&db.DailyMessageQuota{}).
		Where("user_id = ? AND date = ?", userID, date).
		Updates(map[string]interface{}{
			"total_messages_sent": gorm.Expr("total_messages_sent + 1"),
			bucket:                gorm.Expr(bucket + " + 1"),
		}).Error
}
