package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
	"github.com/heartbeam/heartbeam/internal/utils/pagination"
)

// MatchRepository owns the directional match rows.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// GetOrCreatePending ensures the directional (user -> matched) row exists.
//
// Behavior:
//   - Fresh rows start as pending/non-mutual with the given score.
//   - An existing row is returned untouched: repeat likes never downgrade
//     a matched row back to pending.
func (r *MatchRepository) GetOrCreatePending(ctx context.Context, userID, matchedUserID uint64, score int) (*db.Match, error) {
	row := db.Match{
		UserID:        userID,
		MatchedUserID: matchedUserID,
		Status:        db.MatchStatusPending,
		MatchScore:    score,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "matched_user_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}

	var stored db.Match
	if err := r.db.WithContext(ctx).
		First(&stored, "user_id = ? AND matched_user_id = ?", userID, matchedUserID).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// PromotePair flips both directional rows of (a, b) to mutual with one
// shared matched_at. The reverse row is created in its promoted form if it
// does not exist yet, inheriting the forward row's score.
// Must run inside the RecordSwipe transaction.
func (r *MatchRepository) PromotePair(ctx context.Context, forward *db.Match, matchedAt time.Time) error {
	forward.IsMutual = true
	forward.Status = db.MatchStatusMatched
	forward.MatchedAt = &matchedAt
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_id = ? AND matched_user_id = ?", forward.UserID, forward.MatchedUserID).
		Updates(map[string]interface{}{
			"is_mutual":  true,
			"status":     db.MatchStatusMatched,
			"matched_at": matchedAt,
		}).Error
	if err != nil {
		return err
	}

	reverse := db.Match{
		UserID:        forward.MatchedUserID,
		MatchedUserID: forward.UserID,
		Status:        db.MatchStatusMatched,
		MatchScore:    forward.MatchScore,
		IsMutual:      true,
		MatchedAt:     &matchedAt,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "matched_user_id"}},
			DoNothing: true,
		}).
		Create(&reverse).Error
	if err != nil {
		return err
	}

	// The reverse row may have pre-existed as pending; promote it too.
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_id = ? AND matched_user_id = ?", forward.MatchedUserID, forward.UserID).
		Updates(map[string]interface{}{
			"is_mutual":  true,
			"status":     db.MatchStatusMatched,
			"matched_at": matchedAt,
		}).Error
}

// MarkPassed sets the directional row to passed if one exists.
// A pass never touches the reverse direction.
func (r *MatchRepository) MarkPassed(ctx context.Context, userID, matchedUserID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_id = ? AND matched_user_id = ? AND is_mutual = ?", userID, matchedUserID, false).
		Update("status", db.MatchStatusPassed).Error
}

// DeletePair removes every match row in both directions between two users.
// Called from the block cascade: a block always wins over an existing
// match, regardless of mutual status.
func (r *MatchRepository) DeletePair(ctx context.Context, a, b uint64) error {
	return r.db.WithContext(ctx).
		Where("(user_id = ? AND matched_user_id = ?) OR (user_id = ? AND matched_user_id = ?)", a, b, b, a).
		Delete(&db.Match{}).Error
}

// ListByUser returns a user's outgoing match rows, newest first.
func (r *MatchRepository) ListByUser(ctx context.Context, userID uint64, onlyMutual bool, limit int) ([]db.Match, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID)
	if onlyMutual {
		query = query.Where("is_mutual = ?", true)
	}

	var matches []db.Match
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&matches).Error
	return matches, err
}

// Counts returns (total, mutual) match counts for a user.
func (r *MatchRepository) Counts(ctx context.Context, userID uint64) (total, mutual int64, err error) {
	err = r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_id = ? AND is_mutual = ?", userID, true).
		Count(&mutual).Error
	return total, mutual, err
}

// ListLikers returns the likes a recipient has received and not yet passed
// on, newest first, with cursor pagination.
//
// Behavior:
//   - Only swipe rows (actor -> recipient, like) count.
//   - Actors the recipient explicitly passed are excluded.
//   - limit+1 rows are fetched to decide whether a next cursor exists.
func (r *MatchRepository) ListLikers(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.SwipeAction, *string, error) {
	cursor, err := pagination.Decode(tokenString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("swipe_actions s").
		Where("s.target_user_id = ? AND s.action = ?", recipientID, db.ActionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipe_actions s2
				WHERE s2.user_id = ?
				  AND s2.target_user_id = s.user_id
				  AND s2.action = ?
			)`, recipientID, db.ActionPass).
		Order("s.updated_at DESC, s.user_id DESC").
		Limit(limit + 1)

	if cursor.ID > 0 && cursor.UnixMillis > 0 {
		ts := time.UnixMilli(cursor.UnixMillis).UTC()
		query = query.Where(
			"(s.updated_at < ? OR (s.updated_at = ? AND s.user_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var likes []db.SwipeAction
	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:         last.UserID,
			UnixMillis: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikers counts likes received, excluding actors the recipient passed.
func (r *MatchRepository) CountLikers(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("swipe_actions s").
		Where("s.target_user_id = ? AND s.action = ?", recipientID, db.ActionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipe_actions s2
				WHERE s2.user_id = ?
				  AND s2.target_user_id = s.user_id
				  AND s2.action = ?
			)`, recipientID, db.ActionPass).
		Count(&count).Error
	return count, err
}

// tokenString safely dereferences a pagination token pointer.
func tokenString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
