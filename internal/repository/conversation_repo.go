package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
)

// ConversationRepository owns the one-row-per-unordered-pair conversations.
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(database *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// GetOrCreate returns the conversation for the unordered pair, creating it
// on first contact. Participants are stored lower-id-first; the unique pair
// index arbitrates concurrent first-messages and the lookup retries on a
// conflict, so two simultaneous senders converge on one row.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, a, b uint64) (*db.Conversation, error) {
	if a > b {
		a, b = b, a
	}

	conv := db.Conversation{
		Participant1ID: a,
		Participant2ID: b,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participant1_id"}, {Name: "participant2_id"}},
			DoNothing: true,
		}).
		Create(&conv).Error
	if err != nil {
		return nil, err
	}

	var stored db.Conversation
	if err := r.db.WithContext(ctx).
		First(&stored, "participant1_id = ? AND participant2_id = ?", a, b).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetByUUID returns the conversation, restricted to a participant.
func (r *ConversationRepository) GetByUUID(ctx context.Context, convUUID string, userID uint64) (*db.Conversation, error) {
	var conv db.Conversation
	err := r.db.WithContext(ctx).
		Where("uuid = ? AND (participant1_id = ? OR participant2_id = ?)", convUUID, userID, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErr.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns a user's conversations, most recent message first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint64, limit int) ([]db.Conversation, error) {
	var convs []db.Conversation
	err := r.db.WithContext(ctx).
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&convs).Error
	return convs, err
}

// TouchLastMessage bumps the conversation's last-message timestamp.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, convID uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Conversation{}).
		Where("id = ?", convID).
		Update("last_message_at", at).Error
}
