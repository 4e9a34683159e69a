package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Swipe actions.
const (
	ActionLike = "like"
	ActionPass = "pass"
)

// Match lifecycle. A directional row moves pending -> matched on mutual
// promotion or pending -> passed; expired is set by an external sweep.
const (
	MatchStatusPending = "pending"
	MatchStatusMatched = "matched"
	MatchStatusPassed  = "passed"
	MatchStatusExpired = "expired"
)

// Relationship goals.
const (
	GoalCasual     = "casual"
	GoalSerious    = "serious"
	GoalFriendship = "friendship"
	GoalMarriage   = "marriage"
	GoalUnsure     = "unsure"
)

// Coin transaction types. The ledger is append-only.
const (
	TxPurchase = "purchase"
	TxMessage  = "message"
	TxReward   = "reward"
	TxBonus    = "bonus"
	TxRefund   = "refund"
	TxAdmin    = "admin"
)

// User table. Profile fields live inline; the matching core only reads
// them, profile CRUD belongs to a collaborator service.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	Verified     bool   `gorm:"default:false"`

	Gender           string     `gorm:"size:16;not null;index:idx_gender_birth,priority:1"`
	LookingForGender string     `gorm:"size:16"` // empty means no preference
	BirthDate        *time.Time `gorm:"index:idx_gender_birth,priority:2"`
	RelationshipGoal string     `gorm:"size:20"` // empty means unset

	MinAgePreference  int `gorm:"default:18"`
	MaxAgePreference  int `gorm:"default:100"`
	ProfileCompletion int `gorm:"default:0;index"` // 0-100

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Age returns the user's age at the given time, or false if the birth date
// is unknown.
func (u *User) Age(now time.Time) (int, bool) {
	if u.BirthDate == nil {
		return 0, false
	}
	b := *u.BirthDate
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	return age, true
}

// Interest is a selectable hobby/topic (Music, Sports, ...).
type Interest struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"uniqueIndex;size:100;not null"`
}

// UserInterest links users to interests.
// Composite PK keeps one row per (user, interest).
type UserInterest struct {
	UserID     uint64 `gorm:"primaryKey"`
	InterestID uint64 `gorm:"primaryKey"`
}

// Preference holds per-user matching knobs beyond the basic profile.
// One row per user, created lazily with defaults on first access.
//
// Importance weights are 1-5 and feed the scoring engine; DistanceImportance
// is carried for the profile UI but never scored.
type Preference struct {
	UserID uint64 `gorm:"primaryKey"`

	AgeImportance              int `gorm:"default:2"`
	DistanceImportance         int `gorm:"default:3"`
	InterestsImportance        int `gorm:"default:4"`
	RelationshipGoalImportance int `gorm:"default:5"`

	MinProfileCompletion int  `gorm:"default:50"`
	HideSeenProfiles     bool `gorm:"default:true"`
	ShowOnlyVerified     bool `gorm:"default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// SwipeAction records an actor's like/pass on a target.
//
// Composite PK (UserID, TargetUserID) gives the overwrite guarantee: re-swiping
// updates the existing row, never inserts a second one. The score is frozen
// at swipe time as evidence, independent of later preference changes.
type SwipeAction struct {
	UserID       uint64 `gorm:"primaryKey;index:idx_swipe_actor_action,priority:1"`
	TargetUserID uint64 `gorm:"primaryKey;index:idx_swipe_target_action,priority:1"`
	UUID         string `gorm:"size:36;uniqueIndex"`

	Action     string `gorm:"size:16;not null;index:idx_swipe_actor_action,priority:2;index:idx_swipe_target_action,priority:2"`
	MatchScore int    `gorm:"not null"` // 0-100, computed at swipe time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (s *SwipeAction) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	return nil
}

// Match is a directional record: UserID initiated toward MatchedUserID.
// Both directions of a mutual pair exist as separate rows, each with
// is_mutual=true and the same matched_at.
type Match struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"size:36;uniqueIndex"`

	UserID        uint64 `gorm:"not null;uniqueIndex:idx_match_pair,priority:1;index:idx_match_user_mutual,priority:1"`
	MatchedUserID uint64 `gorm:"not null;uniqueIndex:idx_match_pair,priority:2;index"`

	Status     string `gorm:"size:16;not null;default:pending;index"`
	MatchScore int    `gorm:"not null;index"` // 0-100
	IsMutual   bool   `gorm:"not null;default:false;index:idx_match_user_mutual,priority:2"`

	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	MatchedAt *time.Time // set only on mutual promotion
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == "" {
		m.UUID = uuid.NewString()
	}
	return nil
}

// Block is stored directionally (blocker -> blocked) with a unique pair;
// the existence check is symmetric and computed, not stored twice.
type Block struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	BlockerID     uint64 `gorm:"not null;uniqueIndex:idx_block_pair,priority:1"`
	BlockedUserID uint64 `gorm:"not null;uniqueIndex:idx_block_pair,priority:2;index"`

	Reason string `gorm:"size:20;default:other"`
	Note   string `gorm:"size:255"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// CoinWallet holds a user's balance plus monotonically non-decreasing
// lifetime counters. Invariant: balance = total_earned - total_spent.
// Mutated only through the locked add/deduct paths in the wallet repository.
type CoinWallet struct {
	UserID uint64 `gorm:"primaryKey"`

	Balance        int `gorm:"not null;default:0"`
	TotalEarned    int `gorm:"not null;default:0"`
	TotalSpent     int `gorm:"not null;default:0"`
	TotalPurchased int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// CoinTransaction is one immutable ledger entry. Positive amount = credit,
// negative = debit. BalanceAfter snapshots the wallet right after the
// mutation, so replaying the ledger reconciles with the balance.
type CoinTransaction struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"size:36;uniqueIndex"`

	WalletUserID uint64 `gorm:"not null;index:idx_tx_wallet_created,priority:1"`
	Amount       int    `gorm:"not null"`
	Type         string `gorm:"size:16;not null;index"`
	BalanceAfter int    `gorm:"not null"`
	Description  string `gorm:"size:255"`

	MessageID *uint64 // set when the debit paid for a message

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_tx_wallet_created,priority:2,sort:desc"`
}

func (t *CoinTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == "" {
		t.UUID = uuid.NewString()
	}
	return nil
}

// Conversation groups messages between two users. Participants are stored
// in canonical order (lower id first) so the unique pair index is the
// arbiter against duplicate conversations.
type Conversation struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"size:36;uniqueIndex"`

	Participant1ID uint64 `gorm:"not null;uniqueIndex:idx_conv_pair,priority:1;index:idx_conv_p1_last,priority:1"`
	Participant2ID uint64 `gorm:"not null;uniqueIndex:idx_conv_pair,priority:2;index:idx_conv_p2_last,priority:1"`

	CreatedAt     time.Time `gorm:"autoCreateTime"`
	LastMessageAt time.Time `gorm:"autoCreateTime;index:idx_conv_p1_last,priority:2,sort:desc;index:idx_conv_p2_last,priority:2,sort:desc"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}

// OtherParticipant returns the counterpart of userID in this conversation.
func (c *Conversation) OtherParticipant(userID uint64) uint64 {
	if userID == c.Participant1ID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// Message content is immutable once created; only the read flag mutates.
type Message struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"size:36;uniqueIndex"`

	ConversationID uint64 `gorm:"not null;index:idx_msg_conv_created,priority:1"`
	SenderID       uint64 `gorm:"not null;index"`
	ReceiverID     uint64 `gorm:"not null;index:idx_msg_receiver_read,priority:1"`

	Content  string `gorm:"size:1000;not null"`
	CoinCost int    `gorm:"not null;default:0"` // 0 if sent under the free quota

	IsRead bool `gorm:"not null;default:false;index:idx_msg_receiver_read,priority:2"`
	ReadAt *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_msg_conv_created,priority:2"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == "" {
		m.UUID = uuid.NewString()
	}
	return nil
}

// DailyMessageQuota tracks one user's message counters for one calendar
// date. Scoped per user globally, not per conversation: the free allowance
// is shared across all of a user's conversations that day.
// Invariant: total = free + paid.
type DailyMessageQuota struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	UserID uint64 `gorm:"not null;uniqueIndex:idx_quota_user_date,priority:1"`
	Date   string `gorm:"size:10;not null;uniqueIndex:idx_quota_user_date,priority:2"` // YYYY-MM-DD

	TotalMessagesSent int `gorm:"not null;default:0"`
	FreeMessagesUsed  int `gorm:"not null;default:0"`
	PaidMessagesSent  int `gorm:"not null;default:0"`
}

// QuotaDate formats t as the quota row's calendar-date key.
func QuotaDate(t time.Time) string {
	return t.Format("2006-01-02")
}
