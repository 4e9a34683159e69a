// Package messaging implements conversations, the coin-gated message send
// path and read tracking. SendMessage is the one multi-step mutation of
// the subsystem and commits all-or-nothing.
package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
	"github.com/heartbeam/heartbeam/internal/repository"
	"github.com/heartbeam/heartbeam/internal/service/block"
)

type Service struct {
	appCtx     *app.AppContext
	userRepo   *repository.UserRepository
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	walletRepo *repository.WalletRepository
	quotaRepo  *repository.QuotaRepository
	blocks     *block.Service
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:     appCtx,
		userRepo:   repository.NewUserRepository(appCtx.DB),
		convRepo:   repository.NewConversationRepository(appCtx.DB),
		msgRepo:    repository.NewMessageRepository(appCtx.DB),
		walletRepo: repository.NewWalletRepository(appCtx.DB),
		quotaRepo:  repository.NewQuotaRepository(appCtx.DB),
		blocks:     block.NewService(appCtx),
	}
}

// CostInfo describes what the next message will cost the sender today.
type CostInfo struct {
	Cost          int
	FreeRemaining int
	FreeLimit     int
}

// CheckCost reports the sender's current quota standing: 0 while free
// messages remain for the day, the configured unit price afterwards.
// The allowance is per user per day, shared across all conversations.
// The used counter is cached per date and dropped after every send.
func (s *Service) CheckCost(ctx context.Context, senderID uint64) (*CostInfo, error) {
	date := db.QuotaDate(time.Now().UTC())
	key := cache.KeyDailyQuota(senderID, date)

	freeUsed := -1
	if val, ok, err := s.appCtx.RedisCache.Get(ctx, key); err == nil && ok {
		if n, err := strconv.Atoi(val); err == nil {
			freeUsed = n
		}
	}
	if freeUsed < 0 {
		quota, err := s.quotaRepo.GetOrInit(ctx, senderID, date)
		if err != nil {
			return nil, err
		}
		freeUsed = quota.FreeMessagesUsed
		if err := s.appCtx.RedisCache.Set(ctx, key, strconv.Itoa(freeUsed), cache.QuotaTTL); err != nil {
			s.appCtx.Logger.Warn("failed to cache daily quota", "err", err)
		}
	}

	limit := s.appCtx.Config.Coins.FreeMessagesPerDay
	remaining := limit - freeUsed
	if remaining < 0 {
		remaining = 0
	}

	cost := 0
	if remaining == 0 {
		cost = s.appCtx.Config.Coins.MessageCost
	}
	return &CostInfo{Cost: cost, FreeRemaining: remaining, FreeLimit: limit}, nil
}

// SendMessage delivers content from sender to receiver.
//
// Behavior:
//   - Validation: no self-messaging, both accounts active, no block in
//     either direction, content non-empty after trimming and within the
//     configured length. Violations fail before any state changes.
//   - The canonical conversation is fetched or created, the cost computed
//     from today's quota, and, when the free allowance is spent, the
//     sender's wallet is debited under a row lock.
//   - Message persistence, the ledger link and the quota increment commit
//     in the same transaction as the debit: a failed send never costs a
//     coin.
//   - On success the related caches are dropped and the receiver gets a
//     fire-and-forget notification.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID uint64, content string) (*db.Message, error) {
	if senderID == receiverID {
		return nil, domainErr.ErrSelfTarget
	}

	sender, err := s.userRepo.Get(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.userRepo.Get(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !sender.Active || !receiver.Active {
		return nil, domainErr.ErrInactiveUser
	}
	if blocked, err := s.blocks.IsBlocked(ctx, senderID, receiverID); err != nil {
		return nil, err
	} else if blocked {
		return nil, domainErr.ErrBlocked
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domainErr.Validation("message content cannot be empty")
	}
	if max := s.appCtx.Config.Coins.MaxMessageLength; len(content) > max {
		return nil, domainErr.Validation("message content too long (max %d characters)", max)
	}

	var message *db.Message
	today := db.QuotaDate(time.Now().UTC())

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convs := s.convRepo.WithTx(tx)
		msgs := s.msgRepo.WithTx(tx)
		wallets := s.walletRepo.WithTx(tx)
		quotas := s.quotaRepo.WithTx(tx)

		conv, err := convs.GetOrCreate(ctx, senderID, receiverID)
		if err != nil {
			return err
		}

		quota, err := quotas.GetOrInit(ctx, senderID, today)
		if err != nil {
			return err
		}
		cost := 0
		if quota.FreeMessagesUsed >= s.appCtx.Config.Coins.FreeMessagesPerDay {
			cost = s.appCtx.Config.Coins.MessageCost
		}

		var ledgerEntry *db.CoinTransaction
		if cost > 0 {
			if _, err := wallets.GetOrInit(ctx, senderID, s.appCtx.Config.Coins.StartingBalance); err != nil {
				return err
			}
			ledgerEntry, err = wallets.Deduct(ctx, senderID, cost, db.TxMessage, "Message to "+receiver.Username)
			if err != nil {
				return err
			}
		}

		msg := &db.Message{
			ConversationID: conv.ID,
			SenderID:       senderID,
			ReceiverID:     receiverID,
			Content:        content,
			CoinCost:       cost,
		}
		if err := msgs.Create(ctx, msg); err != nil {
			return err
		}

		if ledgerEntry != nil {
			if err := wallets.LinkMessage(ctx, ledgerEntry.ID, msg.ID); err != nil {
				return err
			}
		}

		if err := quotas.Increment(ctx, senderID, today, cost > 0); err != nil {
			return err
		}

		if err := convs.TouchLastMessage(ctx, conv.ID, msg.CreatedAt); err != nil {
			return err
		}

		message = msg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAfterSend(ctx, senderID, receiverID, today)
	s.appCtx.Logger.Info("message sent",
		"sender", senderID, "receiver", receiverID, "cost", message.CoinCost)
	s.appCtx.Notifier.Notify(ctx, receiverID, "New message", "You have a new message.", map[string]string{"type": "new_message"})

	return message, nil
}

func (s *Service) invalidateAfterSend(ctx context.Context, senderID, receiverID uint64, date string) {
	keys := []string{
		cache.KeyConversationList(senderID),
		cache.KeyConversationList(receiverID),
		cache.KeyUnreadCount(receiverID),
		cache.KeyDailyQuota(senderID, date),
		cache.KeyWalletBalance(senderID),
	}
	if err := s.appCtx.RedisCache.Del(ctx, keys...); err != nil {
		s.appCtx.Logger.Warn("failed to invalidate message caches", "err", err)
	}
}

// MessageHistory pages through a conversation's messages, oldest first.
// Only participants may read.
func (s *Service) MessageHistory(ctx context.Context, userID uint64, convUUID string, paginationToken *string, limit int) ([]db.Message, *string, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	conv, err := s.convRepo.GetByUUID(ctx, convUUID, userID)
	if err != nil {
		return nil, nil, err
	}
	return s.msgRepo.ListByConversation(ctx, conv.ID, paginationToken, limit)
}

// ListConversations returns the user's conversations, most recently active
// first. The list is cached briefly and dropped on every send touching it.
func (s *Service) ListConversations(ctx context.Context, userID uint64, limit int) ([]db.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	key := cache.KeyConversationList(userID)
	if val, ok, err := s.appCtx.RedisCache.Get(ctx, key); err == nil && ok {
		var cached []db.Conversation
		if err := json.Unmarshal([]byte(val), &cached); err == nil && len(cached) >= limit {
			return cached[:limit], nil
		}
	}

	convs, err := s.convRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(convs); err == nil {
		if err := s.appCtx.RedisCache.Set(ctx, key, data, cache.ConversationTTL); err != nil {
			s.appCtx.Logger.Warn("failed to cache conversation list", "err", err)
		}
	}
	return convs, nil
}

// UnreadCount returns how many received messages the user has not read.
// Cache-first with a short TTL since clients poll this.
func (s *Service) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	key := cache.KeyUnreadCount(userID)
	if val, ok, err := s.appCtx.RedisCache.Get(ctx, key); err == nil && ok {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, nil
		}
	}

	count, err := s.msgRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.appCtx.RedisCache.Set(ctx, key, strconv.FormatInt(count, 10), cache.UnreadCountTTL); err != nil {
		s.appCtx.Logger.Warn("failed to cache unread count", "err", err)
	}
	return count, nil
}

// MarkConversationRead flags the user's unread messages in the
// conversation and drops the unread-count cache.
func (s *Service) MarkConversationRead(ctx context.Context, userID uint64, convUUID string) (int64, error) {
	conv, err := s.convRepo.GetByUUID(ctx, convUUID, userID)
	if err != nil {
		return 0, err
	}

	updated, err := s.msgRepo.MarkConversationRead(ctx, conv.ID, userID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	if err := s.appCtx.RedisCache.Del(ctx, cache.KeyUnreadCount(userID)); err != nil {
		s.appCtx.Logger.Warn("failed to invalidate unread count", "err", err)
	}
	return updated, nil
}
