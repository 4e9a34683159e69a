package messaging_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/config"
	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
	"github.com/heartbeam/heartbeam/internal/repository"
	"github.com/heartbeam/heartbeam/internal/service/block"
	"github.com/heartbeam/heartbeam/internal/service/messaging"
)

func setupService(t *testing.T) (*messaging.Service, *app.AppContext) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Coins.FreeMessagesPerDay = 3
	cfg.Coins.MessageCost = 1
	cfg.Coins.StartingBalance = 10

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, redisCache, cfg, logger, nil)
	return messaging.NewService(appCtx), appCtx
}

func seedUser(t *testing.T, gdb *gorm.DB, id uint64) {
	t.Helper()
	user := db.User{
		ID:           id,
		Username:     fmt.Sprintf("user%d", id),
		Email:        fmt.Sprintf("u%d@test.com", id),
		PasswordHash: "x",
		Active:       true,
		Gender:       "male",
	}
	require.NoError(t, gdb.Create(&user).Error)
}

func balanceOf(t *testing.T, appCtx *app.AppContext, userID uint64) int {
	t.Helper()
	wallet, err := repository.NewWalletRepository(appCtx.DB).
		GetOrInit(context.Background(), userID, appCtx.Config.Coins.StartingBalance)
	require.NoError(t, err)
	return wallet.Balance
}

func TestFreeMessagesThenPaid(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)
	seedUser(t, appCtx.DB, 3)

	// the daily allowance is per user, shared across conversations
	receivers := []uint64{2, 3, 2}
	for i, recv := range receivers {
		msg, err := svc.SendMessage(ctx, 1, recv, fmt.Sprintf("hello %d", i))
		require.NoError(t, err)
		assert.Equal(t, 0, msg.CoinCost, "message %d should be free", i+1)
	}

	// fourth message of the day costs a coin
	msg, err := svc.SendMessage(ctx, 1, 3, "one more")
	require.NoError(t, err)
	assert.Equal(t, 1, msg.CoinCost)
	assert.Equal(t, 9, balanceOf(t, appCtx, 1))

	// quota counters reconcile
	quota, err := repository.NewQuotaRepository(appCtx.DB).
		GetOrInit(ctx, 1, db.QuotaDate(time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, 4, quota.TotalMessagesSent)
	assert.Equal(t, 3, quota.FreeMessagesUsed)
	assert.Equal(t, 1, quota.PaidMessagesSent)

	// the paid ledger entry points at its message
	var entry db.CoinTransaction
	require.NoError(t, appCtx.DB.
		First(&entry, "wallet_user_id = ? AND type = ?", uint64(1), db.TxMessage).Error)
	assert.Equal(t, -1, entry.Amount)
	require.NotNil(t, entry.MessageID)
	assert.Equal(t, msg.ID, *entry.MessageID)
}

func TestCheckCostReportsQuotaStanding(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	info, err := svc.CheckCost(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Cost)
	assert.Equal(t, 3, info.FreeRemaining)
	assert.Equal(t, 3, info.FreeLimit)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, 1, 2, "hi")
		require.NoError(t, err)
	}

	info, err = svc.CheckCost(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Cost)
	assert.Equal(t, 0, info.FreeRemaining)
}

func TestInsufficientBalanceFailsAtomically(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	appCtx.Config.Coins.StartingBalance = 0
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, 1, 2, "free one")
		require.NoError(t, err)
	}

	_, err := svc.SendMessage(ctx, 1, 2, "cannot afford this")
	require.Error(t, err)
	assert.True(t, domainErr.IsInsufficientBalance(err))

	// nothing about the failed send persisted
	var msgCount int64
	require.NoError(t, appCtx.DB.Model(&db.Message{}).Count(&msgCount).Error)
	assert.Equal(t, int64(3), msgCount)

	quota, err := repository.NewQuotaRepository(appCtx.DB).
		GetOrInit(ctx, 1, db.QuotaDate(time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, 3, quota.TotalMessagesSent)
	assert.Equal(t, 0, quota.PaidMessagesSent)

	assert.Equal(t, 0, balanceOf(t, appCtx, 1))
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	_, err := svc.SendMessage(ctx, 1, 1, "hi me")
	assert.ErrorIs(t, err, domainErr.ErrSelfTarget)

	_, err = svc.SendMessage(ctx, 1, 2, "   ")
	assert.True(t, domainErr.IsValidation(err))

	long := make([]byte, appCtx.Config.Coins.MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.SendMessage(ctx, 1, 2, string(long))
	assert.True(t, domainErr.IsValidation(err))
}

func TestSendMessageRejectsBlockedPair(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	require.NoError(t, block.NewService(appCtx).Block(ctx, 2, 1, "harassment", ""))

	_, err := svc.SendMessage(ctx, 1, 2, "hello?")
	assert.ErrorIs(t, err, domainErr.ErrBlocked)
}

func TestConversationIsCanonicalAndShared(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	_, err := svc.SendMessage(ctx, 2, 1, "first")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, 1, 2, "second")
	require.NoError(t, err)

	// both sends land in one conversation, participants in canonical order
	var convs []db.Conversation
	require.NoError(t, appCtx.DB.Find(&convs).Error)
	require.Len(t, convs, 1)
	assert.Equal(t, uint64(1), convs[0].Participant1ID)
	assert.Equal(t, uint64(2), convs[0].Participant2ID)

	listed, err := svc.ListConversations(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, uint64(2), listed[0].OtherParticipant(1))
}

func TestMessageHistoryPagination(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	appCtx.Config.Coins.FreeMessagesPerDay = 100
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, 1, 2, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	var conv db.Conversation
	require.NoError(t, appCtx.DB.First(&conv).Error)

	page1, next, err := svc.MessageHistory(ctx, 1, conv.UUID, nil, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotNil(t, next)
	assert.Equal(t, "msg 0", page1[0].Content) // oldest first

	page2, next2, err := svc.MessageHistory(ctx, 1, conv.UUID, next, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Nil(t, next2)
	assert.Equal(t, "msg 4", page2[1].Content)

	// non-participants cannot read
	seedUser(t, appCtx.DB, 3)
	_, _, err = svc.MessageHistory(ctx, 3, conv.UUID, nil, 10)
	assert.ErrorIs(t, err, domainErr.ErrConversationNotFound)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	seedUser(t, appCtx.DB, 1)
	seedUser(t, appCtx.DB, 2)

	_, err := svc.SendMessage(ctx, 1, 2, "one")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, 1, 2, "two")
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var conv db.Conversation
	require.NoError(t, appCtx.DB.First(&conv).Error)

	updated, err := svc.MarkConversationRead(ctx, 2, conv.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	count, err = svc.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// sender's own messages were never unread for them
	count, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
