// Package wallet exposes the coin operations outside the message path:
// purchases, rewards, history and the cached balance.
package wallet

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
	"github.com/heartbeam/heartbeam/internal/repository"
)

type Service struct {
	appCtx     *app.AppContext
	walletRepo *repository.WalletRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:     appCtx,
		walletRepo: repository.NewWalletRepository(appCtx.DB),
	}
}

// Purchase credits bought coins. Payment-gateway integration is a stub:
// the reference is recorded on the ledger entry, nothing is charged here.
func (s *Service) Purchase(ctx context.Context, userID uint64, amount int, paymentRef string) (*db.CoinTransaction, error) {
	if amount <= 0 {
		return nil, domainErr.Validation("purchase amount must be positive")
	}

	var entry *db.CoinTransaction
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := s.walletRepo.WithTx(tx)
		if _, err := wallets.GetOrInit(ctx, userID, s.appCtx.Config.Coins.StartingBalance); err != nil {
			return err
		}
		var err error
		entry, err = wallets.Add(ctx, userID, amount, db.TxPurchase,
			fmt.Sprintf("Purchased %d coins. Ref: %s", amount, paymentRef))
		if err != nil {
			return err
		}
		return wallets.AddPurchased(ctx, userID, amount)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, userID)
	s.appCtx.Logger.Info("coins purchased", "user", userID, "amount", amount, "balance", entry.BalanceAfter)
	return entry, nil
}

// Award grants free coins (rewards, bonuses).
func (s *Service) Award(ctx context.Context, userID uint64, amount int, reason string) (*db.CoinTransaction, error) {
	if amount <= 0 {
		return nil, domainErr.Validation("award amount must be positive")
	}
	if reason == "" {
		reason = fmt.Sprintf("Rewarded %d coins", amount)
	}

	var entry *db.CoinTransaction
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := s.walletRepo.WithTx(tx)
		if _, err := wallets.GetOrInit(ctx, userID, s.appCtx.Config.Coins.StartingBalance); err != nil {
			return err
		}
		var err error
		entry, err = wallets.Add(ctx, userID, amount, db.TxReward, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, userID)
	return entry, nil
}

// Deduct debits coins outside the message path (admin adjustments,
// refund reversals). Fails atomically on insufficient balance.
func (s *Service) Deduct(ctx context.Context, userID uint64, amount int, txType, description string) (*db.CoinTransaction, error) {
	if amount <= 0 {
		return nil, domainErr.Validation("deduct amount must be positive")
	}

	var entry *db.CoinTransaction
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := s.walletRepo.WithTx(tx)
		if _, err := wallets.GetOrInit(ctx, userID, s.appCtx.Config.Coins.StartingBalance); err != nil {
			return err
		}
		var err error
		entry, err = wallets.Deduct(ctx, userID, amount, txType, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, userID)
	return entry, nil
}

// Balance returns the user's coin balance, cache-first.
func (s *Service) Balance(ctx context.Context, userID uint64) (int, error) {
	key := cache.KeyWalletBalance(userID)
	if val, ok, err := s.appCtx.RedisCache.Get(ctx, key); err == nil && ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n, nil
		}
	}

	wallet, err := s.walletRepo.GetOrInit(ctx, userID, s.appCtx.Config.Coins.StartingBalance)
	if err != nil {
		return 0, err
	}
	if err := s.appCtx.RedisCache.Set(ctx, key, strconv.Itoa(wallet.Balance), cache.BalanceTTL); err != nil {
		s.appCtx.Logger.Warn("failed to cache wallet balance", "err", err)
	}
	return wallet.Balance, nil
}

// Wallet returns the full wallet row, creating it lazily.
func (s *Service) Wallet(ctx context.Context, userID uint64) (*db.CoinWallet, error) {
	return s.walletRepo.GetOrInit(ctx, userID, s.appCtx.Config.Coins.StartingBalance)
}

// TransactionHistory pages through the ledger, newest first.
func (s *Service) TransactionHistory(ctx context.Context, userID uint64, paginationToken *string, limit int) ([]db.CoinTransaction, *string, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.walletRepo.Transactions(ctx, userID, paginationToken, limit)
}

func (s *Service) invalidateBalance(ctx context.Context, userID uint64) {
	if err := s.appCtx.RedisCache.Del(ctx, cache.KeyWalletBalance(userID)); err != nil {
		s.appCtx.Logger.Warn("failed to invalidate wallet balance", "user", userID, "err", err)
	}
}
