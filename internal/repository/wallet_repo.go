package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
	"github.com/heartbeam/heartbeam/internal/utils/pagination"
)

// WalletRepository owns the coin wallet rows and their append-only ledger.
// All balance mutation goes through Add/Deduct, which lock the wallet row
// for the read-modify-write-append span.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(database *gorm.DB) *WalletRepository {
	return &WalletRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

// GetOrInit returns the user's wallet, lazily creating it with the
// starting balance. The opening credit lands on the ledger so the replay
// invariant (sum of amounts = balance - 0) holds from the first row.
// A single insert-or-ignore upsert avoids the read-then-create race.
func (r *WalletRepository) GetOrInit(ctx context.Context, userID uint64, startingBalance int) (*db.CoinWallet, error) {
	seed := db.CoinWallet{
		UserID:      userID,
		Balance:     startingBalance,
		TotalEarned: startingBalance,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&seed)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected > 0 && startingBalance > 0 {
		opening := db.CoinTransaction{
			WalletUserID: userID,
			Amount:       startingBalance,
			Type:         db.TxBonus,
			BalanceAfter: startingBalance,
			Description:  "Welcome bonus",
		}
		if err := r.db.WithContext(ctx).Create(&opening).Error; err != nil {
			return nil, err
		}
	}

	var wallet db.CoinWallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// lockWallet reads the wallet row under an UPDATE lock. Concurrent
// mutations of the same wallet serialize here; two debits can never both
// read the same pre-debit balance.
func (r *WalletRepository) lockWallet(ctx context.Context, userID uint64) (*db.CoinWallet, error) {
	var wallet db.CoinWallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Add credits the wallet and appends the ledger entry in one step.
// Must run inside a transaction. Returns the created transaction.
func (r *WalletRepository) Add(ctx context.Context, userID uint64, amount int, txType, description string) (*db.CoinTransaction, error) {
	wallet, err := r.lockWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	wallet.Balance += amount
	wallet.TotalEarned += amount
	if err := r.db.WithContext(ctx).
		Model(&db.CoinWallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":      wallet.Balance,
			"total_earned": wallet.TotalEarned,
			"updated_at":   time.Now(),
		}).Error; err != nil {
		return nil, err
	}

	entry := db.CoinTransaction{
		WalletUserID: userID,
		Amount:       amount,
		Type:         txType,
		BalanceAfter: wallet.Balance,
		Description:  description,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Deduct debits the wallet and appends a negative ledger entry.
// Fails with InsufficientBalanceError before touching anything if the
// locked balance cannot cover the amount. Must run inside a transaction so
// a later failure rolls the debit back too.
func (r *WalletRepository) Deduct(ctx context.Context, userID uint64, amount int, txType, description string) (*db.CoinTransaction, error) {
	wallet, err := r.lockWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if wallet.Balance < amount {
		return nil, &domainErr.InsufficientBalanceError{
			Required: amount,
			Balance:  wallet.Balance,
		}
	}

	wallet.Balance -= amount
	wallet.TotalSpent += amount
	if err := r.db.WithContext(ctx).
		Model(&db.CoinWallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":     wallet.Balance,
			"total_spent": wallet.TotalSpent,
			"updated_at":  time.Now(),
		}).Error; err != nil {
		return nil, err
	}

	entry := db.CoinTransaction{
		WalletUserID: userID,
		Amount:       -amount,
		Type:         txType,
		BalanceAfter: wallet.Balance,
		Description:  description,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// AddPurchased bumps the lifetime purchased counter after a purchase credit.
func (r *WalletRepository) AddPurchased(ctx context.Context, userID uint64, amount int) error {
	return r.db.WithContext(ctx).
		Model(&db.CoinWallet{}).
		Where("user_id = ?", userID).
		Update("total_purchased", gorm.Expr("total_purchased + ?", amount)).Error
}

// LinkMessage points a ledger entry at the message its debit paid for.
func (r *WalletRepository) LinkMessage(ctx context.Context, txID, messageID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.CoinTransaction{}).
		Where("id = ?", txID).
		Update("message_id", messageID).Error
}

// Transactions lists a wallet's ledger entries, newest first, with cursor
// pagination.
func (r *WalletRepository) Transactions(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]db.CoinTransaction, *string, error) {
	cursor, err := pagination.Decode(tokenString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("wallet_user_id = ?", userID).
		Order("id DESC").
		Limit(limit + 1)

	if cursor.ID > 0 {
		query = query.Where("id < ?", cursor.ID)
	}

	var entries []db.CoinTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(entries) > limit {
		last := entries[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{ID: last.ID})
		nextToken = &token
		entries = entries[:limit]
	}

	return entries, nextToken, nil
}

// SumAmounts replays the ledger: the sum of all entry amounts for a wallet.
// Reconciliation checks compare this against the wallet balance.
func (r *WalletRepository) SumAmounts(ctx context.Context, userID uint64) (int, error) {
	var sum *int
	err := r.db.WithContext(ctx).
		Model(&db.CoinTransaction{}).
		Where("wallet_user_id = ?", userID).
		Select("SUM(amount)").
		Scan(&sum).Error
	if err != nil || sum == nil {
		return 0, err
	}
	return *sum, nil
}
