package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// GetCredits returns the mirrored ledger row for userID or ErrNotFound.
func GetCredits(ctx context.Context, db *gorm.DB, userID string) (*domain.CreditLedger, error) {
	var c domain.CreditLedger
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddLedgerCredits adds amount to the mirrored balance, creating the row when
// it does not exist yet.
func AddLedgerCredits(ctx context.Context, db *gorm.DB, userID string, amount int) error {
	return db.WithContext(ctx).Exec(`
INSERT INTO credits (user_id, balance, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  balance = credits.balance + excluded.balance,
  updated_at = excluded.updated_at`,
		userID, amount, time.Now().UTC()).Error
}

// DecrementLedgerCredits subtracts amount when the mirrored balance covers it
// and reports whether the row changed.
func DecrementLedgerCredits(ctx context.Context, db *gorm.DB, userID string, amount int) (bool, error) {
	res := db.WithContext(ctx).Exec(`
UPDATE credits
   SET balance = balance - ?, updated_at = ?
 WHERE user_id = ? AND balance >= ?`,
		amount, time.Now().UTC(), userID, amount)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetLedgerBalance overwrites the mirrored balance. It is only used to repair
// a mirror that drifted from the entitlement row.
func SetLedgerBalance(ctx context.Context, db *gorm.DB, userID string, balance int) error {
	return db.WithContext(ctx).Exec(`
INSERT INTO credits (user_id, balance, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  balance = excluded.balance,
  updated_at = excluded.updated_at`,
		userID, balance, time.Now().UTC()).Error
}

// LedgerPair is one user's balance as seen by both stores.
type LedgerPair struct {
	UserID            string
	ConsumableBalance int
	LedgerBalance     *int
}

// ListLedgerPairs joins entitlement balances with their mirror rows, ordered
// by user, starting after the given cursor. A nil LedgerBalance means the
// mirror row is missing.
func ListLedgerPairs(ctx context.Context, db *gorm.DB, afterUserID string, limit int) ([]LedgerPair, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []LedgerPair
	err := db.WithContext(ctx).
		Table("entitlements AS e").
		Select("e.user_id AS user_id, e.consumable_balance AS consumable_balance, c.balance AS ledger_balance").
		Joins("LEFT JOIN credits AS c ON c.user_id = e.user_id").
		Where("e.user_id > ?", afterUserID).
		Order("e.user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
