// Package loyalty awards and reclaims points on the user's balance.
package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("loyalty: user not found")

type Ledger struct {
	rate decimal.Decimal
}

func NewLedger(rate string) (*Ledger, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("point rate %q: %w", rate, err)
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("point rate %s out of range [0,1]", r)
	}
	return &Ledger{rate: r}, nil
}

func MustLedger(rate string) *Ledger {
	l, err := NewLedger(rate)
	if err != nil {
		panic(err)
	}
	return l
}

// Earned is floor(amount * rate), computed in decimal so 0.1 stays exact.
func (l *Ledger) Earned(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(l.rate).Floor().IntPart()
}

// Clawback never takes more than the user still holds.
func Clawback(earned, balance int64) int64 {
	if earned <= 0 || balance <= 0 {
		return 0
	}
	return min(earned, balance)
}

// Award adds points inside tx. The user row is locked so a concurrent reclaim cannot lose the update.
func (l *Ledger) Award(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int64) error {
	if points <= 0 {
		return nil
	}
	if _, err := lockUser(ctx, tx, userID); err != nil {
		return err
	}
	res := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("point", gorm.Expr("point + ?", points))
	if res.Error != nil {
		return fmt.Errorf("award points: %w", res.Error)
	}
	return nil
}

// Reclaim takes back up to earned points inside tx and returns how many were taken.
func (l *Ledger) Reclaim(ctx context.Context, tx *gorm.DB, userID uuid.UUID, earned int64) (int64, error) {
	if earned <= 0 {
		return 0, nil
	}
	u, err := lockUser(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	taken := Clawback(earned, u.Point)
	if taken == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND point >= ?", userID, taken).
		Update("point", gorm.Expr("point - ?", taken))
	if res.Error != nil {
		return 0, fmt.Errorf("reclaim points: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("reclaim points: balance changed under lock")
	}
	return taken, nil
}

func (l *Ledger) Balance(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	var u models.User
	err := db.WithContext(ctx).Select("id", "point").Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return u.Point, nil
}

func lockUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var u models.User
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &u, nil
}
