package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextOrderNumber bumps the day's counter inside tx. The UPDATE holds the row lock until
// tx ends, so concurrent writers for the same day queue up behind it. The first order of
// a day inserts the row; losing that race surfaces gorm.ErrDuplicatedKey and the caller
// restarts the transaction.
func (r *GormRepo) NextOrderNumber(ctx context.Context, tx *gorm.DB, day string) (int, error) {
	res := tx.WithContext(ctx).Model(&models.DailyCounter{}).
		Where("day = ?", day).
		Update("last_number", gorm.Expr("last_number + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("bump counter: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		c := models.DailyCounter{Day: day, LastNumber: 1}
		if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
			return 0, fmt.Errorf("start counter: %w", err)
		}
		return 1, nil
	}

	var c models.DailyCounter
	if err := tx.WithContext(ctx).Where("day = ?", day).First(&c).Error; err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return c.LastNumber, nil
}

func OrderNo(day string, number int) string {
	return fmt.Sprintf("%s-%03d", day, number)
}

// InsertOrder creates the order with its items and their options in one go.
func (r *GormRepo) InsertOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if err := tx.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID, withItems bool) (*models.Order, error) {
	q := r.DB.WithContext(ctx)
	if withItems {
		q = q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).Preload("Items.Options")
	}

	var o models.Order
	if err := q.Where("id = ?", id).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// LockOrder reads the order with FOR UPDATE; every state change re-checks through it.
func (r *GormRepo) LockOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// MarkPaid flips PENDING to PAID. The WHERE guard makes a lost race visible as zero rows.
func (r *GormRepo) MarkPaid(ctx context.Context, tx *gorm.DB, o *models.Order, paymentKey *string, points int64) error {
	res := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", o.ID, models.PaymentPending).
		Updates(map[string]any{
			"payment_status":      models.PaymentPaid,
			"gateway_payment_key": paymentKey,
			"points_earned":       points,
		})
	if res.Error != nil {
		return fmt.Errorf("mark paid: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.New(apperr.CodeOrderStateChanged, "payment status moved during confirm")
	}
	o.PaymentStatus = models.PaymentPaid
	o.GatewayPaymentKey = paymentKey
	o.PointsEarned = points
	return nil
}

// UpsertPayment records a gateway confirmation; a second confirmation of the same key updates the row.
func (r *GormRepo) UpsertPayment(ctx context.Context, tx *gorm.DB, p *models.Payment) error {
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"order_id", "method", "status", "total_amount", "requested_at", "approved_at", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (r *GormRepo) MarkCanceled(ctx context.Context, tx *gorm.DB, o *models.Order, refunded bool, reclaimed int64) error {
	updates := map[string]any{
		"status":           models.StatusCanceled,
		"points_reclaimed": reclaimed,
	}
	if refunded {
		updates["payment_status"] = models.PaymentRefunded
	}

	res := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", o.ID, o.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark canceled: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.New(apperr.CodeOrderStateChanged, "status moved during cancel")
	}

	o.Status = models.StatusCanceled
	o.PointsReclaimed = reclaimed
	if refunded {
		o.PaymentStatus = models.PaymentRefunded
	}
	return nil
}

func (r *GormRepo) SetStatus(ctx context.Context, tx *gorm.DB, o *models.Order, to models.OrderStatus) error {
	res := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", o.ID, o.Status).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("set status: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.New(apperr.CodeOrderStateChanged, "status moved concurrently")
	}
	o.Status = to
	return nil
}

type ListFilter struct {
	UserID *uuid.UUID
	Status models.OrderStatus
	Day    string
	// FromDay and ToDay bound order_date inclusively, both YYYYMMDD.
	FromDay string
	ToDay   string
	Limit   int
	Offset  int
}

func (r *GormRepo) ListOrders(ctx context.Context, f ListFilter) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Day != "" {
		q = q.Where("order_date = ?", f.Day)
	}
	if f.FromDay != "" {
		q = q.Where("order_date >= ?", f.FromDay)
	}
	if f.ToDay != "" {
		q = q.Where("order_date <= ?", f.ToDay)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.CodeOrderNotFound, err)
	}
	return err
}
