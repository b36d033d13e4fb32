package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/catalog"
	"github.com/Skotchmaster/kiosk_order/internal/events"
	"github.com/Skotchmaster/kiosk_order/internal/loyalty"
	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/pricing"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Clock struct {
	Now func() time.Time
	Loc *time.Location
}

// Day is the local calendar day used for order numbering, as YYYYMMDD.
func (c Clock) Day() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Loc
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).Format("20060102")
}

type OrderService struct {
	Repo     *repo.GormRepo
	Payments *PaymentService
	Ledger   *loyalty.Ledger
	Clock    Clock
	Metrics  *metrics.Metrics
}

type CreateOrderInput struct {
	UserID        *uuid.UUID
	TotalPrice    int64
	OrderType     models.OrderType
	PaymentMethod models.PaymentMethod
	Lines         []pricing.Line
}

type CreateOrderResult struct {
	OrderID       uuid.UUID
	OrderNo       string
	OrderNumber   int
	PaymentStatus models.PaymentStatus
	PointsEarned  int64
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	l := logging.FromContext(ctx).With("op", "order.create")

	order, points, err := s.writeOrder(ctx, in)
	if err != nil {
		s.Metrics.OrderRejections.WithLabelValues(string(apperr.From(err).Code)).Inc()
		return nil, err
	}
	s.Metrics.OrdersCreated.Inc()
	if order.PaymentStatus == models.PaymentPaid {
		s.Payments.result("paid_in_store")
	}
	l.Info("order_written", "order_id", order.ID, "order_no", order.OrderNo, "total", order.TotalAmount, "payment_status", order.PaymentStatus)

	return &CreateOrderResult{
		OrderID:       order.ID,
		OrderNo:       order.OrderNo,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		PointsEarned:  points,
	}, nil
}

// writeOrder prices and persists the order in one transaction. Catalog rows are read
// through tx, so a product going away mid-flight aborts the whole write. Counter-paid
// orders are settled in the same transaction.
func (s *OrderService) writeOrder(ctx context.Context, in CreateOrderInput) (*models.Order, int64, error) {
	if !in.OrderType.Valid() {
		return nil, 0, apperr.Field(apperr.CodeInvalidOrderType, "orderType", string(in.OrderType))
	}
	if !in.PaymentMethod.Valid() {
		return nil, 0, apperr.Field(apperr.CodeInvalidPaymentMethod, "paymentMethod", string(in.PaymentMethod))
	}
	if err := pricing.CheckShape(in.Lines, in.TotalPrice); err != nil {
		return nil, 0, err
	}

	var (
		order  *models.Order
		points int64
	)
	err := s.Repo.InTxRetryConflicts(ctx, func(tx *gorm.DB) error {
		cat := &catalog.GormCatalog{DB: tx}
		snap, err := cat.Snapshot(ctx, pricing.ProductIDs(in.Lines), pricing.OptionIDs(in.Lines))
		if err != nil {
			return err
		}
		quote, err := pricing.Verify(snap, in.Lines, in.TotalPrice)
		if err != nil {
			return err
		}

		day := s.Clock.Day()
		number, err := s.Repo.NextOrderNumber(ctx, tx, day)
		if err != nil {
			return err
		}

		order = buildOrder(in, quote, day, number)
		if err := s.Repo.InsertOrder(ctx, tx, order); err != nil {
			return err
		}
		if err := events.Emit(ctx, tx, events.ForOrder(events.OrderReceived, order)); err != nil {
			return err
		}

		if !in.PaymentMethod.SettledInStore() {
			return nil
		}
		points, err = s.Payments.SettleInStore(ctx, tx, order)
		return err
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, 0, err
		}
		return nil, 0, apperr.Internal(fmt.Errorf("write order: %w", err))
	}
	return order, points, nil
}

func buildOrder(in CreateOrderInput, q *pricing.Quote, day string, number int) *models.Order {
	items := make([]models.OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		opts := make([]models.OrderItemOption, 0, len(l.Options))
		for _, o := range l.Options {
			opts = append(opts, models.OrderItemOption{OptionID: o.OptionID, OptionName: o.Name, ExtraPrice: o.ExtraPrice})
		}
		items = append(items, models.OrderItem{
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			LineTotalAmount: l.LineTotal,
			Options:         opts,
		})
	}

	return &models.Order{
		OrderNo:       repo.OrderNo(day, number),
		OrderDate:     day,
		OrderNumber:   number,
		Status:        models.StatusWaiting,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: in.PaymentMethod,
		OrderType:     in.OrderType,
		TotalAmount:   q.Total,
		UserID:        in.UserID,
		Items:         items,
	}
}

// GetOrder hides other users' orders behind not-found. Guest orders are readable by id.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID, requester *uuid.UUID) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !o.OwnedBy(requester) {
		return nil, apperr.New(apperr.CodeOrderNotFound, "")
	}
	return o, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, f repo.ListFilter) ([]models.Order, error) {
	f.UserID = &userID
	return s.Repo.ListOrders(ctx, f)
}

func (s *OrderService) Points(ctx context.Context, userID uuid.UUID) (int64, error) {
	bal, err := s.Ledger.Balance(ctx, s.Repo.DB, userID)
	if errors.Is(err, loyalty.ErrUserNotFound) {
		return 0, nil
	}
	return bal, err
}
