package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/events"
	"github.com/Skotchmaster/kiosk_order/internal/gateway"
	"github.com/Skotchmaster/kiosk_order/internal/loyalty"
	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	compensationReason  = "system: payment could not be recorded, automatic cancel"
	compensationTimeout = 15 * time.Second
)

// PaymentService is the payment reconciler. It alone moves an order from PENDING to PAID.
type PaymentService struct {
	Repo    *repo.GormRepo
	Gateway gateway.Gateway
	Ledger  *loyalty.Ledger
	Metrics *metrics.Metrics
}

type ConfirmInput struct {
	PaymentKey string
	OrderID    uuid.UUID
	Amount     int64
}

type ConfirmResult struct {
	OrderID      uuid.UUID
	OrderNo      string
	PointsEarned int64
	Replayed     bool
}

// Confirm reconciles a gateway payment with the order. The gateway is called before any
// local write; if the local write then fails, the gateway payment is canceled again.
func (s *PaymentService) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	l := logging.FromContext(ctx).With("op", "payment.confirm", "order_id", in.OrderID)

	if in.PaymentKey == "" {
		return nil, apperr.Field(apperr.CodeInvalidInput, "paymentKey", "required")
	}
	if in.Amount < 1 {
		return nil, apperr.Field(apperr.CodeInvalidInput, "amount", "must be a positive integer")
	}
	if s.Gateway == nil {
		return nil, apperr.New(apperr.CodeGatewayUnavailable, "payment gateway is not configured")
	}

	order, err := s.Repo.GetOrder(ctx, in.OrderID, false)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod.SettledInStore() {
		s.result("rejected")
		return nil, apperr.New(apperr.CodeOrderNotPayable, "order is paid at the counter")
	}
	if replay, ok := replayed(order, in.PaymentKey); ok {
		s.result("replayed")
		return replay, nil
	}
	if err := payable(order); err != nil {
		s.result("rejected")
		return nil, err
	}
	if in.Amount != order.TotalAmount {
		s.result("rejected")
		return nil, apperr.New(apperr.CodeAmountMismatch, fmt.Sprintf("order total %d, confirmed %d", order.TotalAmount, in.Amount))
	}

	conf, err := s.Gateway.Confirm(ctx, gateway.ConfirmRequest{
		PaymentKey: in.PaymentKey,
		OrderID:    order.ID.String(),
		Amount:     in.Amount,
	})
	if err != nil {
		s.result("gateway_failed")
		l.Warn("gateway_confirm_failed", "error", err)
		return nil, gatewayFailure(err)
	}

	var (
		result  *ConfirmResult
		already bool
	)
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.Repo.LockOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		// a concurrent confirm with the same key won the race; nothing left to do
		if r, ok := replayed(locked, in.PaymentKey); ok {
			result, already = r, true
			return nil
		}
		if err := payable(locked); err != nil {
			return apperr.New(apperr.CodeOrderStateChanged, err.Error())
		}

		points, err := s.award(ctx, tx, locked)
		if err != nil {
			return err
		}
		key := in.PaymentKey
		if err := s.Repo.MarkPaid(ctx, tx, locked, &key, points); err != nil {
			return err
		}
		if err := s.Repo.UpsertPayment(ctx, tx, paymentRecord(locked.ID, in, conf)); err != nil {
			return err
		}

		ev := events.ForOrder(events.PaymentReconciled, locked)
		ev.Points = points
		if err := events.Emit(ctx, tx, ev); err != nil {
			return err
		}

		result = &ConfirmResult{OrderID: locked.ID, OrderNo: locked.OrderNo, PointsEarned: points}
		return nil
	})
	if err == nil {
		if already {
			s.result("replayed")
		} else {
			s.result("paid")
			l.Info("payment_confirmed", "points", result.PointsEarned)
		}
		return result, nil
	}

	s.result("persist_failed")
	l.Error("payment_persist_failed", "error", err)
	s.compensate(ctx, order, in.PaymentKey)

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind() == apperr.KindBusiness {
		return nil, err
	}
	return nil, apperr.Internal(fmt.Errorf("record payment: %w", err))
}

// compensate cancels a payment the gateway accepted but we failed to record. One attempt;
// a failure is logged for manual follow-up and never replaces the original error.
func (s *PaymentService) compensate(ctx context.Context, order *models.Order, paymentKey string) {
	l := logging.FromContext(ctx).With("op", "payment.compensate", "order_id", order.ID)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.Gateway.Cancel(cctx, paymentKey, compensationReason, order.ID.String()+":compensate"); err != nil {
		s.Metrics.Compensations.WithLabelValues("failed").Inc()
		l.Error("compensation_failed", "payment_key", paymentKey, "error", err)
		return
	}
	s.Metrics.Compensations.WithLabelValues("ok").Inc()
	l.Warn("compensation_succeeded", "payment_key", paymentKey)
}

// SettleInStore marks a counter-paid order (cash, card terminal, ...) as PAID and awards points.
// It runs in the transaction that writes the order, so the order commits paid or not at all.
func (s *PaymentService) SettleInStore(ctx context.Context, tx *gorm.DB, o *models.Order) (int64, error) {
	if !o.PaymentMethod.SettledInStore() {
		return 0, apperr.New(apperr.CodeOrderNotPayable, "gateway orders are settled by confirm")
	}
	if err := payable(o); err != nil {
		return 0, err
	}

	points, err := s.award(ctx, tx, o)
	if err != nil {
		return 0, err
	}
	if err := s.Repo.MarkPaid(ctx, tx, o, nil, points); err != nil {
		return 0, err
	}

	ev := events.ForOrder(events.PaymentReconciled, o)
	ev.Points = points
	if err := events.Emit(ctx, tx, ev); err != nil {
		return 0, err
	}
	return points, nil
}

// award credits floor(total × rate) to the order's user. Guests earn nothing, and a user
// unknown to the users table is skipped rather than failing a payment the gateway accepted.
func (s *PaymentService) award(ctx context.Context, tx *gorm.DB, o *models.Order) (int64, error) {
	if o.UserID == nil {
		return 0, nil
	}
	points := s.Ledger.Earned(o.TotalAmount)
	err := s.Ledger.Award(ctx, tx, *o.UserID, points)
	if errors.Is(err, loyalty.ErrUserNotFound) {
		logging.FromContext(ctx).Warn("points_skipped", "order_id", o.ID, "user_id", *o.UserID, "reason", "user not found")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return points, nil
}

func (s *PaymentService) result(r string) {
	s.Metrics.Confirmations.WithLabelValues(r).Inc()
}

// replayed reports an order already paid with this exact key: the earlier confirm stands.
func replayed(o *models.Order, paymentKey string) (*ConfirmResult, bool) {
	if o.PaymentStatus == models.PaymentPaid && o.GatewayPaymentKey != nil && *o.GatewayPaymentKey == paymentKey {
		return &ConfirmResult{OrderID: o.ID, OrderNo: o.OrderNo, Replayed: true}, true
	}
	return nil, false
}

func payable(o *models.Order) error {
	if o.PaymentStatus != models.PaymentPending {
		return apperr.New(apperr.CodeOrderAlreadyPaid, string(o.PaymentStatus))
	}
	if o.Status == models.StatusCanceled {
		return apperr.New(apperr.CodeOrderNotPayable, "order canceled")
	}
	return nil
}

func paymentRecord(orderID uuid.UUID, in ConfirmInput, conf *gateway.Confirmation) *models.Payment {
	p := &models.Payment{
		PaymentKey:  in.PaymentKey,
		OrderID:     orderID,
		TotalAmount: in.Amount,
	}
	if conf != nil {
		p.Method = conf.Method
		p.Status = conf.Status
		p.RequestedAt = conf.RequestedAt
		p.ApprovedAt = conf.ApprovedAt
		if conf.TotalAmount > 0 {
			p.TotalAmount = conf.TotalAmount
		}
	}
	return p
}

func gatewayFailure(err error) error {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return &apperr.Error{Code: apperr.CodePaymentFailed, Index: apperr.NoIndex, Reason: gwErr.Message, Err: err}
	}
	return apperr.Wrap(apperr.CodePaymentFailed, err)
}
