package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/events"
	"github.com/Skotchmaster/kiosk_order/internal/gateway"
	"github.com/Skotchmaster/kiosk_order/internal/lifecycle"
	"github.com/Skotchmaster/kiosk_order/internal/loyalty"
	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const customerCancelReason = "customer canceled the order"

// CancelService is the cancellation coordinator: gateway reversal, point clawback and the
// move to CANCELED.
type CancelService struct {
	Repo    *repo.GormRepo
	Gateway gateway.Gateway
	Ledger  *loyalty.Ledger
	Metrics *metrics.Metrics
}

func (s *CancelService) Cancel(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("op", "order.cancel", "order_id", orderID)

	order, err := s.Repo.GetOrder(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(requester) {
		return nil, apperr.New(apperr.CodeOrderNotFound, "")
	}
	if !lifecycle.Cancelable(order.Status) {
		s.result("rejected")
		return nil, apperr.New(apperr.CodeNotCancelable, string(order.Status))
	}

	reversed := false
	if order.PaymentStatus == models.PaymentPaid && order.GatewayPaymentKey != nil {
		if s.Gateway == nil {
			return nil, apperr.New(apperr.CodeGatewayUnavailable, "payment gateway is not configured")
		}
		if err := s.Gateway.Cancel(ctx, *order.GatewayPaymentKey, customerCancelReason, order.ID.String()+":cancel"); err != nil {
			s.result("gateway_failed")
			l.Warn("gateway_cancel_failed", "error", err)
			return nil, gatewayFailure(err)
		}
		reversed = true
	}

	var canceled *models.Order
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.Repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := recheck(order, locked, reversed); err != nil {
			return err
		}
		if locked.Status != models.StatusWaiting {
			l.Warn("cancel_after_advance", "status", locked.Status, "reason", "payment already reversed at gateway")
		}

		wasPaid := locked.PaymentStatus == models.PaymentPaid
		var reclaimed int64
		if wasPaid && locked.UserID != nil {
			reclaimed, err = s.Ledger.Reclaim(ctx, tx, *locked.UserID, locked.PointsEarned)
			if errors.Is(err, loyalty.ErrUserNotFound) {
				reclaimed, err = 0, nil
			}
			if err != nil {
				return err
			}
		}

		prev := locked.Status
		if err := s.Repo.MarkCanceled(ctx, tx, locked, wasPaid, reclaimed); err != nil {
			return err
		}

		ev := events.ForOrder(events.OrderCanceled, locked)
		ev.PrevStatus = string(prev)
		ev.Points = reclaimed
		if err := events.Emit(ctx, tx, ev); err != nil {
			return err
		}
		canceled = locked
		return nil
	})
	if err != nil {
		if reversed {
			// money is back with the customer but the order still reads PAID
			s.result("reversal_unrecorded")
			l.Error("cancel_persist_failed_after_reversal", "payment_key", *order.GatewayPaymentKey, "error", err)
		} else {
			s.result("failed")
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Internal(fmt.Errorf("cancel order: %w", err))
	}

	s.result("canceled")
	l.Info("order_canceled", "refunded", reversed, "points_reclaimed", canceled.PointsReclaimed)
	return canceled, nil
}

// recheck compares the locked row with what the cancel decision was based on.
func recheck(seen, locked *models.Order, reversed bool) error {
	if locked.Status == models.StatusCanceled {
		return apperr.New(apperr.CodeNotCancelable, string(locked.Status))
	}
	if locked.PaymentStatus != seen.PaymentStatus {
		return apperr.New(apperr.CodeOrderStateChanged, fmt.Sprintf(
			"payment status moved from %s to %s; retry the cancel to refund the payment", seen.PaymentStatus, locked.PaymentStatus))
	}
	if reversed {
		// the refund already happened; record it unless the order is finished
		if lifecycle.Terminal(locked.Status) {
			return apperr.New(apperr.CodeOrderStateChanged, string(locked.Status))
		}
		return nil
	}
	if !lifecycle.Cancelable(locked.Status) {
		return apperr.New(apperr.CodeNotCancelable, string(locked.Status))
	}
	return nil
}

func (s *CancelService) result(r string) {
	s.Metrics.Cancellations.WithLabelValues(r).Inc()
}
