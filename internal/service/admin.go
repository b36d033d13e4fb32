package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/events"
	"github.com/Skotchmaster/kiosk_order/internal/lifecycle"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService moves orders forward through preparation; cancellation goes through CancelService.
type AdminService struct {
	Repo *repo.GormRepo
}

func (s *AdminService) Advance(ctx context.Context, orderID uuid.UUID, rawStatus string) (*models.Order, error) {
	to, err := lifecycle.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.Repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := lifecycle.Advance(locked.Status, to); err != nil {
			return err
		}

		prev := locked.Status
		if err := s.Repo.SetStatus(ctx, tx, locked, to); err != nil {
			return err
		}

		ev := events.ForOrder(events.OrderStatusChanged, locked)
		ev.PrevStatus = string(prev)
		if err := events.Emit(ctx, tx, ev); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Internal(fmt.Errorf("advance order: %w", err))
	}

	logging.FromContext(ctx).Info("order_status_changed", "order_id", order.ID, "status", order.Status)
	return order, nil
}

func (s *AdminService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.Repo.GetOrder(ctx, id, true)
}

func (s *AdminService) ListOrders(ctx context.Context, f repo.ListFilter) ([]models.Order, error) {
	return s.Repo.ListOrders(ctx, f)
}
