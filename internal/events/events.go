// Package events carries order notifications out of the service through a transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	OrderReceived      Type = "order.received"
	OrderStatusChanged Type = "order.status_changed"
	PaymentReconciled  Type = "payment.reconciled"
	OrderCanceled      Type = "order.canceled"
)

type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	OrderID       string    `json:"orderId"`
	OrderNo       string    `json:"orderNo"`
	OrderNumber   int       `json:"orderNumber"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	PrevStatus    string    `json:"prevStatus,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Points        int64     `json:"points,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// ForOrder fills the fields every event shares from the order's current state.
func ForOrder(t Type, o *models.Order) Event {
	ev := Event{
		Type:          t,
		OrderID:       o.ID.String(),
		OrderNo:       o.OrderNo,
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Amount:        o.TotalAmount,
	}
	if o.UserID != nil {
		ev.UserID = o.UserID.String()
	}
	return ev
}

// Emit stores ev in the outbox using tx, so it is published only if tx commits.
func Emit(ctx context.Context, tx *gorm.DB, ev Event) error {
	id := uuid.New()
	ev.ID = id.String()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s: %w", ev.Type, err)
	}

	rec := models.OutboxEvent{
		ID:          id,
		EventType:   string(ev.Type),
		AggregateID: ev.OrderID,
		Payload:     payload,
	}
	if err := tx.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("outbox: insert %s: %w", ev.Type, err)
	}
	return nil
}
