package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxErrLen = 500

// Publisher hands one serialized event to a broker.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
}

type Relay struct {
	DB      *gorm.DB
	Pub     Publisher
	Batch   int
	Poll    time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Run relays pending events until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	poll := r.Poll
	if poll <= 0 {
		poll = time.Second
	}
	t := time.NewTicker(poll)
	defer t.Stop()

	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger().Error("outbox_relay_error", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events were delivered.
// Rows are claimed with SKIP LOCKED so several replicas can relay side by side.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 50
	}

	sent := 0
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.OutboxEvent
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("sent_at IS NULL").
			Order("created_at ASC").
			Limit(batch).
			Find(&pending).Error; err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}

		for i := range pending {
			ev := &pending[i]
			if pubErr := r.Pub.Publish(ctx, ev.EventType, ev.AggregateID, ev.Payload); pubErr != nil {
				r.count("error")
				r.logger().Warn("outbox_publish_error", "event_id", ev.ID, "type", ev.EventType, "attempts", ev.Attempts+1, "error", pubErr)
				if err := tx.Model(ev).Updates(map[string]any{
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": truncate(pubErr.Error(), maxErrLen),
				}).Error; err != nil {
					return fmt.Errorf("record failure: %w", err)
				}
				continue
			}

			now := time.Now().UTC()
			if err := tx.Model(ev).Update("sent_at", now).Error; err != nil {
				return fmt.Errorf("mark sent: %w", err)
			}
			r.count("sent")
			sent++
		}
		return nil
	})
	return sent, err
}

func (r *Relay) count(result string) {
	if r.Metrics != nil {
		r.Metrics.OutboxRelayed.WithLabelValues(result).Inc()
	}
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Discard drops events; used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, []byte) error { return nil }
