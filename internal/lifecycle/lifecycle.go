// Package lifecycle holds the order status state machine.
package lifecycle

import (
	"fmt"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/models"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusWaiting:     {models.StatusPreparing, models.StatusCanceled},
	models.StatusPreparing:   {models.StatusPickupReady},
	models.StatusPickupReady: {models.StatusCompleted},
	models.StatusCompleted:   nil,
	models.StatusCanceled:    nil,
}

func Known(s models.OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

func Terminal(s models.OrderStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cancelable is the customer cancellation rule: only orders nobody has started on.
func Cancelable(s models.OrderStatus) bool {
	return s == models.StatusWaiting
}

// ParseStatus rejects anything outside the five known statuses.
func ParseStatus(raw string) (models.OrderStatus, error) {
	s := models.OrderStatus(raw)
	if !Known(s) {
		return "", apperr.Field(apperr.CodeInvalidStatus, "status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

// Advance validates an admin move. Cancellation has its own path and is refused here.
func Advance(from, to models.OrderStatus) error {
	if !Known(to) {
		return apperr.Field(apperr.CodeInvalidStatus, "status", fmt.Sprintf("unknown status %q", to))
	}
	if to == models.StatusCanceled {
		return apperr.New(apperr.CodeInvalidTransition, "use the cancel operation")
	}
	if !CanTransition(from, to) {
		return apperr.New(apperr.CodeInvalidTransition, fmt.Sprintf("%s -> %s", from, to))
	}
	return nil
}
