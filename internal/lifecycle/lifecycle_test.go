package lifecycle

import (
	"errors"
	"testing"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    models.OrderStatus
		to      models.OrderStatus
		wantErr error
	}{
		{"waiting to preparing", models.StatusWaiting, models.StatusPreparing, nil},
		{"preparing to pickup", models.StatusPreparing, models.StatusPickupReady, nil},
		{"pickup to completed", models.StatusPickupReady, models.StatusCompleted, nil},
		{"skip a step", models.StatusWaiting, models.StatusCompleted, apperr.ErrInvalidTransition},
		{"backwards", models.StatusPickupReady, models.StatusPreparing, apperr.ErrInvalidTransition},
		{"out of completed", models.StatusCompleted, models.StatusWaiting, apperr.ErrInvalidTransition},
		{"out of canceled", models.StatusCanceled, models.StatusPreparing, apperr.ErrInvalidTransition},
		{"cancel through admin", models.StatusWaiting, models.StatusCanceled, apperr.ErrInvalidTransition},
		{"unknown target", models.StatusWaiting, models.OrderStatus("SERVED"), apperr.ErrInvalidStatus},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Advance(tt.from, tt.to)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestTerminalAndCancelable(t *testing.T) {
	t.Parallel()

	assert.True(t, Terminal(models.StatusCompleted))
	assert.True(t, Terminal(models.StatusCanceled))
	assert.False(t, Terminal(models.StatusWaiting))
	assert.False(t, Terminal(models.OrderStatus("nope")))

	assert.True(t, Cancelable(models.StatusWaiting))
	assert.False(t, Cancelable(models.StatusPreparing))
	assert.True(t, CanTransition(models.StatusWaiting, models.StatusCanceled))
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	s, err := ParseStatus("PICKUP_READY")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickupReady, s)

	_, err = ParseStatus("pickup_ready")
	assert.True(t, errors.Is(err, apperr.ErrInvalidStatus))
}
