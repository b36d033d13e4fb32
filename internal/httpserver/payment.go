package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/service"
	"github.com/Skotchmaster/kiosk_order/internal/transport"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type PaymentHTTP struct {
	Svc *service.PaymentService
}

// Confirm is called by the kiosk after the Toss widget redirects back with a payment key.
func (h *PaymentHTTP) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.confirm")

	var req transport.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return httpError(l, "confirm_payment", apperr.Wrap(apperr.CodeInvalidInput, err))
	}
	if err := c.Validate(&req); err != nil {
		return httpError(l, "confirm_payment", err)
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return httpError(l, "confirm_payment", apperr.Field(apperr.CodeInvalidInput, "orderId", "must be a uuid"))
	}

	res, err := h.Svc.Confirm(ctx, service.ConfirmInput{PaymentKey: req.PaymentKey, OrderID: orderID, Amount: req.Amount})
	if err != nil {
		return httpError(l, "confirm_payment", err)
	}

	l.Info("confirm_payment_success", "order_id", res.OrderID, "points", res.PointsEarned, "replayed", res.Replayed)
	return c.JSON(http.StatusOK, transport.ConfirmPaymentResponse{
		OrderID:      res.OrderID,
		OrderNo:      res.OrderNo,
		PointsEarned: res.PointsEarned,
	})
}
