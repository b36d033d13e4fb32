package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/service"
	"github.com/Skotchmaster/kiosk_order/internal/transport"
	"github.com/Skotchmaster/kiosk_order/internal/util"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/labstack/echo/v4"
)

type AdminHTTP struct {
	Svc *service.AdminService
}

// ListOrders serves the counter screen: GET /admin/orders?status&date&page&size.
func (h *AdminHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	f, err := listFilter(c)
	if err != nil {
		return httpError(l, "admin_list_orders", err)
	}
	if s := c.QueryParam("date"); s != "" {
		day, ok := util.ParseDay(s)
		if !ok {
			return httpError(l, "admin_list_orders", apperr.Field(apperr.CodeInvalidInput, "date", "expected YYYY-MM-DD"))
		}
		f.Day = day
	}

	orders, err := h.Svc.ListOrders(ctx, f)
	if err != nil {
		return httpError(l, "admin_list_orders", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": transport.ToOrderViews(orders)})
}

func (h *AdminHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_order")

	id, err := orderIDParam(c)
	if err != nil {
		return httpError(l, "admin_get_order", err)
	}
	order, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		return httpError(l, "admin_get_order", err)
	}
	return c.JSON(http.StatusOK, transport.ToOrderView(order))
}

func (h *AdminHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_status")

	id, err := orderIDParam(c)
	if err != nil {
		return httpError(l, "update_status", err)
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return httpError(l, "update_status", apperr.Wrap(apperr.CodeInvalidInput, err))
	}
	if err := c.Validate(&req); err != nil {
		return httpError(l, "update_status", err)
	}

	order, err := h.Svc.Advance(ctx, id, req.Status)
	if err != nil {
		return httpError(l, "update_status", err)
	}

	l.Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return c.JSON(http.StatusOK, transport.ToOrderView(order))
}
