package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/lifecycle"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/pricing"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/internal/service"
	"github.com/Skotchmaster/kiosk_order/internal/transport"
	"github.com/Skotchmaster/kiosk_order/internal/util"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Orders  *service.OrderService
	Cancels *service.CancelService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := requester(c)
	if err != nil {
		return err
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return httpError(l, "create_order", apperr.Wrap(apperr.CodeInvalidInput, err))
	}
	if err := c.Validate(&req); err != nil {
		return httpError(l, "create_order", err)
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, pricing.Line{ProductID: it.ProductID, Quantity: it.Quantity, OptionIDs: it.OptionIDs})
	}

	res, err := h.Orders.CreateOrder(ctx, service.CreateOrderInput{
		UserID:        userID,
		TotalPrice:    req.TotalPrice,
		OrderType:     models.OrderType(req.OrderType),
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Lines:         lines,
	})
	if err != nil {
		return httpError(l, "create_order", err)
	}

	l.Info("create_order_success", "order_id", res.OrderID, "order_no", res.OrderNo)
	return c.JSON(http.StatusCreated, transport.CreateOrderResponse{
		OrderID:       res.OrderID,
		OrderNo:       res.OrderNo,
		OrderNumber:   res.OrderNumber,
		PaymentStatus: string(res.PaymentStatus),
		PointsEarned:  res.PointsEarned,
	})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, err := requester(c)
	if err != nil {
		return err
	}
	id, err := orderIDParam(c)
	if err != nil {
		return httpError(l, "get_order", err)
	}

	order, err := h.Orders.GetOrder(ctx, id, userID)
	if err != nil {
		return httpError(l, "get_order", err)
	}
	return c.JSON(http.StatusOK, transport.ToOrderView(order))
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, err := requester(c)
	if err != nil {
		return err
	}
	id, err := orderIDParam(c)
	if err != nil {
		return httpError(l, "cancel_order", err)
	}

	order, err := h.Cancels.Cancel(ctx, id, userID)
	if err != nil {
		return httpError(l, "cancel_order", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID, "payment_status", order.PaymentStatus)
	return c.JSON(http.StatusOK, transport.ToOrderView(order))
}

// ListMyOrders serves GET /user/orders?status&from&to&page&size; from and to are order days, both inclusive.
func (h *OrderHTTP) ListMyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_my_orders")

	userID, err := mustRequester(c)
	if err != nil {
		return err
	}

	f, err := listFilter(c)
	if err != nil {
		return httpError(l, "list_my_orders", err)
	}
	if s := c.QueryParam("from"); s != "" {
		day, ok := util.ParseDay(s)
		if !ok {
			return httpError(l, "list_my_orders", apperr.Field(apperr.CodeInvalidInput, "from", "expected YYYY-MM-DD"))
		}
		f.FromDay = day
	}
	if s := c.QueryParam("to"); s != "" {
		day, ok := util.ParseDay(s)
		if !ok {
			return httpError(l, "list_my_orders", apperr.Field(apperr.CodeInvalidInput, "to", "expected YYYY-MM-DD"))
		}
		f.ToDay = day
	}

	orders, err := h.Orders.ListUserOrders(ctx, userID, f)
	if err != nil {
		return httpError(l, "list_my_orders", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": transport.ToOrderViews(orders)})
}

func (h *OrderHTTP) MyPoints(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.my_points")

	userID, err := mustRequester(c)
	if err != nil {
		return err
	}
	points, err := h.Orders.Points(ctx, userID)
	if err != nil {
		return httpError(l, "my_points", err)
	}
	return c.JSON(http.StatusOK, transport.PointsResponse{Points: points})
}

func listFilter(c echo.Context) (repo.ListFilter, error) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	f := repo.ListFilter{Limit: limit, Offset: offset}
	if s := c.QueryParam("status"); s != "" {
		status, err := lifecycle.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	return f, nil
}

func orderIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Field(apperr.CodeInvalidInput, "id", "must be a uuid")
	}
	return id, nil
}
