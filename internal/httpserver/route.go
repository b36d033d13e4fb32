package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/pkg/authclient"
	middleware "github.com/Skotchmaster/kiosk_order/pkg/middleware/auth"
	"github.com/Skotchmaster/kiosk_order/pkg/middleware/csrf"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	OrderHandler    *OrderHTTP
	PaymentHandler  *PaymentHTTP
	AdminHandler    *AdminHTTP
	Metrics         *metrics.Metrics
	Ready           func(ctx context.Context) error
	JWTSecret       []byte
	AuthClient      *authclient.Client
	// InsecureCookies drops the Secure flag on refreshed session cookies.
	InsecureCookies bool
	// CSRF guards cookie-authenticated writes; nil leaves them unchecked.
	CSRF            *csrf.Config
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = NewValidator()
	if d.CSRF != nil {
		e.Use(csrf.Middleware(*d.CSRF))
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)
	authMW.Cookies.Secure = !d.InsecureCookies

	orders := e.Group("/orders", authMW.OptionalAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	payments := e.Group("/payments", authMW.OptionalAuth)
	payments.POST("/confirm", d.PaymentHandler.Confirm)

	user := e.Group("/user", authMW.RequireAuth)
	user.GET("/orders", d.OrderHandler.ListMyOrders)
	user.GET("/me/points", d.OrderHandler.MyPoints)

	admin := e.Group("/admin", authMW.RequireAdmin)
	admin.GET("/orders", d.AdminHandler.ListOrders)
	admin.GET("/orders/:id", d.AdminHandler.GetOrder)
	admin.PATCH("/orders/:id", d.AdminHandler.UpdateStatus)
}
