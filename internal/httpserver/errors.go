package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/gateway"
	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Code        apperr.Code `json:"code"`
	Message     string      `json:"message"`
	Index       *int        `json:"index,omitempty"`
	Field       string      `json:"field,omitempty"`
	GatewayCode string      `json:"gatewayCode,omitempty"`
}

func statusOf(e *apperr.Error) int {
	switch e.Code {
	case apperr.CodeOrderNotFound:
		return http.StatusNotFound
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotCancelable, apperr.CodeOrderAlreadyPaid, apperr.CodeOrderNotPayable,
		apperr.CodeOrderStateChanged, apperr.CodeInvalidTransition:
		return http.StatusConflict
	case apperr.CodePaymentFailed:
		return http.StatusBadGateway
	case apperr.CodeGatewayUnavailable:
		return http.StatusServiceUnavailable
	}
	switch e.Kind() {
	case apperr.KindValidation, apperr.KindBusiness:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// httpError logs err under op and turns it into the JSON error response.
func httpError(l *slog.Logger, op string, err error) error {
	e := apperr.From(err)
	status := statusOf(e)

	body := errorBody{Code: e.Code, Field: e.Field, Message: e.Reason}
	if e.Index != apperr.NoIndex {
		idx := e.Index
		body.Index = &idx
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		body.GatewayCode = gwErr.Code
		if body.Message == "" {
			body.Message = gwErr.Message
		}
	}
	if e.Kind() == apperr.KindInternal {
		body.Message = "internal error"
	}
	if body.Message == "" {
		body.Message = string(e.Code)
	}

	if status >= http.StatusInternalServerError {
		l.Error(op+"_error", "status", status, "code", e.Code, "error", err)
	} else {
		l.Warn(op+"_error", "status", status, "code", e.Code, "error", err)
	}
	return echo.NewHTTPError(status, body)
}
