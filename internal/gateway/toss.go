// Package gateway is the client for the external payment gateway (Toss Payments API).
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxCancelReason   = 200
	idempotencyHeader = "Idempotency-Key"
)

type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type Confirmation struct {
	PaymentKey  string     `json:"paymentKey"`
	OrderID     string     `json:"orderId"`
	Method      string     `json:"method"`
	Status      string     `json:"status"`
	TotalAmount int64      `json:"totalAmount"`
	RequestedAt *time.Time `json:"requestedAt"`
	ApprovedAt  *time.Time `json:"approvedAt"`
}

// Gateway is the part of the payment gateway the order pipeline depends on.
// Confirm is safe to retry; Cancel is not assumed to be.
type Gateway interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error)
	Cancel(ctx context.Context, paymentKey, reason, idempotencyKey string) error
}

// Error is a non-success answer from the gateway, or a transport failure when Status is 0.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gateway: %s", e.Message)
	}
	return fmt.Sprintf("gateway: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

type TossClient struct {
	baseURL    string
	authHeader string
	timeout    time.Duration
	httpClient *http.Client
}

func NewTossClient(baseURL, secretKey string, timeout time.Duration) *TossClient {
	return &TossClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
		timeout:    timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *TossClient) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	var out Confirmation
	if err := c.post(ctx, "/v1/payments/confirm", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TossClient) Cancel(ctx context.Context, paymentKey, reason, idempotencyKey string) error {
	body := map[string]string{"cancelReason": truncate(reason, maxCancelReason)}
	path := "/v1/payments/" + url.PathEscape(paymentKey) + "/cancel"
	return c.post(ctx, path, idempotencyKey, body, nil)
}

func (c *TossClient) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "timeout"
		}
		return &Error{Message: msg, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: "read body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &gwErr)
		if gwErr.Message == "" {
			gwErr.Message = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Code: gwErr.Code, Message: gwErr.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
