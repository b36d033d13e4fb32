package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/gateway"
	"github.com/Skotchmaster/kiosk_order/internal/loyalty"
	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/internal/service"
	pkgdb "github.com/Skotchmaster/kiosk_order/pkg/db"
	"github.com/Skotchmaster/kiosk_order/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var jwtSecret = []byte("test-jwt-secret")

type testServer struct {
	e       *echo.Echo
	db      *gorm.DB
	cancels atomic.Int32
}

// newTestServer wires the real services against sqlite and a stub Toss API.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{}
	toss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/cancel") {
			ts.cancels.Add(1)
			_, _ = w.Write([]byte(`{"status":"CANCELED"}`))
			return
		}
		var req gateway.ConfirmRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PaymentKey == "pk_declined" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"REJECT_CARD_COMPANY","message":"card declined"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"paymentKey": req.PaymentKey, "orderId": req.OrderID, "method": "CARD", "status": "DONE", "totalAmount": req.Amount,
		})
	}))
	t.Cleanup(toss.Close)

	db, err := pkgdb.OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.Owned()...))
	require.NoError(t, db.AutoMigrate(models.External()...))
	require.NoError(t, db.Create(&[]models.Product{
		{ID: 1, Name: "Americano", BasePrice: 4500, IsAvailable: true},
		{ID: 5, Name: "Brunch set", BasePrice: 12000, IsAvailable: true},
	}).Error)
	ts.db = db

	r := &repo.GormRepo{DB: db}
	gw := gateway.NewTossClient(toss.URL, "test_sk", 2*time.Second)
	ledger := loyalty.MustLedger("0.1")
	m := metrics.Nop()
	seoul := time.FixedZone("KST", 9*60*60)
	now := func() time.Time { return time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC) }

	payments := &service.PaymentService{Repo: r, Gateway: gw, Ledger: ledger, Metrics: m}
	orders := &service.OrderService{Repo: r, Payments: payments, Ledger: ledger, Clock: service.Clock{Now: now, Loc: seoul}, Metrics: m}
	cancels := &service.CancelService{Repo: r, Gateway: gw, Ledger: ledger, Metrics: m}

	ts.e = echo.New()
	Register(ts.e, &Deps{
		OrderHandler:   &OrderHTTP{Orders: orders, Cancels: cancels},
		PaymentHandler: &PaymentHTTP{Svc: payments},
		AdminHandler:   &AdminHTTP{Svc: &service.AdminService{Repo: r}},
		Metrics:        m,
		Ready:          r.Ping,
		JWTSecret:      jwtSecret,
	})
	return ts
}

func (ts *testServer) user(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	u := models.User{ID: uuid.New()}
	require.NoError(t, ts.db.Create(&u).Error)
	tok, err := tokens.SignAccessToken(u.ID.String(), "user", time.Now().Add(time.Hour), jwtSecret)
	require.NoError(t, err)
	return u.ID, tok
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(uuid.NewString(), tokens.RoleAdmin, time.Now().Add(time.Hour), jwtSecret)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errResp struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Index       *int   `json:"index"`
	Field       string `json:"field"`
	GatewayCode string `json:"gatewayCode"`
}

func brunch(method string) map[string]any {
	return map[string]any{
		"totalPrice":    12000,
		"orderType":     "DINE_IN",
		"paymentMethod": method,
		"items":         []map[string]any{{"productId": 5, "quantity": 1}},
	}
}

func (ts *testServer) createBrunch(t *testing.T, token string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/orders", token, brunch("TOSS"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["orderId"].(string)
}

func TestCreateOrderHTTP(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/orders", "", brunch("TOSS"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "20240501-001", body["orderNo"])
	assert.EqualValues(t, 1, body["orderNumber"])
	assert.Equal(t, "PENDING", body["paymentStatus"])

	t.Run("total mismatch", func(t *testing.T) {
		req := brunch("TOSS")
		req["totalPrice"] = 11000
		rec := ts.do(t, http.MethodPost, "/orders", "", req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "total_mismatch", decode[errResp](t, rec).Code)
	})

	t.Run("unavailable line carries index", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/orders", "", map[string]any{
			"totalPrice": 16500, "orderType": "TAKE_OUT", "paymentMethod": "TOSS",
			"items": []map[string]any{{"productId": 5, "quantity": 1}, {"productId": 99, "quantity": 1}},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		e := decode[errResp](t, rec)
		assert.Equal(t, "product_unavailable", e.Code)
		require.NotNil(t, e.Index)
		assert.Equal(t, 1, *e.Index)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/orders", "", `{"items": [`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_input", decode[errResp](t, rec).Code)
	})

	t.Run("broken token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/orders", "not-a-jwt", brunch("TOSS"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestConfirmPaymentHTTP(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	userID, tok := ts.user(t)
	orderID := ts.createBrunch(t, tok)

	t.Run("validation", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/payments/confirm", "", map[string]any{"orderId": orderID, "amount": 12000})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		e := decode[errResp](t, rec)
		assert.Equal(t, "invalid_input", e.Code)
		assert.Equal(t, "paymentKey", e.Field)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/payments/confirm", "", map[string]any{"paymentKey": "pk_1", "orderId": orderID, "amount": 11000})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "amount_mismatch", decode[errResp](t, rec).Code)
	})

	t.Run("declined", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/payments/confirm", "", map[string]any{"paymentKey": "pk_declined", "orderId": orderID, "amount": 12000})
		require.Equal(t, http.StatusBadGateway, rec.Code)
		e := decode[errResp](t, rec)
		assert.Equal(t, "payment_failed", e.Code)
		assert.Equal(t, "REJECT_CARD_COMPANY", e.GatewayCode)
		assert.Equal(t, "card declined", e.Message)
	})

	rec := ts.do(t, http.MethodPost, "/payments/confirm", "", map[string]any{"paymentKey": "pk_1", "orderId": orderID, "amount": 12000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1200, decode[map[string]any](t, rec)["pointsEarned"])

	rec = ts.do(t, http.MethodGet, "/user/me/points", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1200, decode[map[string]any](t, rec)["points"])

	rec = ts.do(t, http.MethodPost, "/payments/confirm", "", map[string]any{"paymentKey": "pk_2", "orderId": orderID, "amount": 12000})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "order_already_paid", decode[errResp](t, rec).Code)

	var u models.User
	require.NoError(t, ts.db.First(&u, "id = ?", userID).Error)
	assert.EqualValues(t, 1200, u.Point)
}

func TestOrderVisibilityAndCancelHTTP(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	_, owner := ts.user(t)
	_, other := ts.user(t)
	orderID := ts.createBrunch(t, owner)

	rec := ts.do(t, http.MethodGet, "/orders/"+orderID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders/"+orderID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "WAITING", view["status"])
	assert.Len(t, view["items"], 1)

	rec = ts.do(t, http.MethodGet, "/orders/not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/payments/confirm", "", map[string]any{"paymentKey": "pk_c", "orderId": orderID, "amount": 12000})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[map[string]any](t, rec)
	assert.Equal(t, "CANCELED", view["status"])
	assert.Equal(t, "REFUNDED", view["paymentStatus"])
	assert.EqualValues(t, 1200, view["pointsReclaimed"])
	assert.EqualValues(t, 1, ts.cancels.Load())

	rec = ts.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", owner, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_cancelable", decode[errResp](t, rec).Code)
}

func TestUserRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	_, tok := ts.user(t)
	ts.createBrunch(t, tok)
	ts.createBrunch(t, "")

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/user/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/user/me/points", "", nil).Code)

	rec := ts.do(t, http.MethodGet, "/user/orders?status=WAITING&from=2024-05-01&to=2024-05-01", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[map[string][]any](t, rec)["data"], 1)

	rec = ts.do(t, http.MethodGet, "/user/orders?status=BAKING", tok, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", decode[errResp](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/user/orders?from=yesterday", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHTTP(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	_, userTok := ts.user(t)
	admin := adminToken(t)
	orderID := ts.createBrunch(t, "")

	rec := ts.do(t, http.MethodPatch, "/admin/orders/"+orderID, userTok, map[string]any{"status": "PREPARING"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID, admin, map[string]any{"status": "COMPLETED"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errResp](t, rec).Code)

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID, admin, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", decode[errResp](t, rec).Field)

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID, admin, map[string]any{"status": "PREPARING"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PREPARING", decode[map[string]any](t, rec)["status"])

	rec = ts.do(t, http.MethodGet, "/admin/orders?date=2024-05-01&status=PREPARING", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]any](t, rec)["data"], 1)

	rec = ts.do(t, http.MethodGet, "/admin/orders?date=20240430", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]any](t, rec)["data"])
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/metrics", "", nil).Code)
}
