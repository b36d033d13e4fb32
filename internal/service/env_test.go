package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/gateway"
	"github.com/Skotchmaster/kiosk_order/internal/loyalty"
	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/pricing"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	pkgdb "github.com/Skotchmaster/kiosk_order/pkg/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu         sync.Mutex
	confirmErr error
	cancelErr  error
	confirms   []gateway.ConfirmRequest
	cancels    []string
	onConfirm  func(req gateway.ConfirmRequest)
	onCancel   func(paymentKey string)
}

func (g *fakeGateway) Confirm(_ context.Context, req gateway.ConfirmRequest) (*gateway.Confirmation, error) {
	g.mu.Lock()
	hook := g.onConfirm
	g.confirms = append(g.confirms, req)
	err := g.confirmErr
	g.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &gateway.Confirmation{
		PaymentKey:  req.PaymentKey,
		OrderID:     req.OrderID,
		Method:      "CARD",
		Status:      "DONE",
		TotalAmount: req.Amount,
		RequestedAt: &now,
		ApprovedAt:  &now,
	}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, paymentKey, _, _ string) error {
	g.mu.Lock()
	hook := g.onCancel
	g.cancels = append(g.cancels, paymentKey)
	err := g.cancelErr
	g.mu.Unlock()

	if hook != nil {
		hook(paymentKey)
	}
	return err
}

func (g *fakeGateway) counts() (confirms, cancels int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.confirms), len(g.cancels)
}

type testEnv struct {
	DB       *gorm.DB
	Gateway  *fakeGateway
	Orders   *OrderService
	Payments *PaymentService
	Cancels  *CancelService
	Admin    *AdminService
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := pkgdb.OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.Owned()...))
	require.NoError(t, db.AutoMigrate(models.External()...))
	seedCatalog(t, db)

	env := &testEnv{
		DB:      db,
		Gateway: &fakeGateway{},
		now:     time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
	}

	r := &repo.GormRepo{DB: db}
	ledger := loyalty.MustLedger("0.1")
	m := metrics.Nop()
	seoul := time.FixedZone("KST", 9*60*60)

	env.Payments = &PaymentService{Repo: r, Gateway: env.Gateway, Ledger: ledger, Metrics: m}
	env.Orders = &OrderService{
		Repo:     r,
		Payments: env.Payments,
		Ledger:   ledger,
		Clock:    Clock{Now: func() time.Time { return env.now }, Loc: seoul},
		Metrics:  m,
	}
	env.Cancels = &CancelService{Repo: r, Gateway: env.Gateway, Ledger: ledger, Metrics: m}
	env.Admin = &AdminService{Repo: r}
	return env
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	over := int64(300)
	require.NoError(t, db.Create(&[]models.Product{
		{ID: 1, Name: "Americano", BasePrice: 4500, IsAvailable: true},
		{ID: 2, Name: "Latte", BasePrice: 5000, IsAvailable: true},
		{ID: 5, Name: "Brunch set", BasePrice: 12000, IsAvailable: true},
	}).Error)
	require.NoError(t, db.Create(&models.Option{ID: 10, Name: "Extra shot", DefaultExtraPrice: 500}).Error)
	require.NoError(t, db.Create(&models.ProductOption{ProductID: 2, OptionID: 10, ExtraPrice: &over}).Error)
}

func (env *testEnv) newUser(t *testing.T, points int64) uuid.UUID {
	t.Helper()
	u := models.User{ID: uuid.New()}
	require.NoError(t, env.DB.Create(&u).Error)
	if points > 0 {
		require.NoError(t, env.DB.Model(&u).Update("point", points).Error)
	}
	return u.ID
}

func (env *testEnv) points(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var u models.User
	require.NoError(t, env.DB.First(&u, "id = ?", userID).Error)
	return u.Point
}

func (env *testEnv) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, env.DB.Preload("Items.Options").First(&o, "id = ?", id).Error)
	return &o
}

func (env *testEnv) outboxTypes(t *testing.T, orderID uuid.UUID) []string {
	t.Helper()
	var types []string
	require.NoError(t, env.DB.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", orderID.String()).
		Order("created_at ASC").
		Pluck("event_type", &types).Error)
	return types
}

// brunchOrder is the 12,000 single-line cart used across payment tests.
func (env *testEnv) brunchOrder(t *testing.T, userID *uuid.UUID, method models.PaymentMethod) *CreateOrderResult {
	t.Helper()
	res, err := env.Orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        userID,
		TotalPrice:    12000,
		OrderType:     models.OrderDineIn,
		PaymentMethod: method,
		Lines:         []pricing.Line{{ProductID: 5, Quantity: 1}},
	})
	require.NoError(t, err)
	return res
}

func (env *testEnv) confirmBrunch(t *testing.T, id uuid.UUID, key string) *ConfirmResult {
	t.Helper()
	res, err := env.Payments.Confirm(context.Background(), ConfirmInput{PaymentKey: key, OrderID: id, Amount: 12000})
	require.NoError(t, err)
	return res
}
