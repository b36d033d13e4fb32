package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	StatusWaiting     OrderStatus = "WAITING"
	StatusPreparing   OrderStatus = "PREPARING"
	StatusPickupReady OrderStatus = "PICKUP_READY"
	StatusCompleted   OrderStatus = "COMPLETED"
	StatusCanceled    OrderStatus = "CANCELED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "CARD"
	MethodCash   PaymentMethod = "CASH"
	MethodMobile PaymentMethod = "MOBILE"
	MethodEtc    PaymentMethod = "ETC"
	MethodToss   PaymentMethod = "TOSS"
)

// SettledInStore reports whether the method is paid at the counter rather than through the gateway.
func (m PaymentMethod) SettledInStore() bool {
	return m != MethodToss
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodCash, MethodMobile, MethodEtc, MethodToss:
		return true
	}
	return false
}

type OrderType string

const (
	OrderDineIn  OrderType = "DINE_IN"
	OrderTakeOut OrderType = "TAKE_OUT"
)

func (t OrderType) Valid() bool {
	return t == OrderDineIn || t == OrderTakeOut
}

type Order struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey"                                json:"id"`
	OrderNo           string        `gorm:"size:16;uniqueIndex;not null"                        json:"orderNo"`
	OrderDate         string        `gorm:"size:8;not null;uniqueIndex:idx_order_day_number"    json:"orderDate"`
	OrderNumber       int           `gorm:"not null;uniqueIndex:idx_order_day_number"           json:"orderNumber"`
	Status            OrderStatus   `gorm:"size:16;not null;index"                              json:"status"`
	PaymentStatus     PaymentStatus `gorm:"size:16;not null"                                    json:"paymentStatus"`
	PaymentMethod     PaymentMethod `gorm:"size:16;not null"                                    json:"paymentMethod"`
	OrderType         OrderType     `gorm:"size:16;not null"                                    json:"orderType"`
	TotalAmount       int64         `gorm:"not null;check:total_amount > 0"                     json:"totalAmount"`
	UserID            *uuid.UUID    `gorm:"type:uuid;index"                                     json:"userId,omitempty"`
	GatewayPaymentKey *string       `gorm:"size:200;uniqueIndex"                                json:"gatewayPaymentKey,omitempty"`
	PointsEarned      int64         `gorm:"not null;default:0"                                  json:"pointsEarned"`
	PointsReclaimed   int64         `gorm:"not null;default:0"                                  json:"pointsReclaimed"`
	CreatedAt         time.Time     `gorm:"index"                                               json:"createdAt"`
	UpdatedAt         time.Time     `                                                           json:"updatedAt"`
	Items             []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"      json:"items,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OwnedBy reports whether userID may act on the order; guest orders belong to whoever holds the id.
func (o *Order) OwnedBy(userID *uuid.UUID) bool {
	if o.UserID == nil {
		return true
	}
	return userID != nil && *o.UserID == *userID
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID              uint              `gorm:"primaryKey"                                      json:"id"`
	OrderID         uuid.UUID         `gorm:"type:uuid;index;not null"                        json:"orderId"`
	ProductID       uint              `gorm:"not null"                                        json:"productId"`
	ProductName     string            `gorm:"size:200"                                        json:"productName"`
	Quantity        int               `gorm:"not null;check:quantity > 0"                     json:"quantity"`
	UnitPrice       int64             `gorm:"not null"                                        json:"unitPrice"`
	LineTotalAmount int64             `gorm:"not null"                                        json:"lineTotalAmount"`
	Options         []OrderItemOption `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

type OrderItemOption struct {
	ID          uint   `gorm:"primaryKey"        json:"id"`
	OrderItemID uint   `gorm:"index;not null"    json:"orderItemId"`
	OptionID    uint   `gorm:"not null"          json:"optionId"`
	OptionName  string `gorm:"size:200"          json:"optionName"`
	ExtraPrice  int64  `gorm:"not null"          json:"extraPrice"`
}

func (OrderItemOption) TableName() string {
	return "order_item_options"
}

// Payment is one confirmed gateway payment, keyed by the gateway's payment key.
type Payment struct {
	ID          uint       `gorm:"primaryKey"                    json:"id"`
	PaymentKey  string     `gorm:"size:200;uniqueIndex;not null" json:"paymentKey"`
	OrderID     uuid.UUID  `gorm:"type:uuid;index;not null"      json:"orderId"`
	Method      string     `gorm:"size:50"                       json:"method"`
	Status      string     `gorm:"size:50"                       json:"status"`
	TotalAmount int64      `gorm:"not null"                      json:"totalAmount"`
	RequestedAt *time.Time `                                     json:"requestedAt,omitempty"`
	ApprovedAt  *time.Time `                                     json:"approvedAt,omitempty"`
	CreatedAt   time.Time  `                                     json:"createdAt"`
	UpdatedAt   time.Time  `                                     json:"updatedAt"`
}

func (Payment) TableName() string {
	return "payments"
}

type DailyCounter struct {
	Day        string `gorm:"size:8;primaryKey"`
	LastNumber int    `gorm:"not null"`
}

func (DailyCounter) TableName() string {
	return "daily_counters"
}

// User mirrors the externally owned users table; only the point balance is touched here.
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"           json:"id"`
	Point int64     `gorm:"not null;default:0;check:point >= 0" json:"point"`
}

func (User) TableName() string {
	return "users"
}

type Product struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:200;not null"`
	BasePrice   int64  `gorm:"not null"`
	IsAvailable bool   `gorm:"not null;default:true"`
}

func (Product) TableName() string {
	return "products"
}

type Option struct {
	ID                uint   `gorm:"primaryKey"`
	Name              string `gorm:"size:200;not null"`
	DefaultExtraPrice int64  `gorm:"not null;default:0"`
}

func (Option) TableName() string {
	return "options"
}

type ProductOption struct {
	ProductID  uint   `gorm:"primaryKey"`
	OptionID   uint   `gorm:"primaryKey"`
	ExtraPrice *int64
}

func (ProductOption) TableName() string {
	return "product_options"
}

type OutboxEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventType   string     `gorm:"size:64;not null"`
	AggregateID string     `gorm:"size:64;not null;index"`
	Payload     []byte     `gorm:"not null"`
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"size:500"`
	CreatedAt   time.Time  `gorm:"index"`
	SentAt      *time.Time `gorm:"index"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// Owned lists the tables this service migrates; catalog and users belong to other services.
func Owned() []any {
	return []any{&Order{}, &OrderItem{}, &OrderItemOption{}, &Payment{}, &DailyCounter{}, &OutboxEvent{}}
}

func External() []any {
	return []any{&User{}, &Product{}, &Option{}, &ProductOption{}}
}
