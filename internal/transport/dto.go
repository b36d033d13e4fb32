package transport

import (
	"time"

	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/google/uuid"
)

type CreateOrderItem struct {
	ProductID uint   `json:"productId"`
	Quantity  int    `json:"quantity"`
	OptionIDs []uint `json:"optionIds"`
}

// CreateOrderRequest has no validate tags: the pricing validator checks every line so
// its error codes keep the line index.
type CreateOrderRequest struct {
	TotalPrice    int64             `json:"totalPrice"`
	OrderType     string            `json:"orderType"`
	PaymentMethod string            `json:"paymentMethod"`
	Items         []CreateOrderItem `json:"items"`
}

type CreateOrderResponse struct {
	OrderID       uuid.UUID `json:"orderId"`
	OrderNo       string    `json:"orderNo"`
	OrderNumber   int       `json:"orderNumber"`
	PaymentStatus string    `json:"paymentStatus"`
	PointsEarned  int64     `json:"pointsEarned"`
}

type ConfirmPaymentRequest struct {
	PaymentKey string `json:"paymentKey" validate:"required,max=200"`
	OrderID    string `json:"orderId"    validate:"required,uuid"`
	Amount     int64  `json:"amount"     validate:"required,gt=0"`
}

type ConfirmPaymentResponse struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNo      string    `json:"orderNo"`
	PointsEarned int64     `json:"pointsEarned"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PointsResponse struct {
	Points int64 `json:"points"`
}

type OrderItemOptionView struct {
	OptionID   uint   `json:"optionId"`
	Name       string `json:"name"`
	ExtraPrice int64  `json:"extraPrice"`
}

type OrderItemView struct {
	ProductID       uint                  `json:"productId"`
	ProductName     string                `json:"productName"`
	Quantity        int                   `json:"quantity"`
	UnitPrice       int64                 `json:"unitPrice"`
	LineTotalAmount int64                 `json:"lineTotalAmount"`
	Options         []OrderItemOptionView `json:"options"`
}

type OrderView struct {
	ID              uuid.UUID       `json:"orderId"`
	OrderNo         string          `json:"orderNo"`
	OrderNumber     int             `json:"orderNumber"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod"`
	OrderType       string          `json:"orderType"`
	TotalAmount     int64           `json:"totalAmount"`
	PointsEarned    int64           `json:"pointsEarned"`
	PointsReclaimed int64           `json:"pointsReclaimed"`
	CreatedAt       time.Time       `json:"createdAt"`
	Items           []OrderItemView `json:"items,omitempty"`
}

func ToOrderView(o *models.Order) OrderView {
	v := OrderView{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		OrderType:       string(o.OrderType),
		TotalAmount:     o.TotalAmount,
		PointsEarned:    o.PointsEarned,
		PointsReclaimed: o.PointsReclaimed,
		CreatedAt:       o.CreatedAt,
	}
	for _, it := range o.Items {
		item := OrderItemView{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			LineTotalAmount: it.LineTotalAmount,
			Options:         make([]OrderItemOptionView, 0, len(it.Options)),
		}
		for _, op := range it.Options {
			item.Options = append(item.Options, OrderItemOptionView{OptionID: op.OptionID, Name: op.OptionName, ExtraPrice: op.ExtraPrice})
		}
		v.Items = append(v.Items, item)
	}
	return v
}

func ToOrderViews(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, ToOrderView(&orders[i]))
	}
	return out
}
