package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID       string          `json:"order_id"`
	GroupID       string          `json:"group_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Phone         string          `json:"phone"`
	City          string          `json:"city"`
	DeliveryType  DeliveryType    `json:"delivery_type"`
	Status        Status          `json:"status"`
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	ProductPrice  decimal.Decimal `json:"product_price"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	GroupID   string    `json:"group_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

func NewOrderCreatedPayload(o Order) OrderCreatedPayload {
	return OrderCreatedPayload{
		OrderID:       o.ID,
		GroupID:       o.GroupID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Phone:         o.Phone,
		City:          o.City,
		DeliveryType:  o.DeliveryType,
		Status:        o.Status,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		ProductPrice:  o.ProductPrice,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
	}
}
