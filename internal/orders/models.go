package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Visible   bool            `json:"visible"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type City struct {
	Name        string          `json:"name"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
}

type DeliveryType string

const (
	DeliveryHome         DeliveryType = "HOME_DELIVERY"
	DeliveryAgencyPickup DeliveryType = "LOCAL_AGENCY_PICKUP"
	DefaultDeliveryType               = DeliveryHome
)

// ParseDeliveryType maps an empty value to the default.
func ParseDeliveryType(s string) (DeliveryType, bool) {
	switch DeliveryType(s) {
	case "":
		return DefaultDeliveryType, true
	case DeliveryHome, DeliveryAgencyPickup:
		return DeliveryType(s), true
	}
	return "", false
}

// OrderGroup ties together the sibling orders created by one checkout.
type OrderGroup struct {
	ID        string
	CreatedAt time.Time
}

// Order is one product line of a checkout. Price, fee share and total are
// snapshots taken at commit time.
type Order struct {
	ID            string          `json:"id"`
	GroupID       string          `json:"groupId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	Phone         string          `json:"phone"`
	City          string          `json:"city"`
	DeliveryType  DeliveryType    `json:"deliveryType"`
	Status        Status          `json:"status"`
	ProductID     string          `json:"productId"`
	Quantity      int             `json:"quantity"`
	ProductPrice  decimal.Decimal `json:"productPrice"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
