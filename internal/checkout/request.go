package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
)

const (
	MaxLineQuantity = 10_000
	MaxCartLines    = 100
	maxFieldLength  = 255
)

// MaxOrderTotal is the largest amount an order row can hold (NUMERIC(12,2)).
var MaxOrderTotal = decimal.RequireFromString("9999999999.99")

// CartLine is one client-side cart entry. UnitPrice is the price the client
// saw when the item was added and is only used to detect price drift.
type CartLine struct {
	ProductID string              `json:"productId"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"productPrice"`
}

type CustomerInfo struct {
	Name         string
	Email        string
	Phone        string
	City         string
	DeliveryType orders.DeliveryType
}

// Request is the body of POST /orders/bulk. DeliveryFee and Total are what the
// client computed; the server recomputes both from authoritative data.
type Request struct {
	CustomerName  string              `json:"customerName"`
	CustomerEmail string              `json:"customerEmail"`
	City          string              `json:"city"`
	Phone         string              `json:"phone"`
	DeliveryType  string              `json:"deliveryType,omitempty"`
	Items         []CartLine          `json:"items"`
	DeliveryFee   decimal.NullDecimal `json:"deliveryFee"`
	Total         decimal.NullDecimal `json:"total"`
}

// Customer validates the customer part of the request and returns it trimmed.
func (r Request) Customer() (CustomerInfo, error) {
	c := CustomerInfo{
		Name:  strings.TrimSpace(r.CustomerName),
		Email: strings.TrimSpace(r.CustomerEmail),
		Phone: strings.TrimSpace(r.Phone),
		City:  strings.TrimSpace(r.City),
	}

	var bad []string
	check := func(field, v string) {
		if v == "" || len(v) > maxFieldLength {
			bad = append(bad, field)
		}
	}
	check("customerName", c.Name)
	check("customerEmail", c.Email)
	check("phone", c.Phone)
	check("city", c.City)
	if c.Email != "" && !validEmail(c.Email) {
		bad = append(bad, "customerEmail")
	}
	if r.Items == nil {
		bad = append(bad, "items")
	}

	dt, ok := orders.ParseDeliveryType(strings.TrimSpace(r.DeliveryType))
	if !ok {
		bad = append(bad, "deliveryType")
	}
	c.DeliveryType = dt

	if len(bad) > 0 {
		return CustomerInfo{}, &MissingFieldsError{Fields: dedupe(bad)}
	}
	return c, nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

type fingerprintLine struct {
	ProductID string `json:"p"`
	Quantity  int    `json:"q"`
	UnitPrice string `json:"u"`
}

type fingerprintBody struct {
	Name         string            `json:"n"`
	Email        string            `json:"e"`
	Phone        string            `json:"ph"`
	City         string            `json:"c"`
	DeliveryType string            `json:"d"`
	Items        []fingerprintLine `json:"i"`
}

// Fingerprint identifies what the request asks for: customer, delivery and
// cart lines in order. Whitespace, email case and price formatting do not
// change it; client-computed fee and total are not part of it.
func (r Request) Fingerprint() string {
	b := fingerprintBody{
		Name:         strings.TrimSpace(r.CustomerName),
		Email:        strings.ToLower(strings.TrimSpace(r.CustomerEmail)),
		Phone:        strings.TrimSpace(r.Phone),
		City:         strings.TrimSpace(r.City),
		DeliveryType: strings.TrimSpace(r.DeliveryType),
		Items:        make([]fingerprintLine, 0, len(r.Items)),
	}
	if dt, ok := orders.ParseDeliveryType(b.DeliveryType); ok {
		b.DeliveryType = string(dt)
	}
	for _, l := range r.Items {
		fl := fingerprintLine{ProductID: l.ProductID, Quantity: l.Quantity}
		if l.UnitPrice.Valid {
			fl.UnitPrice = l.UnitPrice.Decimal.StringFixed(2)
		}
		b.Items = append(b.Items, fl)
	}
	raw, _ := json.Marshal(b)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
