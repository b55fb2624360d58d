package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrEmptyCart = errors.New("cart is empty")

// DetailedError carries one human readable message per offending field or line.
type DetailedError interface {
	error
	Details() []string
}

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Details() []string { return e.Fields }

type LineProblem struct {
	Index     int
	ProductID string
	Reason    string
}

type MalformedLineError struct {
	Problems []LineProblem
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("%d malformed cart line(s)", len(e.Problems))
}

func (e *MalformedLineError) Details() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Index < 0 {
			out = append(out, p.Reason)
			continue
		}
		out = append(out, fmt.Sprintf("items[%d]: %s", p.Index, p.Reason))
	}
	return out
}

type ProductsUnavailableError struct {
	Missing []string
}

func (e *ProductsUnavailableError) Error() string {
	return "some products not found or unavailable"
}

func (e *ProductsUnavailableError) Details() []string {
	out := make([]string, 0, len(e.Missing))
	for _, id := range e.Missing {
		out = append(out, "Product "+id+" not found or unavailable")
	}
	return out
}

type StockShortfall struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	return "insufficient stock for some products"
}

func (e *InsufficientStockError) Details() []string {
	out := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		out = append(out, fmt.Sprintf("Insufficient stock for %s. Available: %d", s.ProductName, s.Available))
	}
	return out
}

type PriceMismatch struct {
	ProductID   string
	ProductName string
	Current     decimal.Decimal
	Submitted   decimal.Decimal
}

type PriceChangedError struct {
	Mismatches []PriceMismatch
}

func (e *PriceChangedError) Error() string {
	return "prices have changed for some products"
}

func (e *PriceChangedError) Details() []string {
	out := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		out = append(out, fmt.Sprintf("Price changed for %s. Current price: %s", m.ProductName, m.Current.StringFixed(2)))
	}
	return out
}

// ConcurrentStockExhaustionError means another checkout took the stock between
// validation and commit. Nothing was written; the client may re-validate and retry once.
type ConcurrentStockExhaustionError struct {
	ProductID string
	Requested int
	Available int
	Err       error
}

func (e *ConcurrentStockExhaustionError) Error() string {
	if e.ProductID == "" {
		return "stock was taken by a concurrent checkout"
	}
	return fmt.Sprintf("stock for product %s was taken by a concurrent checkout", e.ProductID)
}

func (e *ConcurrentStockExhaustionError) Details() []string {
	if e.ProductID == "" {
		return []string{"Please review your cart and try again"}
	}
	return []string{fmt.Sprintf("Product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)}
}

func (e *ConcurrentStockExhaustionError) Unwrap() error { return e.Err }

// PersistenceError wraps an unexpected storage failure. No partial state was committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }
