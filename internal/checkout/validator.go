package checkout

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// PriceTolerance is the largest accepted difference between the client's
// remembered unit price and the catalog price.
var PriceTolerance = decimal.New(1, -2)

type Catalog interface {
	// LoadVisibleProducts returns only visible products among ids.
	LoadVisibleProducts(ctx context.Context, ids []string) ([]orders.Product, error)
}

type ValidatedLine struct {
	CartLine
	Product orders.Product
}

// ValidatedCart pairs every cart line with the product record as read during
// validation. Its prices, not the client's, are used to price orders.
type ValidatedCart struct {
	Lines []ValidatedLine
}

func (c ValidatedCart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

type Validator struct {
	Catalog Catalog
}

// Validate is read-only. Stock shortfalls and price mismatches are collected
// for the whole cart before failing.
func (v *Validator) Validate(ctx context.Context, lines []CartLine) (ValidatedCart, error) {
	if len(lines) == 0 {
		return ValidatedCart{}, ErrEmptyCart
	}
	if err := checkLines(lines); err != nil {
		return ValidatedCart{}, err
	}

	ids, requested := distinctProducts(lines)
	products, err := v.Catalog.LoadVisibleProducts(ctx, ids)
	if err != nil {
		return ValidatedCart{}, &PersistenceError{Op: "load products", Err: err}
	}
	byID := make(map[string]orders.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return ValidatedCart{}, &ProductsUnavailableError{Missing: missing}
	}

	var shortfalls []StockShortfall
	for _, id := range ids {
		p := byID[id]
		if p.Stock < requested[id] {
			shortfalls = append(shortfalls, StockShortfall{
				ProductID: id, ProductName: p.Name, Requested: requested[id], Available: p.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return ValidatedCart{}, &InsufficientStockError{Shortfalls: shortfalls}
	}

	var mismatches []PriceMismatch
	for _, l := range lines {
		p := byID[l.ProductID]
		if p.Price.Sub(l.UnitPrice.Decimal).Abs().GreaterThan(PriceTolerance) {
			mismatches = append(mismatches, PriceMismatch{
				ProductID: p.ID, ProductName: p.Name, Current: p.Price, Submitted: l.UnitPrice.Decimal,
			})
		}
	}
	if len(mismatches) > 0 {
		return ValidatedCart{}, &PriceChangedError{Mismatches: mismatches}
	}
	if err := checkLineAmounts(lines, byID); err != nil {
		return ValidatedCart{}, err
	}

	out := ValidatedCart{Lines: make([]ValidatedLine, 0, len(lines))}
	for _, l := range lines {
		out.Lines = append(out.Lines, ValidatedLine{CartLine: l, Product: byID[l.ProductID]})
	}
	return out, nil
}

func checkLines(lines []CartLine) error {
	var problems []LineProblem
	if len(lines) > MaxCartLines {
		problems = append(problems, LineProblem{Index: MaxCartLines, Reason: fmt.Sprintf("cart has more than %d lines", MaxCartLines)})
	}
	for i, l := range lines {
		switch {
		case l.ProductID == "":
			problems = append(problems, LineProblem{Index: i, Reason: "productId is required"})
		case l.Quantity <= 0:
			problems = append(problems, LineProblem{Index: i, ProductID: l.ProductID, Reason: "quantity must be positive"})
		case l.Quantity > MaxLineQuantity:
			problems = append(problems, LineProblem{Index: i, ProductID: l.ProductID, Reason: fmt.Sprintf("quantity must be at most %d", MaxLineQuantity)})
		case !l.UnitPrice.Valid:
			problems = append(problems, LineProblem{Index: i, ProductID: l.ProductID, Reason: "productPrice is required"})
		case l.UnitPrice.Decimal.IsNegative():
			problems = append(problems, LineProblem{Index: i, ProductID: l.ProductID, Reason: "productPrice must not be negative"})
		}
	}
	if len(problems) > 0 {
		return &MalformedLineError{Problems: problems}
	}
	return nil
}

// checkLineAmounts rejects lines whose catalog subtotal cannot be stored.
func checkLineAmounts(lines []CartLine, byID map[string]orders.Product) error {
	var problems []LineProblem
	for i, l := range lines {
		sub := byID[l.ProductID].Price.Round(2).Mul(decimal.NewFromInt(int64(l.Quantity)))
		if sub.GreaterThan(MaxOrderTotal) {
			problems = append(problems, LineProblem{Index: i, ProductID: l.ProductID,
				Reason: "line amount exceeds " + MaxOrderTotal.StringFixed(2)})
		}
	}
	if len(problems) > 0 {
		return &MalformedLineError{Problems: problems}
	}
	return nil
}

// distinctProducts returns product ids in first-seen order with the total
// quantity requested per product across all lines.
func distinctProducts(lines []CartLine) ([]string, map[string]int) {
	ids := make([]string, 0, len(lines))
	qty := make(map[string]int, len(lines))
	for _, l := range lines {
		if _, ok := qty[l.ProductID]; !ok {
			ids = append(ids, l.ProductID)
		}
		qty[l.ProductID] += l.Quantity
	}
	return ids, qty
}
