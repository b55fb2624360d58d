package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Any cart that fits the stock commits one order per line with consistent money.
func TestCommit_properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nProducts := rapid.IntRange(1, 6).Draw(t, "products")
		var catalog []orders.Product
		for i := 0; i < nProducts; i++ {
			catalog = append(catalog, orders.Product{
				ID:      fmt.Sprintf("P%d", i),
				Name:    fmt.Sprintf("Product %d", i),
				Price:   decimal.New(rapid.Int64Range(1, 100_000).Draw(t, "price"), -2),
				Stock:   rapid.IntRange(0, 50).Draw(t, "stock"),
				Visible: true,
			})
		}
		store := newMemStore(catalog...)

		nLines := rapid.IntRange(1, 8).Draw(t, "lines")
		var lines []CartLine
		for i := 0; i < nLines; i++ {
			p := catalog[rapid.IntRange(0, nProducts-1).Draw(t, "pick")]
			lines = append(lines, CartLine{
				ProductID: p.ID,
				Quantity:  rapid.IntRange(1, 20).Draw(t, "qty"),
				UnitPrice: decimal.NewNullDecimal(p.Price),
			})
		}
		city := rapid.SampledFrom([]string{"Algiers", "Oran", "Nowhere"}).Draw(t, "city")

		before := map[string]int{}
		wanted := map[string]int{}
		for _, p := range catalog {
			before[p.ID] = p.Stock
		}
		for _, l := range lines {
			wanted[l.ProductID] += l.Quantity
		}

		cart, err := (&Validator{Catalog: store}).Validate(context.Background(), lines)
		var insufficient *InsufficientStockError
		fits := true
		for id, q := range wanted {
			if q > before[id] {
				fits = false
			}
		}
		if !fits {
			if !errors.As(err, &insufficient) {
				t.Fatalf("expected insufficient stock, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("validate: %v", err)
		}

		created, err := newCommitter(store).Commit(context.Background(), cart, customer(city))
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		if len(created) != len(lines) {
			t.Fatalf("got %d orders for %d lines", len(created), len(lines))
		}
		quote, _ := newResolver().ResolveFee(context.Background(), city)
		feeSum := decimal.Zero
		for i, o := range created {
			if o.ProductID != lines[i].ProductID {
				t.Fatalf("order %d is for %s, line is %s", i, o.ProductID, lines[i].ProductID)
			}
			want := o.ProductPrice.Mul(decimal.NewFromInt(int64(o.Quantity))).Add(o.DeliveryFee)
			if !want.Equal(o.Total) {
				t.Fatalf("order %d total %s, want %s", i, o.Total, want)
			}
			feeSum = feeSum.Add(o.DeliveryFee)
		}
		if !feeSum.Equal(quote.Fee.Round(2)) {
			t.Fatalf("fee shares sum to %s, want %s", feeSum, quote.Fee)
		}
		for id, q := range wanted {
			if got := store.stock(id); got != before[id]-q {
				t.Fatalf("stock %s = %d, want %d", id, got, before[id]-q)
			}
		}
	})
}
