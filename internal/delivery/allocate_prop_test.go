package delivery

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestAllocate_properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 10_000_000).Draw(t, "cents")
		n := rapid.IntRange(1, 250).Draw(t, "lines")
		fee := decimal.New(cents, -2)

		shares, err := Allocate(fee, n)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if len(shares) != n {
			t.Fatalf("got %d shares for %d lines", len(shares), n)
		}
		sum := decimal.Zero
		for i, s := range shares {
			sum = sum.Add(s)
			if s.IsNegative() {
				t.Fatalf("share %d is negative: %s", i, s)
			}
			if i > 0 && s.GreaterThan(shares[i-1]) {
				t.Fatalf("share %d (%s) exceeds share %d (%s)", i, s, i-1, shares[i-1])
			}
		}
		if !sum.Equal(fee) {
			t.Fatalf("shares sum to %s, want %s", sum, fee)
		}
		if spread := shares[0].Sub(shares[n-1]); spread.GreaterThan(decimal.New(1, -2)) {
			t.Fatalf("shares differ by %s", spread)
		}
	})
}
