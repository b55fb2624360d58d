package delivery

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoLines     = errors.New("delivery: cannot allocate a fee across zero lines")
	ErrNegativeFee = errors.New("delivery: fee must not be negative")
)

// Allocate splits total evenly across n lines in whole cents. The leftover
// cents go one each to the first lines, so the shares always sum to total
// rounded to cents.
func Allocate(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, ErrNoLines
	}
	if total.IsNegative() {
		return nil, ErrNegativeFee
	}
	cents := total.Round(2).Shift(2).IntPart()
	base, rem := cents/int64(n), cents%int64(n)

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(i) < rem {
			c++
		}
		shares[i] = decimal.New(c, -2)
	}
	return shares, nil
}
