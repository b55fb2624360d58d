package delivery

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAllocate_evenSplit(t *testing.T) {
	shares, err := Allocate(d("20"), 2)
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.True(t, d("10").Equal(shares[0]))
	assert.True(t, d("10").Equal(shares[1]))
}

func TestAllocate_remainderGoesToFirstLines(t *testing.T) {
	shares, err := Allocate(d("10"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.34", "3.33", "3.33"}, []string{
		shares[0].StringFixed(2), shares[1].StringFixed(2), shares[2].StringFixed(2),
	})
}

func TestAllocate_sumAlwaysMatches(t *testing.T) {
	for _, fee := range []string{"0", "0.01", "0.05", "9.99", "10", "13.37", "100.00", "1234.56"} {
		for n := 1; n <= 17; n++ {
			shares, err := Allocate(d(fee), n)
			require.NoError(t, err)
			sum := decimal.Zero
			for _, s := range shares {
				assert.False(t, s.IsNegative())
				sum = sum.Add(s)
			}
			assert.True(t, d(fee).Equal(sum), "fee=%s n=%d sum=%s", fee, n, sum)
		}
	}
}

func TestAllocate_roundsSubCentFee(t *testing.T) {
	shares, err := Allocate(d("1.005"), 1)
	require.NoError(t, err)
	assert.Equal(t, "1.01", shares[0].StringFixed(2))
}

func TestAllocate_rejectsBadInput(t *testing.T) {
	_, err := Allocate(d("10"), 0)
	assert.ErrorIs(t, err, ErrNoLines)

	_, err = Allocate(d("-1"), 2)
	assert.ErrorIs(t, err, ErrNegativeFee)
}
