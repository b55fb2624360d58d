package redisx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdemPendingTTL_outlivesCheckoutTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, 5 * time.Second, 30 * time.Second, 2 * time.Minute} {
		assert.Greater(t, IdemPendingTTL(timeout), timeout, "timeout=%s", timeout)
	}
	assert.Equal(t, 95*time.Second, IdemPendingTTL(65*time.Second))
	assert.Equal(t, TTLIdemPendingMargin, IdemPendingTTL(-time.Second))
}
