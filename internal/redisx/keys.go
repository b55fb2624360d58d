package redisx

import "time"

const (
	// Idempotency bulk checkout: idem:checkout:{key} -> {"fp": request fingerprint, "group": order group id, empty while in flight}
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Delivery fee per city: city_fee:{name} -> decimal string
	KeyCityFee = "city_fee:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLCityFee     = 5 * time.Minute
	TTLDedup       = 48 * time.Hour

	// added to the checkout timeout for an in-flight claim
	TTLIdemPendingMargin = 30 * time.Second
)

// IdemPendingTTL keeps an in-flight claim alive for longer than the checkout
// it guards can run.
func IdemPendingTTL(checkoutTimeout time.Duration) time.Duration {
	if checkoutTimeout < 0 {
		checkoutTimeout = 0
	}
	return checkoutTimeout + TTLIdemPendingMargin
}
