package redisx

import "time"

const (
	// Checkout idempotency fast-path: idem:order:checkout:{key} -> order_id.
	// The DB unique index stays the source of truth.
	KeyIdemCheckout = "idem:order:checkout:%s"

	// Order status cache: order:status:{order_id} -> {"status":"..."}
	KeyOrderStatus = "order:status:%s"

	// Consumer dedup: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
