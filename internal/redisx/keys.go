package redisx

import "time"

const (
	// Idempotent place order: idem:order:place:{user_id}:{key} -> order_id | "pending"
	KeyIdemPlaceOrder = "idem:order:place:%s:%s"

	// Order read cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// TTLPending bounds how long a crashed request can hold its key.
	TTLPending    = 30 * time.Second
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
