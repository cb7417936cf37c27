package redisx

import "time"

const (
	// Idempotency for order creation: idem:order:create:{request_id} -> 1
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Read cache for a single order: order:%s -> JSON document
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
