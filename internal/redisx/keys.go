package redisx

import "time"

const (
	// idem:order:create:{idempotency key} -> CreateOrderResult JSON
	KeyIdemOrderCreate = "idem:order:create:%s"

	// order_view:{order number}:{sha256(guest token)} -> OrderView JSON
	KeyOrderView = "order_view:%s:%s"

	// dedup:{service}:{event id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderView   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
