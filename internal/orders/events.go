package orders

import (
	"encoding/json"
	"time"
)

const (
	TopicOrderCreated = "order.created"

	EventOrderCreated = "OrderCreated"
)

// PartitionKey keys messages by order id so all events of one order keep ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderCreatedPayload carries the full order document so consumers can warm
// read caches without a database round trip.
type OrderCreatedPayload struct {
	Order Order `json:"order"`
}
