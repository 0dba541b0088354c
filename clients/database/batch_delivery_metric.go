package database

import (
	"time"

	"github.com/google/uuid"
)

// BatchDeliveryMetric contains metrics for
// a single batch delivered by the proxy service
type BatchDeliveryMetric struct {
	ID int64
	// DeliveryID identifies the delivery in service logs
	DeliveryID uuid.UUID
	WebhookID  string
	// DestinationFingerprint is the hashed batching key, the webhook token is never stored
	DestinationFingerprint string
	BatchSize              int64
	EmbedCount             int64
	BatchCreatedAt         time.Time
	DeliveredAt            time.Time
	LatencyMilliseconds    int64
	// UpstreamStatus is the status code returned upstream, zero if no response was received
	UpstreamStatus int
	Failed         bool
	Error          *string
}

// WaitMilliseconds returns how long the first member of
// the batch waited before the batch was delivered
func (m *BatchDeliveryMetric) WaitMilliseconds() int64 {
	return m.DeliveredAt.Sub(m.BatchCreatedAt).Milliseconds()
}
