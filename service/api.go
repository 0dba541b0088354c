package service

import "time"

// BatchStatusResponse wraps values
// returned by calls to /status/batches
type BatchStatusResponse struct {
	OpenBatches     int  `json:"open_batches"`     // destinations with a batch waiting to be delivered
	PendingMessages int  `json:"pending_messages"` // messages across all open batches
	Accepting       bool `json:"accepting"`        // false once shutdown has begun
}

// BatchDeliveryMetric is a single batch delivery
// as reported by calls to /status/deliveries
type BatchDeliveryMetric struct {
	ID                     int64     `json:"id"`
	DeliveryID             string    `json:"delivery_id"`
	WebhookID              string    `json:"webhook_id"`
	DestinationFingerprint string    `json:"destination_fingerprint"`
	BatchSize              int64     `json:"batch_size"`
	EmbedCount             int64     `json:"embed_count"`
	BatchCreatedAt         time.Time `json:"batch_created_at"`
	DeliveredAt            time.Time `json:"delivered_at"`
	LatencyMilliseconds    int64     `json:"latency_ms"`
	WaitMilliseconds       int64     `json:"wait_ms"`
	UpstreamStatus         int       `json:"upstream_status"`
	Failed                 bool      `json:"failed"`
	Error                  *string   `json:"error,omitempty"`
}

// DeliveriesResponse wraps a page of batch delivery
// metrics returned by calls to /status/deliveries
type DeliveriesResponse struct {
	Deliveries []BatchDeliveryMetric `json:"deliveries"`
	// NextCursor is passed as the cursor query parameter to fetch the next page, 0 when there are no more pages
	NextCursor int64 `json:"next_cursor"`
}
