package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/kava-labs/webhook-batch-proxy/clients/database"
)

const (
	BatchDeliveryMetricsTableName = "batch_delivery_metrics"
)

// BatchDeliveryMetric is the row stored for each batch delivered by the proxy service
type BatchDeliveryMetric struct {
	bun.BaseModel `bun:"table:batch_delivery_metrics,alias:bdm"`

	ID                     int64     `bun:",pk,autoincrement"`
	DeliveryID             uuid.UUID `bun:"type:uuid"`
	WebhookID              string
	DestinationFingerprint string
	BatchSize              int64
	EmbedCount             int64
	BatchCreatedAt         time.Time
	DeliveredAt            time.Time
	LatencyMilliseconds    int64 `bun:"latency_ms"`
	UpstreamStatus         int
	Failed                 bool
	Error                  *string
}

func (bdm *BatchDeliveryMetric) ToBatchDeliveryMetric() *database.BatchDeliveryMetric {
	return &database.BatchDeliveryMetric{
		ID:                     bdm.ID,
		DeliveryID:             bdm.DeliveryID,
		WebhookID:              bdm.WebhookID,
		DestinationFingerprint: bdm.DestinationFingerprint,
		BatchSize:              bdm.BatchSize,
		EmbedCount:             bdm.EmbedCount,
		BatchCreatedAt:         bdm.BatchCreatedAt,
		DeliveredAt:            bdm.DeliveredAt,
		LatencyMilliseconds:    bdm.LatencyMilliseconds,
		UpstreamStatus:         bdm.UpstreamStatus,
		Failed:                 bdm.Failed,
		Error:                  bdm.Error,
	}
}

func convertBatchDeliveryMetric(metric *database.BatchDeliveryMetric) *BatchDeliveryMetric {
	return &BatchDeliveryMetric{
		ID:                     metric.ID,
		DeliveryID:             metric.DeliveryID,
		WebhookID:              metric.WebhookID,
		DestinationFingerprint: metric.DestinationFingerprint,
		BatchSize:              metric.BatchSize,
		EmbedCount:             metric.EmbedCount,
		BatchCreatedAt:         metric.BatchCreatedAt,
		DeliveredAt:            metric.DeliveredAt,
		LatencyMilliseconds:    metric.LatencyMilliseconds,
		UpstreamStatus:         metric.UpstreamStatus,
		Failed:                 metric.Failed,
		Error:                  metric.Error,
	}
}

// SaveBatchDeliveryMetric saves the metric to the database, returning error (if any).
func (c *Client) SaveBatchDeliveryMetric(ctx context.Context, metric *database.BatchDeliveryMetric) error {
	bdm := convertBatchDeliveryMetric(metric)

	_, err := c.db.NewInsert().Model(bdm).Exec(ctx)
	if err != nil {
		return err
	}

	metric.ID = bdm.ID

	return nil
}

// ListBatchDeliveryMetricsWithPagination returns a page of max
// `limit` BatchDeliveryMetrics from the offset specified by`cursor`
// error (if any) along with a cursor to use to fetch the next page
// if the cursor is 0 no more pages exists.
func (c *Client) ListBatchDeliveryMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.BatchDeliveryMetric, int64, error) {
	var batchDeliveryMetrics []BatchDeliveryMetric
	var nextCursor int64

	err := c.db.NewSelect().Model(&batchDeliveryMetrics).Where("id > ?", cursor).Order("id ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	if len(batchDeliveryMetrics) == limit && limit > 0 {
		nextCursor = batchDeliveryMetrics[len(batchDeliveryMetrics)-1].ID
	}

	metrics := make([]*database.BatchDeliveryMetric, 0, len(batchDeliveryMetrics))
	for i := range batchDeliveryMetrics {
		metrics = append(metrics, batchDeliveryMetrics[i].ToBatchDeliveryMetric())
	}

	// otherwise leave nextCursor as 0 to signal no more rows
	return metrics, nextCursor, nil
}

// DeleteBatchDeliveryMetricsOlderThanNDays deletes
// all batch delivery metrics delivered more than n days ago,
// returning error (if any). Used during pruning process.
func (c *Client) DeleteBatchDeliveryMetricsOlderThanNDays(ctx context.Context, n int64) error {
	_, err := c.db.NewDelete().
		Model((*BatchDeliveryMetric)(nil)).
		Where("delivered_at < now() - make_interval(days => ?)", n).
		Exec(ctx)

	return err
}
