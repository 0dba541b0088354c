package noop

import (
	"context"

	"github.com/kava-labs/webhook-batch-proxy/clients/database"
)

// Noop is a database client that does nothing,
// used when metric storage is disabled
type Noop struct{}

var _ database.MetricsDatabase = (*Noop)(nil)

func New() *Noop {
	return &Noop{}
}

func (e *Noop) SaveBatchDeliveryMetric(ctx context.Context, metric *database.BatchDeliveryMetric) error {
	return nil
}

func (e *Noop) ListBatchDeliveryMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.BatchDeliveryMetric, int64, error) {
	return []*database.BatchDeliveryMetric{}, 0, nil
}

func (e *Noop) DeleteBatchDeliveryMetricsOlderThanNDays(ctx context.Context, n int64) error {
	return nil
}

func (e *Noop) HealthCheck() error {
	return nil
}
