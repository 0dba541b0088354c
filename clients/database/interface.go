package database

import "context"

// MetricsDatabase stores a record of every batch delivered upstream
type MetricsDatabase interface {
	SaveBatchDeliveryMetric(ctx context.Context, metric *BatchDeliveryMetric) error
	ListBatchDeliveryMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*BatchDeliveryMetric, int64, error)
	DeleteBatchDeliveryMetricsOlderThanNDays(ctx context.Context, n int64) error
	HealthCheck() error
}
