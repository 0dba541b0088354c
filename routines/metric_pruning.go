// package routines provides configuration and logic
// for running background routines such as metric pruning
// for removing historical batch delivery metrics
package routines

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/webhook-batch-proxy/clients/database"
	"github.com/kava-labs/webhook-batch-proxy/logging"
)

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval       time.Duration
	StartDelay     time.Duration
	MaxHistoryDays int64
	Database       database.MetricsDatabase
	Logger         *logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical batch delivery metrics
type MetricPruningRoutine struct {
	id             string
	interval       time.Duration
	startDelay     time.Duration
	maxHistoryDays int64
	db             database.MetricsDatabase
	*logging.ServiceLogger
}

// Run runs the metric pruning routine until ctx is done, returning
// an error channel which any errors encountered while pruning will be sent on.
// The channel is closed once the routine stops.
func (mpr *MetricPruningRoutine) Run(ctx context.Context) <-chan error {
	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		select {
		case <-time.After(mpr.startDelay):
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(mpr.interval)
		defer ticker.Stop()

		for {
			mpr.prune(ctx, errorChannel)

			select {
			case tick := <-ticker.C:
				mpr.Trace().Msg(fmt.Sprintf("%s tick at %+v", mpr.id, tick))
			case <-ctx.Done():
				return
			}
		}
	}()

	return errorChannel
}

func (mpr *MetricPruningRoutine) prune(ctx context.Context, errorChannel chan<- error) {
	err := mpr.db.DeleteBatchDeliveryMetricsOlderThanNDays(ctx, mpr.maxHistoryDays)
	if err == nil {
		mpr.Debug().Str("routine_id", mpr.id).Int64("max_history_days", mpr.maxHistoryDays).Msg("pruned batch delivery metrics")
		return
	}

	mpr.Error().Err(err).Str("routine_id", mpr.id).Msg("error pruning batch delivery metrics")

	// a reader that fell behind misses errors rather than stalling the routine
	select {
	case errorChannel <- err:
	default:
	}
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Database == nil {
		return nil, fmt.Errorf("metric pruning routine requires a database")
	}

	if config.Interval <= 0 {
		return nil, fmt.Errorf("invalid metric pruning interval %s, must be greater than zero", config.Interval)
	}

	if config.MaxHistoryDays < 1 {
		return nil, fmt.Errorf("invalid metric pruning max history days %d, must be at least 1", config.MaxHistoryDays)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &MetricPruningRoutine{
		id:             uuid.New().String(),
		interval:       config.Interval,
		startDelay:     config.StartDelay,
		maxHistoryDays: config.MaxHistoryDays,
		db:             config.Database,
		ServiceLogger:  logger,
	}, nil
}
