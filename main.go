// package main reads & validates configuration for the proxy service
// and if the config is valid starts and monitors an instance of the proxy service
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kava-labs/webhook-batch-proxy/clients/cache"
	"github.com/kava-labs/webhook-batch-proxy/clients/database"
	"github.com/kava-labs/webhook-batch-proxy/clients/database/noop"
	"github.com/kava-labs/webhook-batch-proxy/clients/database/postgres"
	"github.com/kava-labs/webhook-batch-proxy/clients/database/postgres/migrations"
	"github.com/kava-labs/webhook-batch-proxy/config"
	"github.com/kava-labs/webhook-batch-proxy/logging"
	"github.com/kava-labs/webhook-batch-proxy/routines"
	"github.com/kava-labs/webhook-batch-proxy/service"
)

// bound on flushing open batches and draining requests on shutdown
const shutdownTimeout = 30 * time.Second

var (
	serviceConfig config.Config
	serviceLogger logging.ServiceLogger
)

func init() {
	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel)

	if err != nil {
		panic(err)
	}
}

// createMetricsDatabase returns the postgres client when metric storage is enabled,
// waiting for the database to accept connections and running migrations if configured
func createMetricsDatabase(ctx context.Context) (database.MetricsDatabase, error) {
	if !serviceConfig.MetricDatabaseEnabled {
		serviceLogger.Info().Msg("metric database disabled, batch delivery metrics will not be stored")
		return noop.New(), nil
	}

	client, err := postgres.NewClient(postgres.DatabaseConfig{
		DatabaseName:                     serviceConfig.DatabaseName,
		DatabaseEndpointURL:              serviceConfig.DatabaseEndpointURL,
		DatabaseUsername:                 serviceConfig.DatabaseUserName,
		DatabasePassword:                 serviceConfig.DatabasePassword,
		ReadTimeoutSeconds:               serviceConfig.DatabaseReadTimeoutSeconds,
		WriteTimeoutSeconds:              serviceConfig.DatabaseWriteTimeoutSeconds,
		DatabaseMaxIdleConnections:       serviceConfig.DatabaseMaxIdleConnections,
		DatabaseConnectionMaxIdleSeconds: serviceConfig.DatabaseConnectionMaxIdleSeconds,
		DatabaseMaxOpenConnections:       serviceConfig.DatabaseMaxOpenConnections,
		SSLEnabled:                       serviceConfig.DatabaseSSLEnabled,
		QueryLoggingEnabled:              serviceConfig.DatabaseQueryLoggingEnabled,
		Logger:                           serviceLogger.Named("database"),
	})
	if err != nil {
		return nil, err
	}

	if err := client.WaitForConnection(ctx, serviceConfig.DatabaseConnectMaxWait); err != nil {
		return nil, err
	}

	if serviceConfig.RunDatabaseMigrations {
		applied, err := client.Migrate(ctx, migrations.Migrations)
		if err != nil {
			return nil, err
		}

		serviceLogger.Info().Msg(fmt.Sprintf("applied migrations %s", applied))
	}

	return client, nil
}

// createCache returns redis when an endpoint is configured,
// otherwise a cache local to this instance
func createCache() (cache.Cache, error) {
	if serviceConfig.RedisEndpointURL != "" {
		redisConfig := &cache.RedisConfig{
			Address:  serviceConfig.RedisEndpointURL,
			Password: serviceConfig.RedisPassword,
		}

		serviceLogger.Info().Str("redis", redisConfig.String()).Msg("using redis cache")

		return cache.NewRedisCache(redisConfig, serviceLogger.Named("redis"))
	}

	return cache.NewInMemoryCache(serviceConfig.CacheMemorySize)
}

func main() {
	serviceLogger.Debug().Msg(fmt.Sprintf("initial config: %+v", serviceConfig.Redacted()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := createMetricsDatabase(ctx)
	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("error creating metrics database: %v", err))
	}

	cacheClient, err := createCache()
	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("error creating cache: %v", err))
	}

	proxyService, err := service.New(serviceConfig, &serviceLogger, db, cacheClient)
	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", errors.Unwrap(err)))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(proxyService.Run)

	if serviceConfig.MetricDatabaseEnabled && serviceConfig.MetricPruningEnabled {
		pruningRoutine, err := routines.NewMetricPruningRoutine(routines.MetricPruningRoutineConfig{
			Interval:       serviceConfig.MetricPruningRoutineInterval,
			StartDelay:     serviceConfig.MetricPruningRoutineDelayFirstRun,
			MaxHistoryDays: int64(serviceConfig.MetricPruningMaxHistoryDays),
			Database:       db,
			Logger:         serviceLogger.Named("metric-pruning"),
		})
		if err != nil {
			serviceLogger.Panic().Msg(fmt.Sprintf("error creating metric pruning routine: %v", err))
		}

		group.Go(func() error {
			// pruning errors are logged by the routine and retried on the next tick
			for range pruningRoutine.Run(groupCtx) {
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		serviceLogger.Info().Msg("shutting down proxy service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return proxyService.Shutdown(shutdownCtx)
	})

	err = group.Wait()

	// Shutdown has waited for the final delivery records, so the pools can be released.
	// postgres and redis hold connection pools, the noop and in-memory backends don't
	for _, resource := range []interface{}{db, cacheClient} {
		if closer, ok := resource.(io.Closer); ok {
			if closeErr := closer.Close(); closeErr != nil {
				serviceLogger.Error().Err(closeErr).Msg("error releasing connections")
			}
		}
	}

	if err != nil {
		serviceLogger.Error().Err(err).Msg("proxy service stopped with error")
		os.Exit(1)
	}

	serviceLogger.Info().Msg("proxy service stopped")
}
