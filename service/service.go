// package service provides functions and methods
// for creating and running the api of the proxy service
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kava-labs/webhook-batch-proxy/clients/cache"
	"github.com/kava-labs/webhook-batch-proxy/clients/database"
	"github.com/kava-labs/webhook-batch-proxy/clients/webhook"
	"github.com/kava-labs/webhook-batch-proxy/config"
	"github.com/kava-labs/webhook-batch-proxy/logging"
	"github.com/kava-labs/webhook-batch-proxy/service/batchmdw"
	"github.com/kava-labs/webhook-batch-proxy/service/cachemdw"
)

const (
	HealthcheckPath  = "/healthcheck"
	ServicecheckPath = "/servicecheck"
	BatchStatusPath  = "/status/batches"
	DeliveriesPath   = "/status/deliveries"

	userAgent = "DiscordBot (https://github.com/kava-labs/webhook-batch-proxy, 1.0)"
)

// ProxyService represents an instance of the proxy service API
type ProxyService struct {
	httpProxy   *http.Server
	Database    database.MetricsDatabase
	Cache       *cachemdw.ServiceCache
	Accumulator *batchmdw.Accumulator
	Dispatcher  *batchmdw.Dispatcher
	*logging.ServiceLogger
}

// New returns a new ProxyService with the specified config and error (if any).
// db and cacheClient may be the noop / in-memory implementations
// when metrics or a shared cache are not configured.
func New(config config.Config, serviceLogger *logging.ServiceLogger, db database.MetricsDatabase, cacheClient cache.Cache) (ProxyService, error) {
	service := ProxyService{
		Database:      db,
		ServiceLogger: serviceLogger,
	}

	webhookClient := webhook.NewClient(webhook.ClientConfig{
		Endpoint:  config.WebhookEndpoint,
		UserAgent: userAgent,
	}, &http.Client{}, serviceLogger.Named("webhook"))

	service.Cache = cachemdw.NewServiceCache(
		cacheClient,
		DestinationContextKey,
		config.CachePrefix,
		config.CacheEnabled,
		config.CacheTTL,
		serviceLogger.Named("cache"),
	)

	dispatcherConfig := batchmdw.DispatcherConfig{
		DeliveryTimeout: config.UpstreamDeliveryTimeout,
		Logger:          serviceLogger.Named("dispatcher"),
		MetricsDatabase: db,
	}

	if config.CacheEnabled {
		dispatcherConfig.Rejections = service.Cache
	}

	service.Dispatcher = batchmdw.NewDispatcher(webhookClient, dispatcherConfig)

	service.Accumulator = batchmdw.NewAccumulator(batchmdw.AccumulatorConfig{
		FlushAfter:   config.ExecutionTimeout,
		MessageLimit: config.BatchMessageLimit,
		Logger:       serviceLogger.Named("accumulator"),
	}, service.Dispatcher)

	// create an http router for registering handlers for a given route
	mux := http.NewServeMux()

	// last middleware in the chain: join the batch and wait for its reply
	batchingMiddleware := batchmdw.CreateBatchingMiddleware(&batchmdw.BatchMiddlewareConfig{
		ServiceLogger:         serviceLogger,
		Accumulator:           service.Accumulator,
		ContextKeyDestination: DestinationContextKey,
		ContextKeyPayload:     PayloadContextKey,
	})

	// answer requests for destinations upstream already rejected
	isCachedMiddleware := service.Cache.IsCachedMiddleware(batchingMiddleware)

	// validate the destination and decode the message
	decodeRequestMiddleware := createDecodeRequestMiddleware(isCachedMiddleware, config, serviceLogger)

	// first middleware in the chain: log every request and its outcome
	accessLogMiddleware := createAccessLogMiddleware(decodeRequestMiddleware, serviceLogger)

	// register the middleware chain as the default handler for any request
	mux.HandleFunc("/", accessLogMiddleware)

	mux.HandleFunc(HealthcheckPath, createHealthcheckHandler(&service))
	mux.HandleFunc(ServicecheckPath, createServicecheckHandler(&service))
	mux.HandleFunc(BatchStatusPath, createBatchStatusHandler(&service))
	mux.HandleFunc(DeliveriesPath, createDeliveriesHandler(&service))

	// create an http server for the caller to start at their own discretion
	service.httpProxy = &http.Server{
		Addr:    fmt.Sprintf(":%s", config.ProxyServicePort),
		Handler: mux,
	}

	return service, nil
}

// Run runs the proxy service, returning error (if any) in the event
// the proxy service stops for any reason other than Shutdown
func (p *ProxyService) Run() error {
	p.Info().Str("addr", p.httpProxy.Addr).Msg("proxy service listening")

	err := p.httpProxy.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown stops accepting messages, delivers every open batch so that no caller is
// left waiting, gracefully stops the http server and waits for the metrics and
// rejections of the final deliveries to be stored. The database and cache
// may be closed once it returns.
func (p *ProxyService) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := p.Accumulator.Close(ctx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("error flushing open batches: %w", err))
	}

	if err := p.httpProxy.Shutdown(ctx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("error stopping http server: %w", err))
	}

	if err := p.Dispatcher.Wait(ctx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("error waiting for delivery records: %w", err))
	}

	return shutdownErr
}
