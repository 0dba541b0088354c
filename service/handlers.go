package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kava-labs/webhook-batch-proxy/service/batchmdw"
)

const (
	// bound on how long dependency checks may take
	healthcheckTimeout = 5 * time.Second

	defaultDeliveriesPageSize = 100
	maxDeliveriesPageSize     = 1000
)

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the proxy service is able to reach the metrics
// database and (when enabled) the rejected destination cache
func createHealthcheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/healthcheck called")

		ctx, cancel := context.WithTimeout(r.Context(), healthcheckTimeout)
		defer cancel()

		var combinedErrors error

		if err := service.Database.HealthCheck(); err != nil {
			service.Error().Err(err).Msg("database healthcheck failed")
			combinedErrors = errors.Join(combinedErrors, fmt.Errorf("proxy service unable to connect to database"))
		}

		if service.Cache.IsCacheEnabled() {
			if err := service.Cache.Healthcheck(ctx); err != nil {
				service.Error().Err(err).Msg("cache healthcheck failed")
				combinedErrors = errors.Join(combinedErrors, fmt.Errorf("proxy service unable to connect to cache: %v", err))
			}
		}

		if combinedErrors != nil {
			writeText(w, http.StatusInternalServerError, combinedErrors.Error())
			return
		}

		writeText(w, http.StatusOK, "proxy service is healthy")
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok while the proxy service accepts messages and
// 503 once it has begun shutting down
func createServicecheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/servicecheck called")

		if service.Accumulator.Closed() {
			writeText(w, http.StatusServiceUnavailable, "proxy service is shutting down")
			return
		}

		writeText(w, http.StatusOK, "proxy service is in service")
	}
}

// createBatchStatusHandler creates a handler responding
// with the number of batches and messages waiting to be delivered
func createBatchStatusHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := service.Accumulator.Stats()

		response := BatchStatusResponse{
			OpenBatches:     stats.OpenBatches,
			PendingMessages: stats.PendingMessages,
			Accepting:       !service.Accumulator.Closed(),
		}

		if err := MarshalJSONResponse(&response, w); err != nil {
			service.Error().Err(err).Msg(fmt.Sprintf("error encoding %+v to json", response))
		}
	}
}

// createDeliveriesHandler creates a handler responding with a page of
// recorded batch deliveries, oldest first, starting after the `cursor` query parameter
func createDeliveriesHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		cursor, limit, err := parsePage(r)
		if err != nil {
			batchmdw.WriteError(w, http.StatusBadRequest, batchmdw.ErrorCodeInvalidBody, err.Error())
			return
		}

		metrics, nextCursor, err := service.Database.ListBatchDeliveryMetricsWithPagination(r.Context(), cursor, limit)
		if err != nil {
			service.Error().Err(err).Msg("error listing batch delivery metrics")
			writeText(w, http.StatusInternalServerError, "unable to list batch deliveries")
			return
		}

		response := DeliveriesResponse{
			Deliveries: make([]BatchDeliveryMetric, 0, len(metrics)),
			NextCursor: nextCursor,
		}

		for _, metric := range metrics {
			response.Deliveries = append(response.Deliveries, BatchDeliveryMetric{
				ID:                     metric.ID,
				DeliveryID:             metric.DeliveryID.String(),
				WebhookID:              metric.WebhookID,
				DestinationFingerprint: metric.DestinationFingerprint,
				BatchSize:              metric.BatchSize,
				EmbedCount:             metric.EmbedCount,
				BatchCreatedAt:         metric.BatchCreatedAt,
				DeliveredAt:            metric.DeliveredAt,
				LatencyMilliseconds:    metric.LatencyMilliseconds,
				WaitMilliseconds:       metric.WaitMilliseconds(),
				UpstreamStatus:         metric.UpstreamStatus,
				Failed:                 metric.Failed,
				Error:                  metric.Error,
			})
		}

		if err := MarshalJSONResponse(&response, w); err != nil {
			service.Error().Err(err).Msg("error encoding batch deliveries to json")
		}
	}
}

func parsePage(r *http.Request) (int64, int, error) {
	query := r.URL.Query()

	var cursor int64
	if raw := query.Get("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("Invalid cursor parameter.")
		}
		cursor = parsed
	}

	limit := defaultDeliveriesPageSize
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxDeliveriesPageSize {
			return 0, 0, fmt.Errorf("Invalid limit parameter, must be between 1 and %d.", maxDeliveriesPageSize)
		}
		limit = parsed
	}

	return cursor, limit, nil
}

func writeText(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(message))
}

// MarshalJSONResponse marshals an interface into the response body and sets JSON content type headers
func MarshalJSONResponse(obj interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(obj)
}
