package batchmdw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/kava-labs/webhook-batch-proxy/clients/database"
	"github.com/kava-labs/webhook-batch-proxy/clients/webhook"
	"github.com/kava-labs/webhook-batch-proxy/decode"
	"github.com/kava-labs/webhook-batch-proxy/logging"
)

const (
	BatchIDHeaderKey      = "X-Batch-Id"
	BatchSizeHeaderKey    = "X-Batch-Size"
	BatchCreatedHeaderKey = "X-Batch-Created"

	// RFC 3339 with millisecond precision
	BatchCreatedTimeFormat = "2006-01-02T15:04:05.000Z07:00"

	// bound on how long recording side effects of a delivery may take
	recordTimeout = 5 * time.Second
)

// Deliverer sends a message body to a destination
type Deliverer interface {
	Execute(ctx context.Context, destination decode.Destination, body []byte) (*webhook.Response, error)
}

// RejectionRecorder is told about replies where upstream refused the destination itself
type RejectionRecorder interface {
	RecordRejection(ctx context.Context, destination decode.Destination, reply *Reply) error
}

// DispatcherConfig wraps values used to create a new Dispatcher
type DispatcherConfig struct {
	// DeliveryTimeout bounds each upstream delivery
	DeliveryTimeout time.Duration
	Logger          *logging.ServiceLogger
	// MetricsDatabase records every delivery, optional
	MetricsDatabase database.MetricsDatabase
	// Rejections records rejected destinations, optional
	Rejections RejectionRecorder
}

// Dispatcher merges and delivers closed batches, sharing the upstream reply with every member
type Dispatcher struct {
	client Deliverer
	config DispatcherConfig
	logger *logging.ServiceLogger
	now    func() time.Time

	// recording tracks rejection and metric writes still in flight
	recording sync.WaitGroup
}

var _ BatchDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a new Dispatcher delivering with client
func NewDispatcher(client Deliverer, config DispatcherConfig) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Dispatcher{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch delivers batch and resolves all of its members.
// Members are always resolved, with a synthesized 502 reply if upstream could not be reached.
func (d *Dispatcher) Dispatch(batch *Batch) {
	deliveryID := uuid.New()
	fingerprint := batch.Destination.Fingerprint()
	startedAt := d.now()

	logger := d.logger.With().
		Str("delivery_id", deliveryID.String()).
		Str("destination", fingerprint).
		Int("size", batch.Size()).
		Logger()

	reply, deliveryErr := d.deliver(batch)

	reply.Header.Set(BatchIDHeaderKey, batch.Key())
	reply.Header.Set(BatchSizeHeaderKey, strconv.Itoa(batch.Size()))
	reply.Header.Set(BatchCreatedHeaderKey, batch.CreatedAt.UTC().Format(BatchCreatedTimeFormat))

	batch.resolve(reply)

	deliveredAt := d.now()
	latency := deliveredAt.Sub(startedAt)

	switch {
	case deliveryErr != nil:
		logger.Error().Err(deliveryErr).Dur("latency", latency).Msg("batch delivery failed")
	case !reply.Successful():
		event := logger.Error().Int("status", reply.StatusCode).Dur("latency", latency)

		var apiError discordgo.APIErrorMessage
		if err := json.Unmarshal(reply.Body, &apiError); err == nil && apiError.Message != "" {
			event = event.Int("upstream_code", apiError.Code).Str("upstream_message", apiError.Message)
		}

		event.Msg("upstream rejected batch")
	default:
		logger.Debug().Int("status", reply.StatusCode).Dur("latency", latency).Msg("batch delivered")
	}

	if d.config.Rejections != nil && reply.IsDestinationRejection() && deliveryErr == nil {
		d.recording.Add(1)
		go d.recordRejection(batch.Destination, reply)
	}

	if d.config.MetricsDatabase != nil {
		metric := &database.BatchDeliveryMetric{
			DeliveryID:             deliveryID,
			WebhookID:              batch.Destination.WebhookID,
			DestinationFingerprint: fingerprint,
			BatchSize:              int64(batch.Size()),
			EmbedCount:             int64(batch.EmbedCount()),
			BatchCreatedAt:         batch.CreatedAt,
			DeliveredAt:            deliveredAt,
			LatencyMilliseconds:    latency.Milliseconds(),
			Failed:                 deliveryErr != nil || !reply.Successful(),
		}

		if deliveryErr == nil {
			metric.UpstreamStatus = reply.StatusCode
		} else {
			errorText := deliveryErr.Error()
			metric.Error = &errorText
		}

		d.recording.Add(1)
		go d.recordMetric(metric)
	}
}

// deliver returns the reply for batch, the error is set when no upstream reply was received
func (d *Dispatcher) deliver(batch *Batch) (*Reply, error) {
	merged := MergePayloads(batch.Payloads())

	body, err := json.Marshal(merged)
	if err != nil {
		return NewErrorReply(http.StatusBadGateway, ErrorCodeUpstreamUnavailable, "Failed to encode merged message."), fmt.Errorf("error encoding merged payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.config.DeliveryTimeout)
	defer cancel()

	response, err := d.client.Execute(ctx, batch.Destination, body)
	if err != nil {
		return NewErrorReply(http.StatusBadGateway, ErrorCodeUpstreamUnavailable, "Failed to deliver message upstream."), err
	}

	return &Reply{
		StatusCode: response.StatusCode,
		Header:     cleanUpstreamHeader(response.Header),
		Body:       response.Body,
	}, nil
}

func (d *Dispatcher) recordRejection(destination decode.Destination, reply *Reply) {
	defer d.recording.Done()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := d.config.Rejections.RecordRejection(ctx, destination, reply); err != nil {
		d.logger.Error().Err(err).Str("destination", destination.Fingerprint()).Msg("error recording rejected destination")
	}
}

func (d *Dispatcher) recordMetric(metric *database.BatchDeliveryMetric) {
	defer d.recording.Done()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := d.config.MetricsDatabase.SaveBatchDeliveryMetric(ctx, metric); err != nil {
		d.logger.Error().Err(err).Str("delivery_id", metric.DeliveryID.String()).Msg("error saving batch delivery metric")
	}
}

// Wait blocks until every rejection and metric write started by Dispatch
// has finished or ctx is done. Storage must stay open until it returns.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.recording.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
