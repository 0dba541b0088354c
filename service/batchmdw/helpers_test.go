package batchmdw

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/webhook-batch-proxy/clients/database"
	"github.com/kava-labs/webhook-batch-proxy/clients/webhook"
	"github.com/kava-labs/webhook-batch-proxy/decode"
)

var (
	destinationA = decode.Destination{WebhookID: "111111", WebhookToken: "token-a"}
	destinationB = decode.Destination{WebhookID: "222222", WebhookToken: "token-b"}
)

func textPayload(content string) decode.Payload {
	return decode.Payload{Content: &content}
}

func embedPayload(count int) decode.Payload {
	embeds := make([]json.RawMessage, count)
	for i := range embeds {
		embeds[i] = json.RawMessage(`{"title":"embed"}`)
	}

	return decode.Payload{Embeds: embeds}
}

func contents(batch *Batch) []string {
	var result []string
	for _, payload := range batch.Payloads() {
		if payload.Content != nil {
			result = append(result, *payload.Content)
		}
	}

	return result
}

// recordingDispatcher resolves every batch with a 200 and records it
type recordingDispatcher struct {
	batches chan *Batch
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{batches: make(chan *Batch, 1024)}
}

func (d *recordingDispatcher) Dispatch(batch *Batch) {
	batch.resolve(&Reply{StatusCode: http.StatusOK, Header: http.Header{}})
	d.batches <- batch
}

func (d *recordingDispatcher) next(t *testing.T, timeout time.Duration) *Batch {
	t.Helper()

	select {
	case batch := <-d.batches:
		return batch
	case <-time.After(timeout):
		t.Fatalf("no batch dispatched within %s", timeout)
		return nil
	}
}

func (d *recordingDispatcher) requireNone(t *testing.T, wait time.Duration) {
	t.Helper()

	select {
	case batch := <-d.batches:
		t.Fatalf("unexpected batch dispatched with %d messages", batch.Size())
	case <-time.After(wait):
	}
}

func awaitReply(t *testing.T, replies <-chan *Reply) *Reply {
	t.Helper()

	select {
	case reply := <-replies:
		require.NotNil(t, reply)
		return reply
	case <-time.After(2 * time.Second):
		t.Fatal("no reply received")
		return nil
	}
}

// fakeDeliverer records delivered bodies and answers with a fixed response or error
type fakeDeliverer struct {
	mu       sync.Mutex
	bodies   [][]byte
	response *webhook.Response
	err      error
}

func (f *fakeDeliverer) Execute(ctx context.Context, destination decode.Destination, body []byte) (*webhook.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bodies = append(f.bodies, body)

	if f.err != nil {
		return nil, f.err
	}

	return f.response, nil
}

func (f *fakeDeliverer) delivered() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([][]byte(nil), f.bodies...)
}

// fakeMetricsDatabase collects saved metrics
type fakeMetricsDatabase struct {
	saved chan *database.BatchDeliveryMetric
}

func (f *fakeMetricsDatabase) SaveBatchDeliveryMetric(ctx context.Context, metric *database.BatchDeliveryMetric) error {
	f.saved <- metric
	return nil
}

func (f *fakeMetricsDatabase) ListBatchDeliveryMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.BatchDeliveryMetric, int64, error) {
	return nil, 0, nil
}

func (f *fakeMetricsDatabase) DeleteBatchDeliveryMetricsOlderThanNDays(ctx context.Context, n int64) error {
	return nil
}

func (f *fakeMetricsDatabase) HealthCheck() error {
	return nil
}

// fakeRejectionRecorder collects rejected destinations
type fakeRejectionRecorder struct {
	rejected chan decode.Destination
}

func (f *fakeRejectionRecorder) RecordRejection(ctx context.Context, destination decode.Destination, reply *Reply) error {
	f.rejected <- destination
	return nil
}
