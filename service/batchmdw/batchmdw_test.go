package batchmdw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/webhook-batch-proxy/logging"
)

const (
	testContextKeyDestination = "TEST-DESTINATION"
	testContextKeyPayload     = "TEST-PAYLOAD"
)

func newTestMiddleware(accumulator *Accumulator) http.HandlerFunc {
	return CreateBatchingMiddleware(&BatchMiddlewareConfig{
		ServiceLogger:         logging.Nop(),
		Accumulator:           accumulator,
		ContextKeyDestination: testContextKeyDestination,
		ContextKeyPayload:     testContextKeyPayload,
	})
}

func decodedRequest(values map[string]interface{}) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/111111/token-a", nil)

	ctx := r.Context()
	for key, value := range values {
		ctx = context.WithValue(ctx, key, value)
	}

	return r.WithContext(ctx)
}

func TestUnitTestBatchingMiddlewareWritesBatchReply(t *testing.T) {
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: 10 * time.Millisecond, MessageLimit: 10}, newRecordingDispatcher())
	handler := newTestMiddleware(accumulator)

	w := httptest.NewRecorder()
	handler(w, decodedRequest(map[string]interface{}{
		testContextKeyDestination: destinationA,
		testContextKeyPayload:     textPayload("hello"),
	}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnitTestBatchingMiddlewareRejectsWhenClosed(t *testing.T) {
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 10}, newRecordingDispatcher())
	require.NoError(t, accumulator.Close(context.Background()))

	handler := newTestMiddleware(accumulator)

	w := httptest.NewRecorder()
	handler(w, decodedRequest(map[string]interface{}{
		testContextKeyDestination: destinationA,
		testContextKeyPayload:     textPayload("hello"),
	}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrorCodeShuttingDown, body.Code)
}

func TestUnitTestBatchingMiddlewareRequiresDecodedRequest(t *testing.T) {
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 10}, newRecordingDispatcher())
	handler := newTestMiddleware(accumulator)

	w := httptest.NewRecorder()
	handler(w, decodedRequest(map[string]interface{}{testContextKeyDestination: destinationA}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, AccumulatorStats{}, accumulator.Stats())
}

func TestUnitTestBatchingMiddlewareReturnsWhenCallerGoesAway(t *testing.T) {
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 10}, newRecordingDispatcher())
	handler := newTestMiddleware(accumulator)

	r := decodedRequest(map[string]interface{}{
		testContextKeyDestination: destinationA,
		testContextKeyPayload:     textPayload("hello"),
	})
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		handler(httptest.NewRecorder(), r.WithContext(ctx))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after the caller went away")
	}

	// the message stays queued for delivery
	assert.Equal(t, AccumulatorStats{OpenBatches: 1, PendingMessages: 1}, accumulator.Stats())
}

func TestUnitTestReplyWrite(t *testing.T) {
	reply := NewErrorReply(http.StatusNotFound, ErrorCodeInvalidPath, "Missing webhook token.")

	w := httptest.NewRecorder()
	reply.Write(w)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Missing webhook token.","code":100}`, w.Body.String())
}

func TestUnitTestReplyIsDestinationRejection(t *testing.T) {
	for status, expected := range map[int]bool{
		http.StatusNotFound:            true,
		http.StatusUnauthorized:        true,
		http.StatusForbidden:           false,
		http.StatusTooManyRequests:     false,
		http.StatusBadGateway:          false,
		http.StatusNoContent:           false,
		http.StatusInternalServerError: false,
	} {
		assert.Equal(t, expected, (&Reply{StatusCode: status}).IsDestinationRejection(), status)
	}
}
