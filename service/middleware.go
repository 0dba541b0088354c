package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/negroni"

	"github.com/kava-labs/webhook-batch-proxy/config"
	"github.com/kava-labs/webhook-batch-proxy/decode"
	"github.com/kava-labs/webhook-batch-proxy/logging"
	"github.com/kava-labs/webhook-batch-proxy/service/batchmdw"
)

const (
	DestinationContextKey = "X-WEBHOOK-PROXY-DESTINATION"
	PayloadContextKey     = "X-WEBHOOK-PROXY-DECODED-PAYLOAD"
)

// createAccessLogMiddleware returns a handler that logs every request
// along with the status and latency of its response.
// Webhook paths contain the webhook token so they are logged as the destination fingerprint.
func createAccessLogMiddleware(h http.HandlerFunc, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestStartedAt := time.Now()

		lrw := negroni.NewResponseWriter(w)

		h.ServeHTTP(lrw, r)

		event := serviceLogger.Info().
			Str("method", r.Method).
			Int("status", lrw.Status()).
			Int("bytes", lrw.Size()).
			Dur("latency", time.Since(requestStartedAt)).
			Str("remote_addr", r.RemoteAddr)

		if destination, err := decode.ValidateRequestPath(r.URL); err == nil {
			event = event.Str("destination", destination.Fingerprint())
		} else {
			event = event.Str("path", redactedPath(r.URL.Path))
		}

		if batchSize := lrw.Header().Get(batchmdw.BatchSizeHeaderKey); batchSize != "" {
			event = event.Str("batch_size", batchSize)
		}

		event.Msg("request handled")
	}
}

// createDecodeRequestMiddleware returns a handler that validates the destination
// addressed by the request and decodes its message, rejecting requests
// that can't be batched. On success the destination and payload are added to
// the request context under DestinationContextKey and PayloadContextKey.
func createDecodeRequestMiddleware(next http.HandlerFunc, config config.Config, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		destination, err := decode.ValidateRequestPath(r.URL)
		if err != nil {
			batchmdw.WriteError(w, http.StatusNotFound, batchmdw.ErrorCodeInvalidPath, err.Error())
			return
		}

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			batchmdw.WriteError(w, http.StatusMethodNotAllowed, batchmdw.ErrorCodeMethodNotAllowed, "Method not allowed.")
			return
		}

		if !isJSONContentType(r.Header.Get("Content-Type")) {
			batchmdw.WriteError(w, http.StatusUnsupportedMediaType, batchmdw.ErrorCodeUnsupportedMedia, "Content-Type must be application/json.")
			return
		}

		rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				batchmdw.WriteError(w, http.StatusRequestEntityTooLarge, batchmdw.ErrorCodeBodyTooLarge, "Request body too large.")
				return
			}

			serviceLogger.Debug().Err(err).Msg("error reading request body")
			batchmdw.WriteError(w, http.StatusBadRequest, batchmdw.ErrorCodeInvalidBody, "Failed to read request body.")
			return
		}

		payload, err := decode.DecodePayload(rawBody)
		if err != nil {
			serviceLogger.Debug().Err(err).Str("destination", destination.Fingerprint()).Msg("rejecting undeliverable message")
			batchmdw.WriteError(w, http.StatusBadRequest, batchmdw.ErrorCodeInvalidBody, payloadErrorMessage(err))
			return
		}

		ctx := context.WithValue(r.Context(), DestinationContextKey, destination)
		ctx = context.WithValue(ctx, PayloadContextKey, payload)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// redactedPath drops everything after the webhooks segment,
// an invalid request may still carry a real token
func redactedPath(path string) string {
	if i := strings.Index(path, "/webhooks/"); i >= 0 {
		return path[:i] + "/webhooks/[REDACTED]"
	}

	return path
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)

	return err == nil && mediaType == "application/json"
}

func payloadErrorMessage(err error) string {
	switch {
	case errors.Is(err, decode.ErrEmptyBody):
		return "Request body is empty."
	case errors.Is(err, decode.ErrEmptyMessage):
		return "Cannot send an empty message."
	default:
		return "Invalid JSON body."
	}
}
