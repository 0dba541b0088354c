package batchmdw

import (
	"net/http"

	"github.com/kava-labs/webhook-batch-proxy/decode"
	"github.com/kava-labs/webhook-batch-proxy/logging"
)

type BatchMiddlewareConfig struct {
	ServiceLogger *logging.ServiceLogger
	Accumulator   *Accumulator

	ContextKeyDestination string
	ContextKeyPayload     string
}

// CreateBatchingMiddleware joins the decoded request into a batch for its destination
// and writes the batch's reply once it has been delivered.
// Earlier middleware must have set the decoded destination and payload on the request context.
func CreateBatchingMiddleware(config *BatchMiddlewareConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		destination, ok := r.Context().Value(config.ContextKeyDestination).(decode.Destination)
		if !ok {
			LogCannotCastRequestError(config.ServiceLogger, config.ContextKeyDestination, r)
			WriteError(w, http.StatusNotFound, ErrorCodeInvalidPath, decode.ErrInvalidPath.Error())
			return
		}

		payload, ok := r.Context().Value(config.ContextKeyPayload).(decode.Payload)
		if !ok {
			LogCannotCastRequestError(config.ServiceLogger, config.ContextKeyPayload, r)
			WriteError(w, http.StatusBadRequest, ErrorCodeInvalidBody, "Invalid message body.")
			return
		}

		replies, err := config.Accumulator.Join(destination, payload)
		if err != nil {
			config.ServiceLogger.Debug().Err(err).Msg("message not accepted")
			WriteError(w, http.StatusServiceUnavailable, ErrorCodeShuttingDown, "Service is shutting down.")
			return
		}

		select {
		case reply := <-replies:
			reply.Write(w)
		case <-r.Context().Done():
			// the message is still delivered with its batch
			config.ServiceLogger.Debug().
				Str("destination", destination.Fingerprint()).
				Msg("caller went away before its batch was delivered")
		}
	}
}

// LogCannotCastRequestError logs a missing or mistyped context value
func LogCannotCastRequestError(serviceLogger *logging.ServiceLogger, key string, r *http.Request) {
	serviceLogger.Error().
		Str("context_key", key).
		Str("path", r.URL.Path).
		Msg("can't cast request context value to expected type")
}
