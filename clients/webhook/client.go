// package webhook provides a client for delivering
// message payloads to an upstream webhook endpoint
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kava-labs/webhook-batch-proxy/decode"
	"github.com/kava-labs/webhook-batch-proxy/logging"
)

// Response is an upstream response with its body fully read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestError provides additional details about a delivery
// that failed before a response was received
type RequestError struct {
	message     string
	Fingerprint string
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// ClientConfig wraps values used to create a new Client
type ClientConfig struct {
	// Endpoint is the base url webhook ids and tokens are appended to
	Endpoint string
	// UserAgent is sent with every delivery, discord requires one
	UserAgent string
}

// Client delivers json bodies to webhook destinations
type Client struct {
	*http.Client
	config ClientConfig
	logger *logging.ServiceLogger
}

// NewClient creates a new Client using the provided config
// and http client (http.DefaultClient if nil)
func NewClient(config ClientConfig, httpClient *http.Client, logger *logging.ServiceLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		Client: httpClient,
		config: config,
		logger: logger,
	}
}

// Execute POSTs body to the destination, returning the upstream response
// regardless of its status, or an error if no response was received.
// Deadlines are controlled by ctx.
func (c *Client) Execute(ctx context.Context, destination decode.Destination, body []byte) (*Response, error) {
	fingerprint := destination.Fingerprint()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, destination.URL(c.config.Endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{
			Fingerprint: fingerprint,
			message:     fmt.Sprintf("error creating delivery request: %s", err),
		}
	}

	request.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		request.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Trace().Str("destination", fingerprint).Int("body_bytes", len(body)).Msg("delivering payload upstream")

	response, err := c.Do(request)
	if err != nil {
		return nil, &RequestError{
			Fingerprint: fingerprint,
			// the error text includes the request url and with it the webhook token
			message: fmt.Sprintf("error delivering payload: %s", redact(err, destination)),
		}
	}

	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &RequestError{
			Fingerprint: fingerprint,
			message:     fmt.Sprintf("error reading upstream response: %s", redact(err, destination)),
		}
	}

	c.logger.Trace().Str("destination", fingerprint).Int("status", response.StatusCode).Msg("upstream responded")

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header.Clone(),
		Body:       responseBody,
	}, nil
}

func redact(err error, destination decode.Destination) string {
	if destination.WebhookToken == "" {
		return err.Error()
	}

	return strings.ReplaceAll(err.Error(), destination.WebhookToken, "<token>")
}
