package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kava-labs/webhook-batch-proxy/logging"
	"github.com/kava-labs/webhook-batch-proxy/service/batchmdw"
)

// ProxyServiceClient provides a client for the
// operational endpoints of the proxy service
type ProxyServiceClient struct {
	*http.Client
	baseURL string
	logger  *logging.ServiceLogger
}

// ProxyServiceClientConfig wraps values used to
// create a new ProxyServiceClient
type ProxyServiceClientConfig struct {
	ProxyServiceHostname string
	// Logger receives every response body at TRACE level, optional
	Logger *logging.ServiceLogger
}

// NewProxyServiceClient creates a new ProxyServiceClient
// using the provided config, returning the client and error (if any)
func NewProxyServiceClient(config ProxyServiceClientConfig) (*ProxyServiceClient, error) {
	if config.ProxyServiceHostname == "" {
		return nil, fmt.Errorf("proxy service hostname must be set")
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &ProxyServiceClient{
		Client:  &http.Client{},
		baseURL: strings.TrimSuffix(config.ProxyServiceHostname, "/"),
		logger:  logger,
	}, nil
}

// GetBatchStatus calls `BatchStatusPath` to
// get the number of batches and messages waiting to be delivered
func (c *ProxyServiceClient) GetBatchStatus(ctx context.Context) (BatchStatusResponse, error) {
	var response BatchStatusResponse

	err := c.getJSON(ctx, BatchStatusPath, &response)

	return response, err
}

// ListDeliveries calls `DeliveriesPath` to get up to limit recorded
// batch deliveries after cursor, a limit of zero uses the server default
func (c *ProxyServiceClient) ListDeliveries(ctx context.Context, cursor int64, limit int) (DeliveriesResponse, error) {
	var response DeliveriesResponse

	query := url.Values{}
	query.Set("cursor", strconv.FormatInt(cursor, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	err := c.getJSON(ctx, DeliveriesPath+"?"+query.Encode(), &response)

	return response, err
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
	// Code is the proxy service error code, zero when the body carried none
	Code int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

func (c *ProxyServiceClient) getJSON(ctx context.Context, path string, result interface{}) error {
	requestURL := c.baseURL + path

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return &RequestError{URL: requestURL, message: err.Error()}
	}

	response, err := c.Do(request)
	if err != nil {
		return &RequestError{URL: requestURL, message: err.Error()}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return &RequestError{URL: requestURL, StatusCode: response.StatusCode, message: err.Error()}
	}

	c.logger.Trace().Str("url", requestURL).Int("status", response.StatusCode).Bytes("body", body).Msg("proxy service response")

	if response.StatusCode < 200 || response.StatusCode > 299 {
		requestErr := &RequestError{
			URL:        requestURL,
			StatusCode: response.StatusCode,
			message:    fmt.Sprintf("request to %s error server http error %d", requestURL, response.StatusCode),
		}

		var errorResponse batchmdw.ErrorResponse
		if json.Unmarshal(body, &errorResponse) == nil && errorResponse.Error != "" {
			requestErr.Code = errorResponse.Code
			requestErr.message += ": " + errorResponse.Error
		}

		return requestErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &RequestError{URL: requestURL, StatusCode: response.StatusCode, message: err.Error()}
	}

	return nil
}
