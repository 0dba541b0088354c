package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ValidLogLevels = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var validLogLevel bool
	var allErrs error

	for _, validLevel := range ValidLogLevels {
		if config.LogLevel == validLevel {
			validLogLevel = true
			break
		}
	}

	if !validLogLevel {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	_, err := strconv.Atoi(config.ProxyServicePort)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_SERVICE_PORT_ENVIRONMENT_KEY, config.ProxyServicePort))
	}

	if config.ExecutionTimeout <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", EXECUTION_TIMEOUT_MS_ENVIRONMENT_KEY, config.ExecutionTimeout))
	}

	if config.BatchMessageLimit < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT_ENVIRONMENT_KEY, config.BatchMessageLimit))
	}

	if err := validateWebhookEndpoint(config.WebhookEndpoint); err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s: %w", DISCORD_WEBHOOK_ENDPOINT_ENVIRONMENT_KEY, config.WebhookEndpoint, err))
	}

	if config.UpstreamDeliveryTimeout <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", UPSTREAM_DELIVERY_TIMEOUT_SECONDS_ENVIRONMENT_KEY, config.UpstreamDeliveryTimeout))
	}

	if config.MaxRequestBodyBytes < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", MAX_REQUEST_BODY_BYTES_ENVIRONMENT_KEY, config.MaxRequestBodyBytes))
	}

	if config.CacheEnabled {
		if config.CacheTTL <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", CACHE_TTL_ENVIRONMENT_KEY, config.CacheTTL))
		}
		if strings.Contains(config.CachePrefix, ":") {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not contain colon symbol", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
		if config.CachePrefix == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
		if config.RedisEndpointURL == "" && config.CacheMemorySize < 1 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1 when %s is empty", CACHE_MEMORY_SIZE_ENVIRONMENT_KEY, config.CacheMemorySize, REDIS_ENDPOINT_URL_ENVIRONMENT_KEY))
		}
	}

	if config.MetricDatabaseEnabled {
		if config.DatabaseEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY, config.DatabaseEndpointURL))
		}
		if config.DatabaseUserName == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", DATABASE_USERNAME_ENVIRONMENT_KEY, config.DatabaseUserName))
		}
		if config.MetricPruningEnabled && config.MetricPruningMaxHistoryDays < 1 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", METRIC_PRUNING_MAX_HISTORY_DAYS_ENVIRONMENT_KEY, config.MetricPruningMaxHistoryDays))
		}
		if config.MetricPruningEnabled && config.MetricPruningRoutineInterval <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, config.MetricPruningRoutineInterval))
		}
	}

	return allErrs
}

// validateWebhookEndpoint requires an absolute http(s) url
func validateWebhookEndpoint(raw string) error {
	endpoint, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", endpoint.Scheme)
	}

	if endpoint.Host == "" {
		return errors.New("host must not be empty")
	}

	return nil
}
