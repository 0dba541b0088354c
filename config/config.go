// package config provides functions and values
// for reading and validating webhook batch proxy configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Config struct {
	LogLevel         string
	ProxyServicePort string

	ExecutionTimeout        time.Duration
	BatchMessageLimit       int
	WebhookEndpoint         string
	UpstreamDeliveryTimeout time.Duration
	MaxRequestBodyBytes     int64

	CacheEnabled     bool
	RedisEndpointURL string
	RedisPassword    string
	CacheMemorySize  int
	CacheTTL         time.Duration
	CachePrefix      string

	MetricDatabaseEnabled            bool
	DatabaseName                     string
	DatabaseEndpointURL              string
	DatabaseUserName                 string
	DatabasePassword                 string
	DatabaseReadTimeoutSeconds       int64
	DatabaseWriteTimeoutSeconds      int64
	DatabaseMaxIdleConnections       int64
	DatabaseConnectionMaxIdleSeconds int64
	DatabaseMaxOpenConnections       int64
	DatabaseSSLEnabled               bool
	DatabaseQueryLoggingEnabled      bool
	DatabaseConnectMaxWait           time.Duration
	RunDatabaseMigrations            bool

	MetricPruningEnabled              bool
	MetricPruningRoutineInterval      time.Duration
	MetricPruningRoutineDelayFirstRun time.Duration
	MetricPruningMaxHistoryDays       int
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                               = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                       = "INFO"
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY                      = "PROXY_SERVICE_PORT"
	DEFAULT_PROXY_SERVICE_PORT                              = "8080"
	EXECUTION_TIMEOUT_MS_ENVIRONMENT_KEY                    = "EXECUTION_TIMEOUT_MS"
	DEFAULT_EXECUTION_TIMEOUT_MS                            = 2000
	DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT_ENVIRONMENT_KEY     = "DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT"
	DEFAULT_DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT             = 10
	DISCORD_WEBHOOK_ENDPOINT_ENVIRONMENT_KEY                = "DISCORD_WEBHOOK_ENDPOINT"
	UPSTREAM_DELIVERY_TIMEOUT_SECONDS_ENVIRONMENT_KEY       = "UPSTREAM_DELIVERY_TIMEOUT_SECONDS"
	DEFAULT_UPSTREAM_DELIVERY_TIMEOUT_SECONDS               = 15
	MAX_REQUEST_BODY_BYTES_ENVIRONMENT_KEY                  = "MAX_REQUEST_BODY_BYTES"
	DEFAULT_MAX_REQUEST_BODY_BYTES                          = 32000
	CACHE_ENABLED_ENVIRONMENT_KEY                           = "CACHE_ENABLED"
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                      = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                          = "REDIS_PASSWORD"
	CACHE_MEMORY_SIZE_ENVIRONMENT_KEY                       = "CACHE_MEMORY_SIZE"
	DEFAULT_CACHE_MEMORY_SIZE                               = 1024
	CACHE_TTL_ENVIRONMENT_KEY                               = "CACHE_TTL_SECONDS"
	DEFAULT_CACHE_TTL_SECONDS                               = 300
	CACHE_PREFIX_ENVIRONMENT_KEY                            = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                    = "webhook-batch-proxy"
	METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY                 = "METRIC_DATABASE_ENABLED"
	DATABASE_NAME_ENVIRONMENT_KEY                           = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                   = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                       = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                       = "DATABASE_PASSWORD"
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                    = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY          = "DATABASE_QUERY_LOGGING_ENABLED"
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY           = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                   = 60
	DATABASE_WRITE_TIMEOUT_SECONDS_ENVIRONMENT_KEY          = "DATABASE_WRITE_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_WRITE_TIMEOUT_SECONDS                  = 10
	DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY           = "DATABASE_MAX_IDLE_CONNECTIONS"
	DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS                   = 5
	DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY    = "DATABASE_CONNECTION_MAX_IDLE_SECONDS"
	DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS            = 5
	DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY           = "DATABASE_MAX_OPEN_CONNECTIONS"
	DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS                   = 20
	DATABASE_CONNECT_MAX_WAIT_SECONDS_ENVIRONMENT_KEY       = "DATABASE_CONNECT_MAX_WAIT_SECONDS"
	DEFAULT_DATABASE_CONNECT_MAX_WAIT_SECONDS               = 30
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                 = "RUN_DATABASE_MIGRATIONS"
	METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY                  = "METRIC_PRUNING_ENABLED"
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS         = 86400
	METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_KEY      = "METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS  = 10
	METRIC_PRUNING_MAX_HISTORY_DAYS_ENVIRONMENT_KEY         = "METRIC_PRUNING_MAX_HISTORY_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_HISTORY_DAYS                 = 45

	redactedPlaceholder = "[REDACTED]"
)

// DefaultWebhookEndpoint is the discord api route that webhook
// ids and tokens are appended to when delivering a batch
var DefaultWebhookEndpoint = strings.TrimSuffix(discordgo.EndpointWebhooks, "/")

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultBool fetches a boolean environment variable value, or if not set
// (or not parseable as a bool) returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultInt fetches an int environment variable value, or if not set
// (or not parseable as an int) returns the fallback value
func EnvOrDefaultInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultInt64 is EnvOrDefaultInt for int64 values
func EnvOrDefaultInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	return Config{
		LogLevel:         EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		ProxyServicePort: EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),

		ExecutionTimeout:        time.Duration(EnvOrDefaultInt(EXECUTION_TIMEOUT_MS_ENVIRONMENT_KEY, DEFAULT_EXECUTION_TIMEOUT_MS)) * time.Millisecond,
		BatchMessageLimit:       EnvOrDefaultInt(DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT_ENVIRONMENT_KEY, DEFAULT_DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT),
		WebhookEndpoint:         strings.TrimSuffix(EnvOrDefault(DISCORD_WEBHOOK_ENDPOINT_ENVIRONMENT_KEY, DefaultWebhookEndpoint), "/"),
		UpstreamDeliveryTimeout: time.Duration(EnvOrDefaultInt(UPSTREAM_DELIVERY_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_UPSTREAM_DELIVERY_TIMEOUT_SECONDS)) * time.Second,
		MaxRequestBodyBytes:     EnvOrDefaultInt64(MAX_REQUEST_BODY_BYTES_ENVIRONMENT_KEY, DEFAULT_MAX_REQUEST_BODY_BYTES),

		CacheEnabled:     EnvOrDefaultBool(CACHE_ENABLED_ENVIRONMENT_KEY, false),
		RedisEndpointURL: EnvOrDefault(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY, ""),
		RedisPassword:    EnvOrDefault(REDIS_PASSWORD_ENVIRONMENT_KEY, ""),
		CacheMemorySize:  EnvOrDefaultInt(CACHE_MEMORY_SIZE_ENVIRONMENT_KEY, DEFAULT_CACHE_MEMORY_SIZE),
		CacheTTL:         time.Duration(EnvOrDefaultInt(CACHE_TTL_ENVIRONMENT_KEY, DEFAULT_CACHE_TTL_SECONDS)) * time.Second,
		CachePrefix:      EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),

		MetricDatabaseEnabled:            EnvOrDefaultBool(METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseName:                     os.Getenv(DATABASE_NAME_ENVIRONMENT_KEY),
		DatabaseEndpointURL:              os.Getenv(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY),
		DatabaseUserName:                 os.Getenv(DATABASE_USERNAME_ENVIRONMENT_KEY),
		DatabasePassword:                 os.Getenv(DATABASE_PASSWORD_ENVIRONMENT_KEY),
		DatabaseReadTimeoutSeconds:       EnvOrDefaultInt64(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS),
		DatabaseWriteTimeoutSeconds:      EnvOrDefaultInt64(DATABASE_WRITE_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_WRITE_TIMEOUT_SECONDS),
		DatabaseMaxIdleConnections:       EnvOrDefaultInt64(DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS),
		DatabaseConnectionMaxIdleSeconds: EnvOrDefaultInt64(DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS),
		DatabaseMaxOpenConnections:       EnvOrDefaultInt64(DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS),
		DatabaseSSLEnabled:               EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:      EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseConnectMaxWait:           time.Duration(EnvOrDefaultInt(DATABASE_CONNECT_MAX_WAIT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECT_MAX_WAIT_SECONDS)) * time.Second,
		RunDatabaseMigrations:            EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, true),

		MetricPruningEnabled:              EnvOrDefaultBool(METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, true),
		MetricPruningRoutineInterval:      time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)) * time.Second,
		MetricPruningRoutineDelayFirstRun: time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS)) * time.Second,
		MetricPruningMaxHistoryDays:       EnvOrDefaultInt(METRIC_PRUNING_MAX_HISTORY_DAYS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_MAX_HISTORY_DAYS),
	}
}

// Redacted returns a copy of the config safe to log,
// with every secret replaced by a placeholder
func (c Config) Redacted() Config {
	redacted := c

	if redacted.DatabasePassword != "" {
		redacted.DatabasePassword = redactedPlaceholder
	}

	if redacted.RedisPassword != "" {
		redacted.RedisPassword = redactedPlaceholder
	}

	return redacted
}
