package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kava-labs/webhook-batch-proxy/logging"
)

// RedisConfig holds the connection settings for a redis backed cache.
// Address is either host:port or a redis:// / rediss:// url.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// String returns the address of the redis server, the password is omitted
func (cfg RedisConfig) String() string {
	if options, err := cfg.options(); err == nil {
		return fmt.Sprintf("redis://%s/%d", options.Addr, options.DB)
	}

	return fmt.Sprintf("redis://%s/%d", cfg.Address, cfg.DB)
}

func (cfg RedisConfig) options() (*redis.Options, error) {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	if strings.HasPrefix(cfg.Address, "redis://") || strings.HasPrefix(cfg.Address, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}

		options = parsed
		if cfg.Password != "" {
			options.Password = cfg.Password
		}
	}

	// zero leaves the go-redis defaults in place
	options.DialTimeout = cfg.DialTimeout
	options.ReadTimeout = cfg.ReadTimeout
	options.WriteTimeout = cfg.WriteTimeout

	return options, nil
}

// RedisCache stores entries in redis so every proxy instance
// sharing the server sees the same rejected destinations
type RedisCache struct {
	client *redis.Client
	*logging.ServiceLogger
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(cfg *RedisConfig, logger *logging.ServiceLogger) (*RedisCache, error) {
	options, err := cfg.options()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &RedisCache{
		client:        redis.NewClient(options),
		ServiceLogger: logger,
	}, nil
}

// Set stores data under key, a non positive expiration keeps it until deleted
func (rc *RedisCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}

	if err := rc.client.Set(ctx, key, data, expiration).Err(); err != nil {
		rc.Error().Err(err).Str("key", key).Msg("error writing value to redis")
		return err
	}

	rc.Trace().Str("key", key).Int("value_bytes", len(data)).Dur("expiration", expiration).Msg("stored value in redis")

	return nil
}

// Get returns the value stored under key or ErrNotFound
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.client.Get(ctx, key).Bytes()

	switch {
	case errors.Is(err, redis.Nil):
		rc.Trace().Str("key", key).Msg("value not found in redis")
		return nil, ErrNotFound
	case err != nil:
		rc.Error().Err(err).Str("key", key).Msg("error reading value from redis")
		return nil, err
	}

	return data, nil
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

// Healthcheck pings the redis server
func (rc *RedisCache) Healthcheck(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connecting to redis at %s: %w", rc.client.Options().Addr, err)
	}

	return nil
}

// Close releases the connections held by the client
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
