package cachemdw

import (
	"context"
	"time"

	"github.com/kava-labs/webhook-batch-proxy/clients/cache"
	"github.com/kava-labs/webhook-batch-proxy/decode"
	"github.com/kava-labs/webhook-batch-proxy/logging"
	"github.com/kava-labs/webhook-batch-proxy/service/batchmdw"
)

// ServiceCache is responsible for caching rejected destinations and provides corresponding middleware
// ServiceCache can work with any underlying storage which implements simple cache.Cache interface
type ServiceCache struct {
	cacheClient                  cache.Cache
	decodedDestinationContextKey any
	// cachePrefix is used as prefix for any key in the cache
	cachePrefix  string
	cacheEnabled bool
	// ttl of a cached rejection, -1 means cache indefinitely
	ttl time.Duration

	*logging.ServiceLogger
}

var _ batchmdw.RejectionRecorder = (*ServiceCache)(nil)

func NewServiceCache(
	cacheClient cache.Cache,
	decodedDestinationContextKey any,
	cachePrefix string,
	cacheEnabled bool,
	ttl time.Duration,
	logger *logging.ServiceLogger,
) *ServiceCache {
	return &ServiceCache{
		cacheClient:                  cacheClient,
		decodedDestinationContextKey: decodedDestinationContextKey,
		cachePrefix:                  cachePrefix,
		cacheEnabled:                 cacheEnabled,
		ttl:                          ttl,
		ServiceLogger:                logger,
	}
}

// GetRejectedReply returns the cached rejection for destination, or cache.ErrNotFound
func (c *ServiceCache) GetRejectedReply(ctx context.Context, destination decode.Destination) (*batchmdw.Reply, error) {
	key := GetRejectedDestinationKey(c.cachePrefix, destination)

	data, err := c.cacheClient.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	cachedReply, err := UnmarshalCachedReply(data)
	if err != nil {
		return nil, err
	}

	return cachedReply.Reply(), nil
}

// RecordRejection caches reply for destination if it rejects the destination
func (c *ServiceCache) RecordRejection(ctx context.Context, destination decode.Destination, reply *batchmdw.Reply) error {
	if !c.cacheEnabled {
		return nil
	}

	if !reply.IsDestinationRejection() {
		return ErrReplyIsNotRejection
	}

	data, err := NewCachedReply(reply).Marshal()
	if err != nil {
		return err
	}

	key := GetRejectedDestinationKey(c.cachePrefix, destination)

	c.Logger.Info().
		Str("destination", destination.Fingerprint()).
		Int("status", reply.StatusCode).
		Dur("ttl", c.ttl).
		Msg("caching rejected destination")

	return c.cacheClient.Set(ctx, key, data, c.ttl)
}

// ForgetRejection removes any cached rejection for destination
func (c *ServiceCache) ForgetRejection(ctx context.Context, destination decode.Destination) error {
	return c.cacheClient.Delete(ctx, GetRejectedDestinationKey(c.cachePrefix, destination))
}

func (c *ServiceCache) Healthcheck(ctx context.Context) error {
	return c.cacheClient.Healthcheck(ctx)
}

func (c *ServiceCache) IsCacheEnabled() bool {
	return c.cacheEnabled
}
