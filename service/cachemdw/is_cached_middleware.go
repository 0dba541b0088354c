package cachemdw

import (
	"errors"
	"net/http"

	"github.com/kava-labs/webhook-batch-proxy/clients/cache"
	"github.com/kava-labs/webhook-batch-proxy/decode"
)

const (
	CacheHeaderKey      = "X-Batch-Cache-Status"
	CacheHitHeaderValue = "HIT"
)

// IsCachedMiddleware returns middleware which works in the following way:
// - tries to get the decoded destination from context (previous middleware should set it)
// - tries to get a cached rejection for the destination
//   - if present writes the cached reply with the cache status header and stops
//   - if not present (or the cache can't be read) forwards to next middleware
func (c *ServiceCache) IsCachedMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// if cache is not enabled - do nothing and forward to next middleware
		if !c.cacheEnabled {
			next.ServeHTTP(w, r)
			return
		}

		destination, ok := r.Context().Value(c.decodedDestinationContextKey).(decode.Destination)
		if !ok {
			c.Logger.Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("can't cast request context value to decode.Destination type")

			next.ServeHTTP(w, r)
			return
		}

		reply, err := c.GetRejectedReply(r.Context(), destination)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				c.Logger.Error().
					Err(err).
					Msg("error during getting rejected destination from cache")
			}

			next.ServeHTTP(w, r)
			return
		}

		c.Logger.Debug().
			Str("destination", destination.Fingerprint()).
			Msg("answering from rejected destination cache")

		reply.Header.Set(CacheHeaderKey, CacheHitHeaderValue)
		reply.Write(w)
	}
}

// IsCacheHitHeaders returns true if the headers mark a reply served from the cache
func IsCacheHitHeaders(header http.Header) bool {
	return header.Get(CacheHeaderKey) == CacheHitHeaderValue
}
