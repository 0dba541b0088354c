package cachemdw

import (
	"strings"

	"github.com/kava-labs/webhook-batch-proxy/decode"
)

type CacheItemType int

const (
	CacheItemTypeRejectedDestination CacheItemType = iota + 1
)

func (t CacheItemType) String() string {
	switch t {
	case CacheItemTypeRejectedDestination:
		return "rejected-destination"
	default:
		return "unknown"
	}
}

func BuildCacheKey(cachePrefix string, cacheItemType CacheItemType, parts []string) string {
	fullParts := append(
		[]string{
			cachePrefix,
			cacheItemType.String(),
		},
		parts...,
	)

	return strings.Join(fullParts, ":")
}

// GetRejectedDestinationKey calculates the cache key for a destination,
// the key is built from the destination fingerprint so it never contains the webhook token
func GetRejectedDestinationKey(cachePrefix string, destination decode.Destination) string {
	return BuildCacheKey(cachePrefix, CacheItemTypeRejectedDestination, []string{destination.Fingerprint()})
}
