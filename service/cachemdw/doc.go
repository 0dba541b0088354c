// Package cachemdw is responsible for remembering destinations that upstream rejected
// and provides the corresponding middleware.
// package can work with any underlying storage which implements simple cache.Cache interface
//
// When a delivered batch is answered with 401 or 404 the webhook was deleted or its token
// is wrong, so every later message for it would fail the same way. ServiceCache records
// the reply for the destination (RecordRejection, called by the dispatcher) and
// IsCachedMiddleware answers later requests for that destination with the recorded reply
// until it expires, without them joining a batch.
package cachemdw
