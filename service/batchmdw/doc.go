// Package batchmdw is responsible for the middleware used to batch webhook messages.

// Requests addressed to the same destination (webhook id, token and delivery options)
// join a single open Batch held by the Accumulator. A batch is closed either when the
// flush window that started with its first member elapses, or as soon as it holds the
// configured number of messages, whichever happens first. Closing a batch removes it
// from the Accumulator under its lock, so a batch is only ever dispatched once.

// The Dispatcher merges the payloads of a closed batch into one message, delivers it
// upstream and hands the single upstream reply to every member of the batch.
// Each member waits on its own buffered reply channel, so resolving members never blocks
// even if the inbound request has already gone away.

// The following headers are added to every reply:
//   - `X-Batch-Id` the batching key of the destination
//   - `X-Batch-Size` the number of messages in the batch
//   - `X-Batch-Created` when the batch was opened (RFC 3339, UTC, milliseconds)
package batchmdw
