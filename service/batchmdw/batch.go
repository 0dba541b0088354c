package batchmdw

import (
	"time"

	"github.com/kava-labs/webhook-batch-proxy/decode"
)

// member is a request that joined a batch and is waiting for its reply
type member struct {
	payload decode.Payload
	reply   chan *Reply
}

// Batch is the set of payloads waiting to be merged and delivered to one destination.
// A batch is only modified by the Accumulator while it is open, once closed
// it is owned by the dispatcher.
type Batch struct {
	Destination decode.Destination
	CreatedAt   time.Time

	members []member

	// size of the message the members would currently merge into
	contentLength int
	embeds        int
	components    int
	attachments   int
}

func newBatch(destination decode.Destination, createdAt time.Time) *Batch {
	return &Batch{
		Destination: destination,
		CreatedAt:   createdAt,
	}
}

// Key returns the batching key of the batch's destination
func (b *Batch) Key() string {
	return b.Destination.Key()
}

// Size returns the number of messages in the batch
func (b *Batch) Size() int {
	return len(b.members)
}

// EmbedCount returns the number of embeds across all messages in the batch
func (b *Batch) EmbedCount() int {
	return b.embeds
}

// Payloads returns the payloads of the batch in the order they joined
func (b *Batch) Payloads() []decode.Payload {
	payloads := make([]decode.Payload, 0, len(b.members))
	for _, m := range b.members {
		payloads = append(payloads, m.payload)
	}

	return payloads
}

// fits returns true if merging payload into the batch keeps
// the merged message within the upstream per message limits
func (b *Batch) fits(payload decode.Payload) bool {
	if len(b.members) == 0 {
		return true
	}

	// only the first payload's poll survives a merge
	if payload.HasPoll() {
		return false
	}

	if b.contentLength+joinedContentLength(b.contentLength, payload) > decode.MaxContentLength {
		return false
	}

	return b.embeds+len(payload.Embeds) <= decode.MaxEmbeds &&
		b.components+len(payload.Components) <= decode.MaxComponentRows &&
		b.attachments+len(payload.Attachments) <= decode.MaxAttachments
}

func (b *Batch) add(payload decode.Payload, reply chan *Reply) {
	b.members = append(b.members, member{payload: payload, reply: reply})

	b.contentLength += joinedContentLength(b.contentLength, payload)
	b.embeds += len(payload.Embeds)
	b.components += len(payload.Components)
	b.attachments += len(payload.Attachments)
}

// resolve hands the reply to every member, reply channels are
// buffered so this never blocks
func (b *Batch) resolve(reply *Reply) {
	for _, m := range b.members {
		m.reply <- reply
	}
}

// joinedContentLength is the number of characters payload adds to merged content
// of the given length, including the newline separating it from earlier content
func joinedContentLength(current int, payload decode.Payload) int {
	length := payload.ContentLength()
	if length == 0 {
		return 0
	}

	if current > 0 {
		length++
	}

	return length
}
