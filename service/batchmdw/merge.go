package batchmdw

import (
	"encoding/json"
	"strings"

	"github.com/kava-labs/webhook-batch-proxy/decode"
)

// MergePayloads combines payloads, in the order given, into a single message.
// Non empty content is joined with newlines and embeds, components and attachments
// are concatenated. Every other field is taken from the first payload only,
// later payloads never override it even when the first payload leaves it unset.
func MergePayloads(payloads []decode.Payload) decode.Payload {
	if len(payloads) == 0 {
		return decode.Payload{}
	}

	if len(payloads) == 1 {
		return payloads[0].Clone()
	}

	// start from the first payload for its scalar fields
	merged := payloads[0].Clone()
	merged.Content = nil
	merged.Embeds = nil
	merged.Components = nil
	merged.Attachments = nil

	var contents []string
	var firstContent *string

	for _, payload := range payloads {
		if payload.Content != nil && firstContent == nil {
			firstContent = payload.Content
		}

		if payload.Content != nil && *payload.Content != "" {
			contents = append(contents, *payload.Content)
		}

		merged.Embeds = appendRaw(merged.Embeds, payload.Embeds)
		merged.Components = appendRaw(merged.Components, payload.Components)
		merged.Attachments = appendRaw(merged.Attachments, payload.Attachments)
	}

	switch {
	case len(contents) > 0:
		content := strings.Join(contents, "\n")
		merged.Content = &content
	case firstContent != nil:
		// present but empty everywhere, keep it present as a singleton would
		content := *firstContent
		merged.Content = &content
	}

	return merged
}

// appendRaw appends items to list, the result is only nil
// if both are nil so that a present but empty list survives merging
func appendRaw(list []json.RawMessage, items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return list
	}

	if list == nil {
		list = make([]json.RawMessage, 0, len(items))
	}

	return append(list, items...)
}
