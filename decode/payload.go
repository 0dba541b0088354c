package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Errors that might result from decoding a webhook message payload
var (
	ErrEmptyBody      = errors.New("request body is empty")
	ErrInvalidPayload = errors.New("request body is not a json object")
	ErrEmptyMessage   = errors.New("message has no content, embeds, components, attachments or poll")
)

// Per message limits enforced by discord, a merged payload
// must stay within them to be accepted upstream
const (
	MaxContentLength = 2000
	MaxEmbeds        = 10
	MaxComponentRows = 5
	MaxAttachments   = 10
)

// json field names of the payload members that the merger treats specially
const (
	fieldContent         = "content"
	fieldUsername        = "username"
	fieldAvatarURL       = "avatar_url"
	fieldTTS             = "tts"
	fieldAllowedMentions = "allowed_mentions"
	fieldEmbeds          = "embeds"
	fieldComponents      = "components"
	fieldAttachments     = "attachments"
	fieldThreadName      = "thread_name"
	fieldFlags           = "flags"
	fieldPoll            = "poll"
)

var jsonNull = []byte("null")

// Payload is a webhook execute message body.
// Nil pointers and nil slices mean the field was absent from the request,
// which is distinct from a present but empty value.
type Payload struct {
	Content         *string
	Username        *string
	AvatarURL       *string
	TTS             *bool
	AllowedMentions json.RawMessage
	Embeds          []json.RawMessage
	Components      []json.RawMessage
	Attachments     []json.RawMessage
	ThreadName      *string
	Flags           *int64
	// Extra holds every other top level field, preserved verbatim
	Extra map[string]json.RawMessage
}

// DecodePayload parses an inbound request body into a Payload,
// rejecting bodies that could never produce a deliverable message
func DecodePayload(body []byte) (Payload, error) {
	var payload Payload

	if len(bytes.TrimSpace(body)) == 0 {
		return payload, ErrEmptyBody
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	if payload.IsEmpty() {
		return payload, ErrEmptyMessage
	}

	return payload, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Payload) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if fields == nil {
		return ErrInvalidPayload
	}

	decoded := Payload{}

	for name, raw := range fields {
		var err error

		switch name {
		case fieldContent:
			err = json.Unmarshal(raw, &decoded.Content)
		case fieldUsername:
			err = json.Unmarshal(raw, &decoded.Username)
		case fieldAvatarURL:
			err = json.Unmarshal(raw, &decoded.AvatarURL)
		case fieldTTS:
			err = json.Unmarshal(raw, &decoded.TTS)
		case fieldAllowedMentions:
			if !bytes.Equal(raw, jsonNull) {
				decoded.AllowedMentions = raw
			}
		case fieldEmbeds:
			err = json.Unmarshal(raw, &decoded.Embeds)
		case fieldComponents:
			err = json.Unmarshal(raw, &decoded.Components)
		case fieldAttachments:
			err = json.Unmarshal(raw, &decoded.Attachments)
		case fieldThreadName:
			err = json.Unmarshal(raw, &decoded.ThreadName)
		case fieldFlags:
			err = json.Unmarshal(raw, &decoded.Flags)
		default:
			if decoded.Extra == nil {
				decoded.Extra = make(map[string]json.RawMessage)
			}
			decoded.Extra[name] = raw
		}

		if err != nil {
			return fmt.Errorf("invalid %s field: %w", name, err)
		}
	}

	*p = decoded

	return nil
}

// MarshalJSON implements json.Marshaler, only fields
// present on the payload are written
func (p Payload) MarshalJSON() ([]byte, error) {
	fields := make(map[string]interface{}, len(p.Extra)+10)

	for name, raw := range p.Extra {
		fields[name] = raw
	}

	if p.Content != nil {
		fields[fieldContent] = *p.Content
	}
	if p.Username != nil {
		fields[fieldUsername] = *p.Username
	}
	if p.AvatarURL != nil {
		fields[fieldAvatarURL] = *p.AvatarURL
	}
	if p.TTS != nil {
		fields[fieldTTS] = *p.TTS
	}
	if p.AllowedMentions != nil {
		fields[fieldAllowedMentions] = p.AllowedMentions
	}
	if p.Embeds != nil {
		fields[fieldEmbeds] = p.Embeds
	}
	if p.Components != nil {
		fields[fieldComponents] = p.Components
	}
	if p.Attachments != nil {
		fields[fieldAttachments] = p.Attachments
	}
	if p.ThreadName != nil {
		fields[fieldThreadName] = *p.ThreadName
	}
	if p.Flags != nil {
		fields[fieldFlags] = *p.Flags
	}

	return json.Marshal(fields)
}

// HasContent returns true if the payload carries non blank text content
func (p Payload) HasContent() bool {
	return p.Content != nil && strings.TrimSpace(*p.Content) != ""
}

// ContentLength returns the number of characters in the payload's content
func (p Payload) ContentLength() int {
	if p.Content == nil {
		return 0
	}

	return utf8.RuneCountInString(*p.Content)
}

// HasPoll returns true if the payload carries a poll, a message holds at most one
func (p Payload) HasPoll() bool {
	poll, ok := p.Extra[fieldPoll]

	return ok && !bytes.Equal(poll, jsonNull)
}

// IsEmpty returns true if delivering the payload would not produce a visible message
func (p Payload) IsEmpty() bool {
	return !p.HasContent() && len(p.Embeds) == 0 && len(p.Components) == 0 && len(p.Attachments) == 0 && !p.HasPoll()
}

// Clone returns a deep copy of the payload
func (p Payload) Clone() Payload {
	clone := Payload{
		Content:         cloneValue(p.Content),
		Username:        cloneValue(p.Username),
		AvatarURL:       cloneValue(p.AvatarURL),
		TTS:             cloneValue(p.TTS),
		AllowedMentions: cloneRaw(p.AllowedMentions),
		Embeds:          cloneRawList(p.Embeds),
		Components:      cloneRawList(p.Components),
		Attachments:     cloneRawList(p.Attachments),
		ThreadName:      cloneValue(p.ThreadName),
		Flags:           cloneValue(p.Flags),
	}

	if p.Extra != nil {
		clone.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for name, raw := range p.Extra {
			clone.Extra[name] = cloneRaw(raw)
		}
	}

	return clone
}

func cloneValue[T any](value *T) *T {
	if value == nil {
		return nil
	}

	copied := *value

	return &copied
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}

	return append(json.RawMessage{}, raw...)
}

func cloneRawList(list []json.RawMessage) []json.RawMessage {
	if list == nil {
		return nil
	}

	cloned := make([]json.RawMessage, len(list))
	for i, raw := range list {
		cloned[i] = cloneRaw(raw)
	}

	return cloned
}
