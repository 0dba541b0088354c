package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitTestDecodePayloadRejectsUndeliverableBodies(t *testing.T) {
	testCases := []struct {
		name        string
		body        string
		expectedErr error
	}{
		{name: "empty body", body: "", expectedErr: ErrEmptyBody},
		{name: "whitespace body", body: " \n", expectedErr: ErrEmptyBody},
		{name: "json array", body: `[{"content":"hi"}]`, expectedErr: ErrInvalidPayload},
		{name: "json null", body: `null`, expectedErr: ErrInvalidPayload},
		{name: "truncated json", body: `{"content":"hi"`, expectedErr: ErrInvalidPayload},
		{name: "wrong content type", body: `{"content":5}`, expectedErr: ErrInvalidPayload},
		{name: "no message", body: `{"username":"bot"}`, expectedErr: ErrEmptyMessage},
		{name: "blank content", body: `{"content":"   "}`, expectedErr: ErrEmptyMessage},
		{name: "empty embeds", body: `{"embeds":[]}`, expectedErr: ErrEmptyMessage},
		{name: "null poll", body: `{"poll":null}`, expectedErr: ErrEmptyMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePayload([]byte(tc.body))

			require.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestUnitTestDecodePayloadAcceptsMessages(t *testing.T) {
	for _, body := range []string{
		`{"content":"hello"}`,
		`{"embeds":[{"title":"a"}]}`,
		`{"components":[{"type":1}]}`,
		`{"attachments":[{"id":0}]}`,
		`{"poll":{"question":{"text":"?"}}}`,
	} {
		_, err := DecodePayload([]byte(body))

		assert.NoError(t, err, body)
	}
}

func TestUnitTestPayloadDistinguishesAbsentFromEmpty(t *testing.T) {
	payload, err := DecodePayload([]byte(`{"content":"hi","embeds":[],"username":""}`))
	require.NoError(t, err)

	require.NotNil(t, payload.Embeds)
	assert.Len(t, payload.Embeds, 0)
	assert.Nil(t, payload.Components)
	assert.Nil(t, payload.Attachments)
	require.NotNil(t, payload.Username)
	assert.Equal(t, "", *payload.Username)
	assert.Nil(t, payload.AvatarURL)

	encoded, err := json.Marshal(payload)
	require.NoError(t, err)

	assert.JSONEq(t, `{"content":"hi","embeds":[],"username":""}`, string(encoded))
}

func TestUnitTestPayloadPreservesUnknownFields(t *testing.T) {
	body := `{"content":"hi","tts":true,"flags":4096,"thread_name":"t","allowed_mentions":{"parse":[]},"applied_tags":["1"]}`

	payload, err := DecodePayload([]byte(body))
	require.NoError(t, err)

	require.NotNil(t, payload.TTS)
	assert.True(t, *payload.TTS)
	require.NotNil(t, payload.Flags)
	assert.Equal(t, int64(4096), *payload.Flags)
	assert.Contains(t, payload.Extra, "applied_tags")

	encoded, err := json.Marshal(payload)
	require.NoError(t, err)

	assert.JSONEq(t, body, string(encoded))
}

func TestUnitTestPayloadContentLengthCountsCharacters(t *testing.T) {
	content := "héllo ✓"
	payload := Payload{Content: &content}

	assert.Equal(t, 7, payload.ContentLength())
	assert.Equal(t, 0, Payload{}.ContentLength())
}

func TestUnitTestPayloadCloneIsDeep(t *testing.T) {
	payload, err := DecodePayload([]byte(`{"content":"hi","embeds":[{"title":"a"}],"extra":{"k":1}}`))
	require.NoError(t, err)

	clone := payload.Clone()
	*clone.Content = "changed"
	clone.Embeds[0][2] = 'X'
	clone.Extra["extra"][1] = 'X'

	assert.Equal(t, "hi", *payload.Content)
	assert.JSONEq(t, `{"title":"a"}`, string(payload.Embeds[0]))
	assert.JSONEq(t, `{"k":1}`, string(payload.Extra["extra"]))
}
