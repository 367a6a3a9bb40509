package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discuit_search/internal/domain"
	"discuit_search/testdata/utils"
)

func TestEncodeDecode(t *testing.T) {
	in := domain.Post{
		ID:            "p1",
		PublicID:      "x1",
		Type:          domain.PostTypeLink,
		Title:         "a link",
		Body:          utils.Ptr("body"),
		Link:          domain.Opaque(`{"url":"https://go.dev"}`),
		CommunityName: "golang",
		Hotness:       12.5,
	}

	body, err := encodeMessage(&in)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "timestamp")

	out, err := decodeMessage(body)
	require.NoError(t, err)
	assert.True(t, domain.Equal(&in, &out), "fields differ: %v", domain.DiffFields(&in, &out))
}

func TestDecodeMessage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<xml/>`},
		{"missing post", `{"timestamp":"2024-01-01T00:00:00Z"}`},
		{"missing public id", `{"post":{"id":"p1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeMessage([]byte(tt.body))
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}
