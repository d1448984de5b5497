package target

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepage-aggregator/internal/content"
)

func decode(t *testing.T, s string) *DeliveryResponse {
	t.Helper()
	var r DeliveryResponse
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return &r
}

func TestOffer(t *testing.T) {
	tests := []struct {
		name string
		body string
		want content.Offer
	}{
		{"nothing", `{}`, nil},
		{"options without content", `{"prefetch":{"pageLoad":{"options":[{"type":"json"}]}}}`, nil},
		{"empty content", `{"execute":{"pageLoad":{"options":[{"content":{}}]}}}`, nil},
		{"string content ignored", `{"execute":{"pageLoad":{"options":[{"content":"<div/>"}]}}}`, nil},
		{
			"prefetch only",
			`{"prefetch":{"pageLoad":{"options":[{"content":{"a":1}},{"content":{"a":2,"b":"x"}}]}}}`,
			content.Offer{"a": float64(2), "b": "x"},
		},
		{
			"execute wins",
			`{"prefetch":{"pageLoad":{"options":[{"content":{"a":"p"}}]}},"execute":{"pageLoad":{"options":[{"content":{"a":"e"}}]}}}`,
			content.Offer{"a": "e"},
		},
		{
			"mbox options",
			`{"execute":{"mboxes":[{"name":"hero-test","options":[{"content":{"hero":{"title":"T"}}}]}]}}`,
			content.Offer{"hero": map[string]any{"title": "T"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Offer(decode(t, tt.body)))
		})
	}
	assert.Nil(t, Offer(nil))
}

func TestToken_Priority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"none", `{}`, ""},
		{
			"execute analytics first",
			`{"payload":{"tnta":"top"},
			  "prefetch":{"pageLoad":{"analytics":{"payload":{"tnta":"pre"}},"options":[{"payload":{"tnta":"pre-opt"}}]}},
			  "execute":{"pageLoad":{"analytics":{"payload":{"tnta":"exe"}}}}}`,
			"exe",
		},
		{
			"prefetch analytics second",
			`{"payload":{"tnta":"top"},
			  "prefetch":{"pageLoad":{"analytics":{"payload":{"tnta":"pre"}}}},
			  "execute":{"pageLoad":{"options":[{"payload":{"tnta":"exe-opt"}}]}}}`,
			"pre",
		},
		{
			"prefetch option before execute option",
			`{"prefetch":{"mboxes":[{"options":[{"analytics":{"payload":{"tnta":"pre-opt"}}}]}]},
			  "execute":{"pageLoad":{"options":[{"payload":{"tnta":"exe-opt"}}]}}}`,
			"pre-opt",
		},
		{
			"execute option",
			`{"payload":{"token":"top"},"execute":{"pageLoad":{"options":[{"payload":{"token":"exe-opt"}}]}}}`,
			"exe-opt",
		},
		{"top-level payload last", `{"payload":{"token":"top"}}`, "top"},
		{"empty token skipped", `{"execute":{"pageLoad":{"analytics":{"payload":{"tnta":""}}}},"payload":{"tnta":"top"}}`, "top"},
		{"non-string ignored", `{"payload":{"tnta":42}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Token(decode(t, tt.body)))
		})
	}
	assert.Empty(t, Token(nil))
}
