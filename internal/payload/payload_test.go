package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
		expectKey   string
	}{
		{
			name:      "PlainObject",
			body:      `{"id":"tx_1"}`,
			expectKey: "id",
		},
		{
			name:      "StringWrappedObject",
			body:      `"{\"id\":\"tx_1\"}"`,
			expectKey: "id",
		},
		{
			name:      "EmptyBody",
			body:      "",
			expectKey: "",
		},
		{
			name:        "NotAnObject",
			body:        `[1,2,3]`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.body))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.expectKey != "" {
				assert.Contains(t, doc, tt.expectKey)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	doc := map[string]any{
		"transaction_id": "tx_alias",
		"data": map[string]any{
			"id":     "tx_nested",
			"status": "approved",
			"amount": float64(1999),
		},
		"empty": "",
	}

	tests := []struct {
		name     string
		paths    []Path
		expected string
		found    bool
	}{
		{
			name:     "FirstPresentWins",
			paths:    []Path{"id", "transaction_id", "data.id"},
			expected: "tx_alias",
			found:    true,
		},
		{
			name:     "NestedPath",
			paths:    []Path{"id", "data.id"},
			expected: "tx_nested",
			found:    true,
		},
		{
			name:     "EmptyValueSkipped",
			paths:    []Path{"empty", "data.status"},
			expected: "approved",
			found:    true,
		},
		{
			name:     "NumberRendered",
			paths:    []Path{"data.amount"},
			expected: "1999",
			found:    true,
		},
		{
			name:  "NothingMatches",
			paths: []Path{"missing", "data.missing"},
			found: false,
		},
		{
			name:  "PathThroughNonObject",
			paths: []Path{"transaction_id.inner"},
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := Extract(doc, tt.paths)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, value)
		})
	}
}
