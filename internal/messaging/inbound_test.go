package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name          string
		doc           map[string]any
		expectedPhone string
		expectedText  string
	}{
		{
			name:          "TopLevelFields",
			doc:           map[string]any{"phone": "+55 (27) 99999-9999", "message": "codigo ABC234"},
			expectedPhone: "5527999999999",
			expectedText:  "codigo ABC234",
		},
		{
			name: "NestedDataFields",
			doc: map[string]any{
				"data": map[string]any{"phone": "5527999999999", "text": "ABC234"},
			},
			expectedPhone: "5527999999999",
			expectedText:  "ABC234",
		},
		{
			name: "TextWrappedInObject",
			doc: map[string]any{
				"from": "5527999999999",
				"text": map[string]any{"message": "teste123"},
			},
			expectedPhone: "5527999999999",
			expectedText:  "teste123",
		},
		{
			name:          "NothingUseful",
			doc:           map[string]any{"event": "status"},
			expectedPhone: "",
			expectedText:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbound := ParseInbound(tt.doc)
			assert.Equal(t, tt.expectedPhone, inbound.Phone)
			assert.Equal(t, tt.expectedText, inbound.Text)
		})
	}
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{"BareCode", "ABC234", "ABC234", true},
		{"CodeInSentence", "codigo ABC234 por favor", "ABC234", true},
		{"Lowercase", "abc234", "ABC234", true},
		{"NoCode", "ola, tudo bem?", "", false},
		{"TooShort", "AB23", "", false},
		{"AmbiguousGlyphsNotACode", "OO11II", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, found := ExtractCode(tt.text)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, token)
		})
	}
}
