// Package payload decodes loosely-structured provider documents and probes
// them for values that may live at any of several alternative field paths.
package payload

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Path is a dot-separated route into a JSON document, e.g. "data.transaction_id".
type Path string

// Decode parses a request body into a generic document. Providers sometimes
// deliver the JSON doubly encoded as a string; one level of unwrapping is
// tolerated. A nil or empty body decodes to an empty document.
func Decode(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		return doc, nil
	}

	var wrapped string
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if err := json.Unmarshal([]byte(wrapped), &doc); err == nil {
			return doc, nil
		}
	}

	return nil, fmt.Errorf("body is not a JSON object")
}

// Extract evaluates the paths in order against doc and returns the first
// present, non-empty value rendered as a string.
func Extract(doc map[string]any, paths []Path) (string, bool) {
	for _, path := range paths {
		if value, ok := lookup(doc, string(path)); ok {
			return value, true
		}
	}
	return "", false
}

func lookup(doc map[string]any, path string) (string, bool) {
	var current any = doc

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[part]
		if !ok {
			return "", false
		}
	}

	return render(current)
}

func render(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		// JSON numbers as ids: render without a trailing ".0" when integral.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
		return fmt.Sprintf("%v", v), true
	case bool:
		return fmt.Sprintf("%t", v), true
	default:
		return "", false
	}
}
