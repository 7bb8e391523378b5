package services

import (
	"encoding/json"
	"strings"
)

// Line is a single cost line as it arrives from a record or from a decoded
// JSON payload. The field holding the monetary value depends on the stream.
type Line map[string]any

// NormalizeLines converts a raw value that should be a list of cost lines into
// a well-formed list. Lists are returned as-is, strings (and raw JSON bytes)
// are decoded, and anything else yields an empty list. It never panics.
func NormalizeLines(raw any) []Line {
	lines, _ := normalizeLines(raw)
	return lines
}

// normalizeLines is NormalizeLines that also reports whether the input had to
// be discarded as malformed. Absent input (nil, empty string, JSON null) is
// not malformed.
func normalizeLines(raw any) ([]Line, bool) {
	switch v := raw.(type) {
	case nil:
		return []Line{}, true
	case []Line:
		if v == nil {
			return []Line{}, true
		}
		return v, true
	case []map[string]any:
		lines := make([]Line, len(v))
		for i, m := range v {
			lines[i] = Line(m)
		}
		return lines, true
	case []any:
		lines := make([]Line, len(v))
		for i, item := range v {
			lines[i] = toLine(item)
		}
		return lines, true
	case string:
		return decodeLines([]byte(v))
	case json.RawMessage:
		return decodeLines(v)
	case []byte:
		return decodeLines(v)
	default:
		return []Line{}, false
	}
}

// decodeLines parses a JSON document into lines. A document that itself is a
// JSON string is unwrapped once, which covers details stored as an encoded
// string inside a JSON column.
func decodeLines(data []byte) ([]Line, bool) {
	if strings.TrimSpace(string(data)) == "" {
		return []Line{}, true
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return []Line{}, false
	}

	switch v := decoded.(type) {
	case nil:
		return []Line{}, true
	case []any:
		return normalizeLines(v)
	case string:
		var inner any
		if err := json.Unmarshal([]byte(v), &inner); err != nil {
			return []Line{}, false
		}
		if list, ok := inner.([]any); ok {
			return normalizeLines(list)
		}
		return []Line{}, false
	default:
		return []Line{}, false
	}
}

// toLine keeps record-shaped list elements and turns anything else into an
// empty line, which contributes nothing to a subtotal.
func toLine(item any) Line {
	switch m := item.(type) {
	case map[string]any:
		return Line(m)
	case Line:
		return m
	default:
		return Line{}
	}
}
