package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// DecodeRows extracts the JSON array embedded in free-form model output and
// decodes it into row records, plus the union of column names in first-seen
// order. Prose before and after the array is discarded. The span is located
// with a depth-tracking scan from the first '[' rather than a greedy
// first-to-last match, so arrays nested inside object values do not
// truncate the span.
func DecodeRows(raw string) ([]entity.RowRecord, []string, error) {
	span, ok := arraySpan(raw)
	if !ok {
		return nil, nil, common.ErrNoJSONFound
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrMalformedJSON, err)
	}

	rows := make([]entity.RowRecord, 0, len(items))
	var columns []string
	seen := make(map[string]struct{})

	for _, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			// tolerate stray scalars between row objects
			continue
		}
		row := make(entity.RowRecord, len(obj))
		for k, v := range obj {
			row[k] = normalizeCell(v)
		}
		rows = append(rows, row)

		// maps lose the document's key order, so recover it from the tokens
		for _, k := range objectKeys(item) {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}
	return rows, columns, nil
}

// objectKeys walks a raw JSON object and returns its top-level keys in
// document order.
func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		// skip the value, whatever its shape
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return keys
		}
	}
	return keys
}

// arraySpan returns the substring from the first '[' to its matching ']',
// tracking nesting depth and JSON string literals.
func arraySpan(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start == -1 {
			if c == '[' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	if start == -1 {
		return "", false
	}
	// opening bracket with no close: report the span so the caller fails
	// with a decode error rather than "no json found"
	return s[start:], true
}

// normalizeCell flattens decoded JSON values to the scalar cell domain.
// Nested structures are re-encoded as compact JSON strings.
func normalizeCell(v any) any {
	switch t := v.(type) {
	case nil, string, float64:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
