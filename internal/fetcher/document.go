package fetcher

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Document is a provider payload of unknown shape. When the provider text is
// valid JSON it is kept as compacted JSON, otherwise the raw text is kept.
// Exactly one of JSON and Raw is set for a non-empty document.
type Document struct {
	JSON json.RawMessage
	Raw  string
}

// ParseDocument opportunistically parses text that looks like a JSON object
// or array. Anything else, including malformed JSON, is preserved verbatim.
func ParseDocument(text string) Document {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return Document{Raw: text}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return Document{Raw: text}
	}
	return Document{JSON: json.RawMessage(buf.Bytes())}
}

// IsJSON reports whether the payload parsed as JSON
func (d Document) IsJSON() bool {
	return len(d.JSON) > 0
}

// Decode unmarshals the parsed payload into a generic value. Raw text
// documents decode to their string.
func (d Document) Decode() any {
	if !d.IsJSON() {
		return d.Raw
	}
	var v any
	if err := json.Unmarshal(d.JSON, &v); err != nil {
		return d.Raw
	}
	return v
}

// MarshalJSON embeds parsed payloads as JSON and raw text as a JSON string
func (d Document) MarshalJSON() ([]byte, error) {
	if d.IsJSON() {
		return d.JSON, nil
	}
	return json.Marshal(d.Raw)
}

// UnmarshalJSON accepts either an embedded JSON value or a string
func (d *Document) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Document{Raw: s}
		return nil
	}
	*d = ParseDocument(string(data))
	return nil
}
