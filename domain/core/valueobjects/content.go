package valueobjects

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	pkgerrors "nodespace-core/pkg/errors"
)

const contentService = "content"

// NodeContent is a value object holding a node's schema-flexible payload.
// The payload is kept as canonical JSON (object keys sorted, no
// insignificant whitespace) so equality is byte equality.
type NodeContent struct {
	raw json.RawMessage
}

// NewNodeContent encodes any JSON-serialisable value as content
func NewNodeContent(v interface{}) (NodeContent, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return NodeContent{}, pkgerrors.SerializationFailed(contentService, "JSON", "NodeContent", err)
	}
	return ContentFromJSON(data)
}

// ContentFromJSON validates and canonicalises a raw JSON payload
func ContentFromJSON(data []byte) (NodeContent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return NodeContent{}, pkgerrors.RequiredField(contentService, "content", "NodeContent")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return NodeContent{}, pkgerrors.InvalidFormat(contentService, "content", "JSON", err.Error())
	}
	if dec.More() {
		return NodeContent{}, pkgerrors.InvalidFormat(contentService, "content", "a single JSON value", "trailing data")
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return NodeContent{}, pkgerrors.SerializationFailed(contentService, "JSON", "NodeContent", err)
	}
	return NodeContent{raw: canonical}, nil
}

// TextContent builds the conventional {"type":"text","content":...} payload
func TextContent(text string) NodeContent {
	c, err := NewNodeContent(map[string]string{"type": "text", "content": text})
	if err != nil {
		// a map of strings always encodes
		panic(err)
	}
	return c
}

// Raw returns a copy of the canonical JSON
func (c NodeContent) Raw() json.RawMessage {
	if c.raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(c.raw))
	copy(out, c.raw)
	return out
}

// Decode unmarshals the payload into dst
func (c NodeContent) Decode(dst interface{}) error {
	if c.IsEmpty() {
		return pkgerrors.RequiredField(contentService, "content", "NodeContent")
	}
	if err := json.Unmarshal(c.raw, dst); err != nil {
		return pkgerrors.SerializationFailed(contentService, "JSON", "NodeContent", err)
	}
	return nil
}

// Field returns a top-level field of an object payload
func (c NodeContent) Field(key string) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(c.raw, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

// StringField returns a top-level string field of an object payload
func (c NodeContent) StringField(key string) (string, bool) {
	raw, ok := c.Field(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Type returns the payload's "type" field, or "" when there is none
func (c NodeContent) Type() string {
	t, _ := c.StringField("type")
	return t
}

// Text returns the human-readable text used as model input: the first of
// "content", "text", or "title"+"body" that is present, else the JSON itself.
func (c NodeContent) Text() string {
	if c.IsEmpty() {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.raw, &s); err == nil {
		return s
	}
	for _, key := range []string{"content", "text"} {
		if s, ok := c.StringField(key); ok {
			return s
		}
	}
	title, hasTitle := c.StringField("title")
	body, hasBody := c.StringField("body")
	if hasTitle || hasBody {
		return strings.TrimSpace(title + "\n" + body)
	}
	return string(c.raw)
}

// IsEmpty checks if content is empty
func (c NodeContent) IsEmpty() bool {
	return len(c.raw) == 0
}

// Size returns the encoded size in bytes
func (c NodeContent) Size() int {
	return len(c.raw)
}

// Equals checks if two contents are equal
func (c NodeContent) Equals(other NodeContent) bool {
	return bytes.Equal(c.raw, other.raw)
}

// Summary returns a truncated summary of the content text
func (c NodeContent) Summary(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	text := c.Text()
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// MarshalJSON implements json.Marshaler
func (c NodeContent) MarshalJSON() ([]byte, error) {
	if c.IsEmpty() {
		return []byte("null"), nil
	}
	return c.Raw(), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *NodeContent) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = NodeContent{}
		return nil
	}
	parsed, err := ContentFromJSON(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
