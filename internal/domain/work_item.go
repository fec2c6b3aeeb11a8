package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Attribute is a single key/value pair carried by a WorkItem.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is an insertion-ordered string mapping. The order is not
// meaningful to the detector but survives JSON encoding and dispatch.
type Attributes []Attribute

// NewAttributes builds Attributes from alternating key, value arguments.
func NewAttributes(kv ...string) Attributes {
	attrs := make(Attributes, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = attrs.With(kv[i], kv[i+1])
	}
	return attrs
}

// Get returns the value stored under key.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Value returns the value stored under key, or "" when absent.
func (a Attributes) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// With returns a copy of a with key set to value. An existing key keeps its
// position; a new key is appended.
func (a Attributes) With(key, value string) Attributes {
	out := make(Attributes, len(a), len(a)+1)
	copy(out, a)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Attribute{Key: key, Value: value})
}

// Map returns the attributes as a plain map. Order is lost.
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		m[attr.Key] = attr.Value
	}
	return m
}

// MarshalJSON encodes the attributes as a JSON object in insertion order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(attr.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of strings, keeping key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes must be a JSON object")
	}
	var out Attributes
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected attribute key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		out = out.With(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

// WorkItem is one candidate unit of work discovered by an upstream listing,
// e.g. a Terra submission or a paired-end FASTQ file.
type WorkItem struct {
	ID         string     `json:"id"`
	Attributes Attributes `json:"attributes"`
}

// Validate checks that the item can be processed at all.
func (w WorkItem) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("%w: work item id cannot be empty", ErrMalformedItem)
	}
	return nil
}

// Expand substitutes ${name} references in tmpl with attribute values. ${id}
// is the item id. A reference to a missing attribute is an error.
func (w WorkItem) Expand(tmpl string) (string, error) {
	var missing string
	out := os.Expand(tmpl, func(name string) string {
		if name == "id" {
			return w.ID
		}
		v, ok := w.Attributes.Get(name)
		if !ok && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("%w: item %s has no attribute %q", ErrMalformedItem, w.ID, missing)
	}
	return out, nil
}

// Skip records an item that was not dispatched and why.
type Skip struct {
	ItemID string     `json:"item_id"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// SkipReason classifies why an item was left out of a batch.
type SkipReason string

const (
	SkipDuplicate  SkipReason = "duplicate"
	SkipMalformed  SkipReason = "malformed"
	SkipSuperseded SkipReason = "superseded"
	SkipCached     SkipReason = "cached"
	SkipOverLimit  SkipReason = "over_limit"
)

// Listing is the result of enumerating an upstream source. Rows the source
// could not turn into items are reported in Skipped.
type Listing struct {
	Items   []WorkItem
	Skipped []Skip
}
