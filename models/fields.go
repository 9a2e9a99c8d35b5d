// ABOUTME: Ordered field map for parsed questionnaire replies
// ABOUTME: Preserves insertion order through JSON round trips for stable summaries
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldValue is either a single string or a list of strings.
type FieldValue struct {
	Text   string
	List   []string
	IsList bool
}

// String renders the value for display; lists are comma joined.
func (v FieldValue) String() string {
	if v.IsList {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

// Empty reports whether the value carries no content.
func (v FieldValue) Empty() bool {
	return strings.TrimSpace(v.String()) == ""
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		list := v.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	}
	return json.Marshal(v.Text)
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*v = FieldValue{List: list, IsList: true}
		return nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return fmt.Errorf("field value must be a string or string list: %w", err)
	}
	*v = FieldValue{Text: text}
	return nil
}

// FieldMap maps question titles to answers, keeping insertion order.
type FieldMap struct {
	keys   []string
	values map[string]FieldValue
}

// NewFieldMap creates an empty map.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]FieldValue)}
}

// Set stores a string value. Setting an existing key keeps its position.
func (m *FieldMap) Set(key, value string) {
	m.put(key, FieldValue{Text: value})
}

// SetList stores a list value.
func (m *FieldMap) SetList(key string, values []string) {
	m.put(key, FieldValue{List: append([]string(nil), values...), IsList: true})
}

func (m *FieldMap) put(key string, v FieldValue) {
	if m.values == nil {
		m.values = make(map[string]FieldValue)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m *FieldMap) Get(key string) (FieldValue, bool) {
	if m == nil {
		return FieldValue{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of fields.
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Each calls fn for every field in order.
func (m *FieldMap) Each(fn func(key string, value FieldValue)) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := m.values[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the document's key order.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("field map must be a JSON object")
	}

	m.keys = nil
	m.values = make(map[string]FieldValue)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected field key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var v FieldValue
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		m.put(key, v)
	}
	_, err = dec.Token()
	return err
}
