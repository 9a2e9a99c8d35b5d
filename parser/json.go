// ABOUTME: Lenient decoding of model output into an ordered field map
// ABOUTME: Salvages the first balanced JSON object from chatty or fenced responses
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/leadsync/models"
)

var errNotObject = errors.New("model output is not a JSON object")

// ExtractJSONObject returns the first balanced {...} region of s, honoring
// string literals and escapes.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
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
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		// Unbalanced from this brace; try the next one.
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// decodeFields reads a flat JSON object. Strings and string lists are kept,
// numbers and booleans are stringified, nulls and nested objects dropped.
func decodeFields(data string) (*models.FieldMap, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	fields := models.NewFieldMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		setValue(fields, key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func setValue(fields *models.FieldMap, key string, raw json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			fields.Set(key, strings.TrimSpace(s))
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return
		}
		var list []string
		for _, it := range items {
			if s := scalarString(it); s != "" {
				list = append(list, s)
			}
		}
		if len(list) > 0 {
			fields.SetList(key, list)
		}
	case '{', 'n':
		// nested objects and null carry no answer
	default:
		if s := scalarString(raw); s != "" {
			fields.Set(key, s)
		}
	}
}

func scalarString(raw json.RawMessage) string {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "yes"
		}
		return "no"
	}
	return ""
}

// parseModelOutput decodes the output directly, then from its first
// balanced object.
func parseModelOutput(out string) (*models.FieldMap, error) {
	fields, err := decodeFields(strings.TrimSpace(out))
	if err == nil {
		return fields, nil
	}
	obj, ok := ExtractJSONObject(out)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model output: %w", err)
	}
	return decodeFields(obj)
}
