// Package loose decodes loosely specified JSON responses by trying an ordered
// list of accessors and keeping the first non-empty value.
package loose

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Object map[string]any

// Decode parses raw into an Object. Non-object JSON yields an empty Object.
func Decode(raw []byte) (Object, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return Object{}, err
	}
	obj, _ := value.(map[string]any)
	return Object(obj), nil
}

// Get walks a dotted path such as "result.text".
func (o Object) Get(path string) any {
	var cur any = map[string]any(o)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// Child returns the nested object at path, or nil.
func (o Object) Child(path string) Object {
	m, _ := o.Get(path).(map[string]any)
	return Object(m)
}

// Accessor extracts one candidate string from an Object.
type Accessor func(Object) string

// Field reads path as a scalar rendered to string.
func Field(path string) Accessor {
	return func(o Object) string {
		return Scalar(o.Get(path))
	}
}

// Fields builds one accessor per path, in order.
func Fields(paths ...string) []Accessor {
	out := make([]Accessor, 0, len(paths))
	for _, p := range paths {
		out = append(out, Field(p))
	}
	return out
}

// First returns the first accessor result that is not blank.
func First(o Object, accessors ...Accessor) string {
	if o == nil {
		return ""
	}
	for _, access := range accessors {
		if v := strings.TrimSpace(access(o)); v != "" {
			return v
		}
	}
	return ""
}

// FirstString is First over plain field paths.
func FirstString(o Object, paths ...string) string {
	return First(o, Fields(paths...)...)
}

// FirstList returns the first path holding a non-empty array.
func FirstList(o Object, paths ...string) []any {
	for _, p := range paths {
		if list, ok := o.Get(p).([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

// Strings renders the first non-empty list found at paths as trimmed strings.
// Object entries are rendered through their "text", "label" or "value" keys.
func Strings(o Object, paths ...string) []string {
	list := FirstList(o, paths...)
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		var s string
		if m, ok := item.(map[string]any); ok {
			s = FirstString(Object(m), "text", "label", "value", "description")
		} else {
			s = strings.TrimSpace(Scalar(item))
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Scalar renders strings, numbers and booleans. Anything else is empty.
func Scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Number reads a numeric value that may also be encoded as a string.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
