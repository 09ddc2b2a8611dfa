package tools

import "strings"

// itemsFromPayload normalizes the campus API's inconsistent JSON shapes
// into a flat item list. The API sometimes returns a bare array, sometimes
// an object wrapping the array under a well-known key, and sometimes an
// object with the array buried under an arbitrary key.
//
// Resolution order:
//  1. payload is a bare array: use it directly
//  2. payload is an object with one of the preferred keys: use that value
//  3. payload is an object: collect every array-valued field
func itemsFromPayload(payload any, preferredKeys ...string) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range preferredKeys {
			if items, ok := v[key].([]any); ok {
				return items
			}
		}
		var items []any
		for _, value := range v {
			if list, ok := value.([]any); ok {
				items = append(items, list...)
			}
		}
		return items
	default:
		return nil
	}
}

// fieldString reads a string-ish field from a decoded JSON object.
// Non-string scalars are ignored; search fields are textual.
func fieldString(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

// matchesAny reports whether query is a case-insensitive substring of any
// of the given field values on the item.
func matchesAny(item map[string]any, query string, fields ...string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		if v := fieldString(item, f); v != "" && strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}
