package datastore

import (
	"encoding/json"
	"strings"
)

// Payload field helpers. Provider payloads arrive as plain nested mappings
// with every field optional; these extract by key presence and tolerate
// missing or mistyped values.

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func intField(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// intSliceField extracts a JSON array of numbers. Non-numeric elements are
// skipped.
func intSliceField(m map[string]any, key string) []int {
	if m == nil {
		return nil
	}
	arr, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(arr))
	for _, el := range arr {
		if f, ok := el.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// jsonField re-serializes a payload subtree for column storage. Absent keys
// store as an empty string, not the JSON null literal.
func jsonField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// displayNameFor builds a user-facing set name, prefixing the series when it
// adds information.
func displayNameFor(name, series string) string {
	if series == "" || series == name || strings.HasPrefix(name, series) {
		return name
	}
	return series + ": " + name
}

// searchTermsFor lists the lowercase terms a set is findable under.
func searchTermsFor(name, series string) []string {
	terms := make([]string, 0, 2)
	if name != "" {
		terms = append(terms, strings.ToLower(name))
	}
	if series != "" && !strings.EqualFold(series, name) {
		terms = append(terms, strings.ToLower(series))
	}
	return terms
}
