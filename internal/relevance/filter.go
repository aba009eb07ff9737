// Package relevance narrows web results to the ones that mention the prompt.
package relevance

import (
	"fmt"
	"regexp"
	"strings"
)

var keywordPattern = regexp.MustCompile(`[A-Za-z]{3,}`)

// Set is a set of lowercase keywords
type Set map[string]struct{}

// Texter is implemented by result types that expose their searchable text
type Texter interface {
	RelevanceText() string
}

// textFields are the keys checked on untyped JSON objects
var textFields = []string{"title", "body", "snippet", "description"}

// Keywords extracts the lowercased alphabetic tokens of three or more letters
func Keywords(prompt string) Set {
	set := Set{}
	for _, token := range keywordPattern.FindAllString(prompt, -1) {
		set[strings.ToLower(token)] = struct{}{}
	}
	return set
}

// Filter keeps the items whose text contains any keyword. An empty keyword
// set keeps every item. The result is never nil and preserves input order.
func Filter[T any](items []T, keywords Set) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Matches(item, keywords) {
			out = append(out, item)
		}
	}
	return out
}

// FilterAny filters an untyped decoded JSON value. Anything other than a
// list yields an empty result.
func FilterAny(v any, keywords Set) []any {
	items, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return Filter(items, keywords)
}

// Matches reports whether a single item passes the filter
func Matches(item any, keywords Set) bool {
	if len(keywords) == 0 {
		return true
	}

	text, ok := textOf(item)
	if !ok {
		return false
	}
	text = strings.ToLower(text)

	for kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func textOf(item any) (string, bool) {
	switch v := item.(type) {
	case Texter:
		return v.RelevanceText(), true
	case string:
		return v, true
	case map[string]any:
		parts := make([]string, 0, len(textFields))
		for _, k := range textFields {
			switch f := v[k].(type) {
			case nil:
			case string:
				parts = append(parts, f)
			default:
				parts = append(parts, fmt.Sprint(f))
			}
		}
		return strings.Join(parts, " "), true
	default:
		return "", false
	}
}
