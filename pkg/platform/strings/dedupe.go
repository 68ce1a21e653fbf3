// Package strings provides small string-slice helpers shared across
// services.
package strings

import "strings"

// DedupeAndTrim trims whitespace from every element and drops empties and
// duplicates, preserving first-seen order.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", ""})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
