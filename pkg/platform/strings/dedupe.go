// Package strings provides string list helpers used when normalizing search
// requests and log fields.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element, drops empty ones and removes exact
// duplicates. The first occurrence wins, so the original order is kept.
//
//	DedupeAndTrim([]string{" 5+ years ML ", "Remote", "5+ years ML", ""})
//	// []string{"5+ years ML", "Remote"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// Clip shortens s to at most limit runes, appending an ellipsis when cut.
func Clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
