// Package strings holds small parsing helpers for comma-separated inputs.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trimming each element and
// dropping empties and repeats. Order of first appearance is kept.
//
//	SplitList(" broker-1:9092, ,broker-2:9092,broker-1:9092")
//	// []string{"broker-1:9092", "broker-2:9092"}
func SplitList(raw string) []string {
	return dedupe(strings.Split(raw, ","), strings.TrimSpace)
}

// SplitListLower is SplitList with case folded, for enum-like query values.
func SplitListLower(raw string) []string {
	return dedupe(strings.Split(raw, ","), func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, norm func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
