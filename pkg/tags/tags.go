// Package tags canonicalizes free-text symptom and measurement tags so that
// "Frequent Urination" written by a clinician and "frequent_urination"
// attached to a reading compare equal.
package tags

import "strings"

// Normalize lowercases s, trims it and joins inner whitespace and hyphens
// with underscores.
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}

// NormalizeAll normalizes every tag, dropping empties and duplicates while
// keeping first-seen order. It never returns nil.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = Normalize(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
