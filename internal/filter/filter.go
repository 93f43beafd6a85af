// Package filter narrows an artifact page by name text and an inclusive date range.
// Everything here is pure: no I/O, no shared state.
package filter

import (
	"strings"
	"unicode"

	"github.com/jonathan/resume-vault/internal/types"
)

// Normalize lower-cases s and drops whitespace, hyphens and underscores, so that
// "Front-End Engineer", "frontend engineer" and "FRONT_END engineer" compare equal.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// Matches reports whether a single artifact satisfies the criteria.
// ISO dates order lexicographically, so bounds are plain string comparisons.
func Matches(a types.Artifact, c types.FilterCriteria) bool {
	if c.StartDate != "" && a.Date < c.StartDate {
		return false
	}
	if c.EndDate != "" && a.Date > c.EndDate {
		return false
	}
	if c.Text == "" {
		return true
	}
	return strings.Contains(Normalize(a.Name), Normalize(c.Text))
}

// Apply returns the artifacts matching c in their input order.
func Apply(items []types.Artifact, c types.FilterCriteria) []types.Artifact {
	out := make([]types.Artifact, 0, len(items))
	for _, a := range items {
		if Matches(a, c) {
			out = append(out, a)
		}
	}
	return out
}

// CountByDate folds items into a date -> count mapping.
func CountByDate(items []types.Artifact) map[string]int {
	counts := make(map[string]int)
	for _, a := range items {
		counts[a.Date]++
	}
	return counts
}
