package prepared

import "regexp"

// needsFlowRe matches any construct that the storage layer cannot answer
// directly: joins, grouping/ordering, aggregates, arithmetic in the
// projection, inequality comparisons, or a nested SELECT.
var needsFlowRe = regexp.MustCompile(`(?i)` +
	`\bJOIN\b` +
	`|\bGROUP\s+BY\b` +
	`|\bORDER\s+BY\b` +
	`|\bSUM\s*\(` +
	`|\bCOUNT\s*\(` +
	`|[<>]=?` +
	`|\+|-` +
	`|\bSELECT\b.*\bSELECT\b`)

// NeedsFlow reports whether canonical must be served by a materialized view
// rather than answered directly against primary storage, per §4.9. Only
// SELECT statements are ever routed to a flow.
func NeedsFlow(canonical string) bool {
	if !startsWithSelect(canonical) {
		return false
	}
	return needsFlowRe.MatchString(canonical)
}

func startsWithSelect(s string) bool {
	trimmed := s
	for len(trimmed) > 0 && trimmed[0] == ' ' {
		trimmed = trimmed[1:]
	}
	return equalFoldPrefix(trimmed, "SELECT")
}

func equalFoldPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'a' <= a && a <= 'z' {
			a -= 'a' - 'A'
		}
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
