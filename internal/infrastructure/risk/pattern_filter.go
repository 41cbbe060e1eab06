// Package risk implements the two-stage turn classifier: a cheap pattern
// filter followed by a language-model judge.
package risk

import "regexp"

// injectionPattern pairs a compiled expression with the label reported in
// the verdict reason.
type injectionPattern struct {
	label string
	re    *regexp.Regexp
}

// The quick filter targets mechanical injection markers, not meaning. A hit
// is treated as maximum risk without consulting the judge.
var injectionPatterns = []injectionPattern{
	{label: "template_expression", re: regexp.MustCompile(`(?s)\{\{.*\}\}`)},
	{label: "script_tag", re: regexp.MustCompile(`(?i)<\s*script`)},
	{label: "sql_fragment", re: regexp.MustCompile(`(?i)\b(union\s+select|drop\s+table|insert\s+into|delete\s+from)\b`)},
	{label: "shell_substitution", re: regexp.MustCompile(`\$\([^)]*\)` + "|`[^`]+`")},
}

// MatchPattern runs the quick filter and returns the label of the first
// matching pattern, or empty when the text is mechanically clean.
func MatchPattern(text string) string {
	for _, p := range injectionPatterns {
		if p.re.MatchString(text) {
			return p.label
		}
	}
	return ""
}
