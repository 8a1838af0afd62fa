package vbw

import (
	"html"
	"regexp"
	"strings"
)

// UndefinedValue replaces "-" cells (averages and ratios with no attempts).
const UndefinedValue = "0.0"

// spanRun strips unit suffixes such as "<span>cm</span>"; "." stops at
// newlines, so only single-line runs are removed.
var spanRun = regexp.MustCompile(`<span.*>.*</span>`)

// cleanText decodes entities and trims whitespace.
func cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(raw))
}

// NormalizeValue turns a stat cell's inner HTML into its CSV value.
func NormalizeValue(raw string) string {
	val := cleanText(spanRun.ReplaceAllString(raw, ""))
	if val == "-" {
		return UndefinedValue
	}
	return val
}

// NormalizeName snake-cases a stat heading: "Attack Points" -> "attack_points".
func NormalizeName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(cleanText(raw))), "_")
}

// fieldNamer prefixes derived statistics ("average", "success", ...) with the
// preceding base statistic so "average" under "attack_points" becomes
// "attack_points_average".
type fieldNamer struct {
	markers []string
	base    string
}

func newFieldNamer(markers []string) *fieldNamer {
	return &fieldNamer{markers: markers}
}

func (n *fieldNamer) name(field string) string {
	if n.derived(field) {
		if n.base == "" {
			return field
		}
		return n.base + "_" + field
	}
	n.base = field
	return field
}

func (n *fieldNamer) derived(field string) bool {
	for _, m := range n.markers {
		if m != "" && strings.Contains(field, m) {
			return true
		}
	}
	return false
}
