package parser

import "time"

// fallbackLayouts are tried, in order, after a pattern's own declared
// layout fails: ISO-like variants with T or space separator, optional
// subsecond, optional timezone.
var fallbackLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp tries declaredLayout first, then the fallback
// variants. A value that fails every layout is reported as unparsable
// (ok=false) rather than an error, so the caller can skip this pattern
// and keep trying others.
func parseTimestamp(value, declaredLayout string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	if declaredLayout != "" {
		if t, err := time.Parse(declaredLayout, value); err == nil {
			return t, true
		}
	}

	for _, layout := range fallbackLayouts {
		if layout == declaredLayout {
			continue
		}
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
