// Package parser matches a raw log line against the compiled catalog,
// producing a ParsedLog or reporting no-match.
package parser

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mclement/fluxtrace/internal/catalog"
)

// ParsedLog is the typed, extracted record the ingestor consumes.
type ParsedLog struct {
	Timestamp   time.Time
	LogType     string
	FlowType    string
	Application string

	IdentifierFields map[string]string
	PayloadFields    map[string]string
	ReferenceLinks   map[string]string

	// IdentifierOrder preserves the pattern's declared identifier_fields
	// order, so the main reference (the first non-empty value) is
	// picked deterministically.
	IdentifierOrder []string
	// ReferenceOrder preserves reference_links declared order so
	// cross-reference creation is deterministic across identical input.
	ReferenceOrder []string

	RawLog string
}

// Parse tries the line against every candidate pattern the forced
// selectors admit, in catalog order, returning the first match. ok is
// false for a no-match - either nothing in the catalog matched, or a
// forced flow-type/application combination does not exist.
func Parse(cat *catalog.Catalog, rawLine, forceFlowType, forceApplication string) (*ParsedLog, bool) {
	line := strings.TrimSpace(rawLine)
	if line == "" {
		return nil, false
	}

	candidates, ok := cat.Candidates(forceFlowType, forceApplication)
	if !ok {
		slog.Error("forced flow type/application combination not found in catalog",
			"flow_type", forceFlowType, "application", forceApplication)
		return nil, false
	}

	normalized := norm.NFC.String(line)

	for _, ref := range candidates {
		match := ref.Pattern.Regex.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}

		groups := captureMap(ref.Pattern.Regex.SubexpNames(), match)

		ts, ok := parseTimestamp(groups["timestamp"], ref.Pattern.TimestampFormat)
		if !ok {
			slog.Debug("pattern matched but timestamp unparsable, continuing",
				"flow_type", ref.FlowType, "application", ref.Application, "stage", ref.Pattern.Stage)
			continue
		}

		return &ParsedLog{
			Timestamp:        ts,
			LogType:          ref.Pattern.Stage,
			FlowType:         ref.FlowType,
			Application:      ref.Application,
			IdentifierFields: extract(groups, ref.Pattern.IdentifierFields),
			PayloadFields:    extract(groups, ref.Pattern.PayloadFields),
			ReferenceLinks:   extract(groups, ref.Pattern.ReferenceLinks),
			IdentifierOrder:  ref.Pattern.IdentifierFields,
			ReferenceOrder:   ref.Pattern.ReferenceLinks,
			RawLog:           line,
		}, true
	}

	slog.Debug("line not recognized by any pattern", "line", truncate(line, 120))
	return nil, false
}

func captureMap(names, match []string) map[string]string {
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		groups[name] = match[i]
	}
	return groups
}

func extract(groups map[string]string, fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = groups[f]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
