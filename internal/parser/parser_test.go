package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclement/fluxtrace/internal/catalog"
	"github.com/mclement/fluxtrace/internal/config"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cfg := &config.Config{
		FlowTypes: map[string]config.FlowTypeConfig{
			"COMMANDE": {
				Applications: map[string]config.ApplicationConfig{
					"orders-service": {
						Patterns: map[string]config.PatternConfig{
							"COMMANDE_RECU": {
								Regex:            `\[(?P<timestamp>[^\]]+)\] COMMANDE_RECU (?P<main_ref>\S+) client=(?P<client>\S+)`,
								TimestampFormat:  "2006-01-02 15:04:05",
								IdentifierFields: []string{"main_ref"},
								PayloadFields:    []string{"client"},
							},
						},
					},
				},
			},
		},
	}
	cat, err := catalog.Compile(cfg)
	require.NoError(t, err)
	return cat
}

func TestParseExtractsFields(t *testing.T) {
	cat := testCatalog(t)

	parsed, ok := Parse(cat, "[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123", "", "")
	require.True(t, ok)

	assert.Equal(t, "COMMANDE", parsed.FlowType)
	assert.Equal(t, "orders-service", parsed.Application)
	assert.Equal(t, "COMMANDE_RECU", parsed.LogType)
	assert.Equal(t, "CMD_001", parsed.IdentifierFields["main_ref"])
	assert.Equal(t, "CLI_123", parsed.PayloadFields["client"])
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), parsed.Timestamp)
}

func TestParseEmptyLineDoesNotMatch(t *testing.T) {
	cat := testCatalog(t)
	_, ok := Parse(cat, "   ", "", "")
	assert.False(t, ok)
}

func TestParseUnrecognizedLineDoesNotMatch(t *testing.T) {
	cat := testCatalog(t)
	_, ok := Parse(cat, "this does not match anything", "", "")
	assert.False(t, ok)
}

func TestParseUnparsableTimestampSkipsToNextCandidate(t *testing.T) {
	cat := testCatalog(t)
	// Matches the pattern's field structure but the timestamp capture
	// can't be parsed against the configured layout - no other
	// candidate exists, so the whole line is a no-match.
	_, ok := Parse(cat, "[not-a-timestamp] COMMANDE_RECU CMD_001 client=CLI_123", "", "")
	assert.False(t, ok)
}

func TestParseForcedFlowTypeNotInCatalog(t *testing.T) {
	cat := testCatalog(t)
	_, ok := Parse(cat, "[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123", "UNKNOWN", "")
	assert.False(t, ok)
}

func TestParseNormalizesUnicodeToNFC(t *testing.T) {
	cat := testCatalog(t)

	// "e" (U+0065) plus a combining acute accent (U+0301) is an
	// alternate spelling of the precomposed "é" (U+00E9); the parser
	// must extract the same value either way.
	decomposed := "e" + string(rune(0x0301)) + "toile"
	line := "[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=" + decomposed

	parsed, ok := Parse(cat, line, "", "")
	require.True(t, ok)

	composed := string(rune(0x00E9)) + "toile"
	assert.Equal(t, composed, parsed.PayloadFields["client"])
}
