package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclement/fluxtrace/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		FlowTypes: map[string]config.FlowTypeConfig{
			"COMMANDE": {
				Description:   "orders",
				RequiredSteps: []string{"COMMANDE_RECU"},
				Applications: map[string]config.ApplicationConfig{
					"orders-service": {
						Patterns: map[string]config.PatternConfig{
							"COMMANDE_RECU": {
								Regex:            `\[(?P<timestamp>[^\]]+)\] COMMANDE_RECU (?P<main_ref>\S+)`,
								TimestampFormat:  "2006-01-02 15:04:05",
								IdentifierFields: []string{"main_ref"},
							},
						},
					},
				},
			},
		},
	}
}

func TestCompileOrdersFlowTypesApplicationsAndStagesAlphabetically(t *testing.T) {
	cfg := validConfig()
	cfg.FlowTypes["COMMANDE"].Applications["another-service"] = config.ApplicationConfig{
		Patterns: map[string]config.PatternConfig{
			"A_STAGE": {Regex: `(?P<timestamp>.*)`, IdentifierFields: []string{}},
		},
	}
	cfg.FlowTypes["ALERTE"] = config.FlowTypeConfig{
		Applications: map[string]config.ApplicationConfig{
			"svc": {Patterns: map[string]config.PatternConfig{"S": {Regex: `(?P<timestamp>.*)`}}},
		},
	}

	cat, err := Compile(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"ALERTE", "COMMANDE"}, cat.FlowTypeNames())

	ft, ok := cat.FlowType("COMMANDE")
	require.True(t, ok)
	assert.Equal(t, []string{"another-service", "orders-service"}, ft.ApplicationNames())
}

func TestCompileMissingCaptureGroupIsCollected(t *testing.T) {
	cfg := validConfig()
	p := cfg.FlowTypes["COMMANDE"].Applications["orders-service"].Patterns["COMMANDE_RECU"]
	p.IdentifierFields = []string{"main_ref", "missing_field"}
	cfg.FlowTypes["COMMANDE"].Applications["orders-service"].Patterns["COMMANDE_RECU"] = p

	_, err := Compile(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, codeMissingCapture, verrs[0].Code)
	assert.Equal(t, "missing_field", verrs[0].Field)
}

func TestCompileBadRegexIsCollected(t *testing.T) {
	cfg := validConfig()
	p := cfg.FlowTypes["COMMANDE"].Applications["orders-service"].Patterns["COMMANDE_RECU"]
	p.Regex = `(?P<timestamp>[`
	cfg.FlowTypes["COMMANDE"].Applications["orders-service"].Patterns["COMMANDE_RECU"] = p

	_, err := Compile(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, codeBadRegex, verrs[0].Code)
}

func TestCompileEmptyApplicationsAndPatternsAreCollected(t *testing.T) {
	cfg := &config.Config{
		FlowTypes: map[string]config.FlowTypeConfig{
			"EMPTY_FT": {},
			"EMPTY_APP": {
				Applications: map[string]config.ApplicationConfig{
					"svc": {},
				},
			},
		},
	}

	_, err := Compile(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	codes := make(map[string]int)
	for _, e := range verrs {
		codes[e.Code]++
	}
	assert.Equal(t, 1, codes[codeNoApplications])
	assert.Equal(t, 1, codes[codeNoPatterns])
}

func TestCandidatesForcedCombinationNotFound(t *testing.T) {
	cat, err := Compile(validConfig())
	require.NoError(t, err)

	_, ok := cat.Candidates("COMMANDE", "unknown-app")
	assert.False(t, ok)

	_, ok = cat.Candidates("UNKNOWN", "")
	assert.False(t, ok)
}

func TestCandidatesUnforcedReturnsEveryPattern(t *testing.T) {
	cat, err := Compile(validConfig())
	require.NoError(t, err)

	refs, ok := cat.Candidates("", "")
	require.True(t, ok)
	require.Len(t, refs, 1)
	assert.Equal(t, "COMMANDE", refs[0].FlowType)
	assert.Equal(t, "orders-service", refs[0].Application)
	assert.Equal(t, "COMMANDE_RECU", refs[0].Pattern.Stage)
}
