package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclement/fluxtrace/internal/testutil"
)

func TestRunIngestsLinesInOrder(t *testing.T) {
	result := Run(t, Scenario{
		Name:   "commande-basic",
		Config: testutil.CommandeConfig(),
		Lines: []string{
			`[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`,
			`[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`,
		},
	})

	require.Len(t, result.Outcomes, 2)
	for _, o := range result.Outcomes {
		assert.NoError(t, o.Err)
	}

	linked, _ := BuildLinkedFlowsSnapshot(t, "commande-basic", result, "CMD_001")
	require.Len(t, linked.Flows, 2) // CMD_001 and its auto-created cross-reference target ORD_001
	assert.Equal(t, "CMD_001", linked.Flows[0].Flux.Reference)
	assert.Len(t, linked.CrossReferenceMap, 1)
	assert.Equal(t, "ordre", linked.CrossReferenceMap[0].Field)
}

// TestLinkedFlowsGoldenSnapshot pins the full linked-flows view for the
// basic two-line scenario: the fixed clock makes the store state, and
// therefore the snapshot JSON, identical across runs.
func TestLinkedFlowsGoldenSnapshot(t *testing.T) {
	result := Run(t, Scenario{
		Name:   "commande-basic",
		Config: testutil.CommandeConfig(),
		Lines: []string{
			`[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`,
			`[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`,
		},
	})

	AssertLinkedFlowsGolden(t, "commande-basic", result, "CMD_001")
}

func TestRunRecordsNoMatchOutcome(t *testing.T) {
	cfg := testutil.CommandeConfig()
	result := Run(t, Scenario{
		Name:   "no-match",
		Config: cfg,
		Lines:  []string{"this line matches nothing"},
	})

	require.Len(t, result.Outcomes, 1)
	assert.Error(t, result.Outcomes[0].Err)
}
