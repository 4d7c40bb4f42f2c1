package diagnostics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclement/fluxtrace/internal/diagnostics"
	"github.com/mclement/fluxtrace/internal/ingestor"
	"github.com/mclement/fluxtrace/internal/store"
	"github.com/mclement/fluxtrace/internal/testutil"
)

// After ingesting COMMANDE_RECU, VALIDATION_COMMANDE and
// CREATION_ENFANTS for CMD_001, the report lists it with
// children_count=2 and missing_required_stages=[LIVRAISON_CREEE].
func TestIncompleteFlowsReportsMissingRequiredStages(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:10] CREATION_ENFANTS CMD_001 enfants_ids=ART_001, ART_002`, "", ""))

	report, err := diagnostics.IncompleteFlows(ctx, st, nil)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "COMMANDE", report[0].FlowType)

	var cmd001 *diagnostics.IncompleteFlow
	for i := range report[0].Flows {
		if report[0].Flows[i].Reference == "CMD_001" {
			cmd001 = &report[0].Flows[i]
		}
	}
	require.NotNil(t, cmd001, "CMD_001 must be reported incomplete (missing LIVRAISON_CREEE)")
	assert.Equal(t, 2, cmd001.ChildrenCount)
	assert.Equal(t, []string{"LIVRAISON_CREEE"}, cmd001.MissingRequiredStages)
	assert.InDelta(t, 66.7, cmd001.CompletionRate, 0.05)

	// ORD_001 was auto-created with no logs of its own observed stages
	// beyond none - it has zero logs, so it is also missing every
	// required stage and should appear too.
	var ord001 *diagnostics.IncompleteFlow
	for i := range report[0].Flows {
		if report[0].Flows[i].Reference == "ORD_001" {
			ord001 = &report[0].Flows[i]
		}
	}
	require.NotNil(t, ord001)
	assert.Equal(t, 0.0, ord001.CompletionRate)
}

// TestIncompleteFlowsOmitsCompleteFlows: once every required stage has
// been observed, the flow type's report omits the instance entirely.
func TestIncompleteFlowsOmitsCompleteFlows(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_009 client=CLI_1 articles=[]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_009 -> ordre=ORD_009 status=VALIDE`, "", ""))

	instance, err := st.GetFluxInstanceByReference(ctx, "CMD_009")
	require.NoError(t, err)

	observed, err := st.DistinctLogTypes(ctx, instance.ID)
	require.NoError(t, err)
	assert.Len(t, observed, 2, "sanity: only 2 of 3 required stages observed so far")

	reportBefore, err := diagnostics.IncompleteFlows(ctx, st, nil)
	require.NoError(t, err)
	require.Len(t, reportBefore, 1)
	assert.True(t, containsReference(reportBefore[0].Flows, "CMD_009"), "CMD_009 is still missing LIVRAISON_CREEE")

	// Record the remaining required stage directly through the store
	// (the fixture catalog has no pattern for LIVRAISON_CREEE; the
	// observed-stages set diagnostics reads from is a property of
	// LogEntry.log_type, independent of how the line was parsed).
	appRow, err := st.GetApplicationByName(ctx, instance.FluxTypeID, "orders-service")
	require.NoError(t, err)
	require.NoError(t, st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.AppendLogEntry(ctx, store.LogEntry{
			FluxInstanceID: instance.ID,
			ApplicationID:  appRow.ID,
			LogType:        "LIVRAISON_CREEE",
			Timestamp:      instance.CreatedAt,
			Seq:            st.NextSeq(),
			RawLog:         "synthetic LIVRAISON_CREEE",
			ParsedData:     store.ParsedData{},
			ProcessedAt:    instance.CreatedAt,
		})
		return err
	}))

	reportAfter, err := diagnostics.IncompleteFlows(ctx, st, nil)
	require.NoError(t, err)
	if len(reportAfter) == 1 {
		assert.False(t, containsReference(reportAfter[0].Flows, "CMD_009"), "a flow with every required stage observed must be omitted")
	}
}

func containsReference(flows []diagnostics.IncompleteFlow, reference string) bool {
	for _, f := range flows {
		if f.Reference == reference {
			return true
		}
	}
	return false
}

func TestStatsCountsAndStageFrequency(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:10] CREATION_ENFANTS CMD_001 enfants_ids=ART_001, ART_002`, "", ""))

	stats, err := diagnostics.ComputeStats(ctx, st, false)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.CountsByType["COMMANDE"], "CMD_001, ORD_001, ART_001, ART_002")
	assert.Equal(t, 4, stats.CountsByStatus["ACTIF"])
	assert.Equal(t, 1, stats.StageFrequency["COMMANDE_RECU"])
	assert.Equal(t, 1, stats.StageFrequency["VALIDATION_COMMANDE"])

	require.Len(t, stats.ByType, 1)
	ft := stats.ByType[0]
	assert.Equal(t, "COMMANDE", ft.FlowType)
	assert.Equal(t, 4, ft.InstanceCount)
	assert.Equal(t, 1, ft.FlowsWithCrossRefs)
	assert.Equal(t, 1, ft.FlowsWithChildren)

	var requiredKinds, otherKinds int
	for _, bucket := range ft.Stages {
		switch bucket.Stage {
		case "COMMANDE_RECU", "VALIDATION_COMMANDE":
			assert.Equal(t, "required", bucket.Kind)
			requiredKinds++
		case "CREATION_ENFANTS":
			assert.Equal(t, "other", bucket.Kind)
			otherKinds++
		}
		assert.Empty(t, bucket.References, "references must be omitted without include_details")
	}
	assert.Equal(t, 2, requiredKinds)
	assert.Equal(t, 1, otherKinds)
}

func TestStatsIncludeDetailsEnumeratesReferences(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[]`, "", ""))

	stats, err := diagnostics.ComputeStats(ctx, st, true)
	require.NoError(t, err)

	require.Len(t, stats.ByType, 1)
	var found bool
	for _, bucket := range stats.ByType[0].Stages {
		if bucket.Stage == "COMMANDE_RECU" {
			found = true
			assert.Equal(t, []string{"CMD_001"}, bucket.References)
		}
	}
	assert.True(t, found)
}
