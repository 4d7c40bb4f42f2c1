package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclement/fluxtrace/internal/ingestor"
	"github.com/mclement/fluxtrace/internal/query"
	"github.com/mclement/fluxtrace/internal/testutil"
)

func TestGetFlowDetailsNotFound(t *testing.T) {
	_, st := testutil.NewCommandeFixture(t)

	details, found, err := query.GetFlowDetails(context.Background(), st, "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, details)
}

func TestGetFlowDetailsTopLevelFlow(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`, "", ""))

	details, found, err := query.GetFlowDetails(ctx, st, "CMD_001")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, details.SubflowInfo.IsSubflow)
	assert.Equal(t, "CMD_001", details.Flux.Reference)
	require.Len(t, details.Logs, 2)
	assert.True(t, details.Logs[0].Timestamp.Before(details.Logs[1].Timestamp) || details.Logs[0].Timestamp.Equal(details.Logs[1].Timestamp))
	require.Len(t, details.CrossReferences, 1)
	assert.Equal(t, "ORD_001", details.CrossReferences[0].TargetReference)
}

// Querying a child's reference must surface the parent as the primary
// subject, with subflow_info naming the child.
func TestGetFlowDetailsSubFlowPromotesParent(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:10] CREATION_ENFANTS CMD_001 enfants_ids=ART_001, ART_002`, "", ""))

	details, found, err := query.GetFlowDetails(ctx, st, "ART_001")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "CMD_001", details.Flux.Reference, "parent becomes the primary subject")
	require.True(t, details.SubflowInfo.IsSubflow)
	assert.Equal(t, "ART_001", details.SubflowInfo.RequestedReference)
	assert.Equal(t, "CMD_001", details.SubflowInfo.ParentReference)
	require.NotNil(t, details.SubflowInfo.SubflowDetails)
	assert.Equal(t, "ART_001", details.SubflowInfo.SubflowDetails.Reference)

	require.Len(t, details.Children, 2)
	assert.Equal(t, "ART_001", details.Children[0].Reference)
	assert.Equal(t, "ART_002", details.Children[1].Reference)
}

// The closure over one outgoing cross-reference contains both flows;
// a later reverse edge then forms a bidirectional pair.
func TestGetAllLinkedFlowsClosureAndBidirectionalPairs(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`, "", ""))

	linked, found, err := query.GetAllLinkedFlows(ctx, st, "CMD_001")
	require.NoError(t, err)
	require.True(t, found)

	require.Len(t, linked.Flows, 2)
	assert.Equal(t, "CMD_001", linked.Flows[0].Flux.Reference)
	assert.Equal(t, "ORD_001", linked.Flows[1].Flux.Reference)
	assert.Equal(t, 1, linked.Summary.TotalConnections)
	assert.Empty(t, linked.Summary.BidirectionalPairs)

	// Now make ORD_001 reference CMD_001 back, forming a bidirectional pair.
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:00] COMMANDE_RECU ORD_001 client=CLI_999 articles=[]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:05] VALIDATION_COMMANDE ORD_001 -> ordre=CMD_001 status=VALIDE`, "", ""))

	linked, found, err = query.GetAllLinkedFlows(ctx, st, "CMD_001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, linked.Summary.TotalConnections)
	require.Len(t, linked.Summary.BidirectionalPairs, 1)
	assert.Equal(t, [2]string{"CMD_001", "ORD_001"}, linked.Summary.BidirectionalPairs[0])
}

func TestGetAllLinkedFlowsTerminatesOnCycles(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	// A -> B -> C -> A: a cycle in the cross-reference graph.
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:00] VALIDATION_COMMANDE CMD_A -> ordre=CMD_B status=VALIDE`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:01] VALIDATION_COMMANDE CMD_B -> ordre=CMD_C status=VALIDE`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:02] VALIDATION_COMMANDE CMD_C -> ordre=CMD_A status=VALIDE`, "", ""))

	linked, found, err := query.GetAllLinkedFlows(ctx, st, "CMD_A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, linked.Flows, 3, "the visited-set guard must terminate the cyclic traversal")
}
