package ingestor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclement/fluxtrace/internal/ingestor"
	"github.com/mclement/fluxtrace/internal/testutil"
)

// commandeLines is a worked example over a COMMANDE flow whose
// required stages include COMMANDE_RECU, VALIDATION_COMMANDE and
// LIVRAISON_CREEE (never observed by these lines, so the flow stays
// incomplete throughout).
var commandeLines = []string{
	`[2024-01-15 10:30:00] COMMANDE_RECU CMD_001 client=CLI_123 articles=[ART_001, ART_002]`,
	`[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=ORD_001 status=VALIDE`,
	`[2024-01-15 10:30:10] CREATION_ENFANTS CMD_001 enfants_ids=ART_001, ART_002`,
}

func TestFirstLineCreatesInstanceAndLog(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))

	inst, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	assert.Equal(t, "ACTIF", inst.Status)
	assert.Nil(t, inst.ParentID)

	logs, err := st.ListLogEntries(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "COMMANDE_RECU", logs[0].LogType)

	refs, err := st.ListOutgoingCrossReferences(ctx, inst.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	children, err := st.ListChildren(ctx, inst.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestCrossReferenceAutoCreatesTarget(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))
	require.NoError(t, ing.ProcessLine(ctx, commandeLines[1], "", ""))

	source, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	target, err := st.GetFluxInstanceByReference(ctx, "ORD_001")
	require.NoError(t, err)
	assert.Equal(t, source.FluxTypeID, target.FluxTypeID, "auto-created target takes the source's flow type")

	edges, err := st.ListOutgoingCrossReferences(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "ORD_001", edges[0].TargetReference)
	assert.Equal(t, "ordre", edges[0].Field)
}

func TestCreationEnfantsMakesChildren(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	for _, line := range commandeLines {
		require.NoError(t, ing.ProcessLine(ctx, line, "", ""))
	}

	parent, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)

	children, err := st.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "ART_001", children[0].Reference)
	assert.Equal(t, "ART_002", children[1].Reference)
	for _, c := range children {
		require.NotNil(t, c.ParentID)
		assert.Equal(t, parent.ID, *c.ParentID)
	}
}

func TestCreationEnfantsTrimsWhitespaceAndDropsEmptyTokens(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))
	line := `[2024-01-15 10:30:10] CREATION_ENFANTS CMD_001 enfants_ids=  ART_001 ,, ART_002  ,`
	require.NoError(t, ing.ProcessLine(ctx, line, "", ""))

	parent, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	children, err := st.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "ART_001", children[0].Reference)
	assert.Equal(t, "ART_002", children[1].Reference)
}

func TestCreationEnfantsSkipsExistingCollision(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	// ART_001 already exists as a top-level instance before any
	// CREATION_ENFANTS line mentions it.
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:29:00] COMMANDE_RECU ART_001 client=CLI_999 articles=[]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))
	require.NoError(t, ing.ProcessLine(ctx, commandeLines[2], "", ""))

	art001, err := st.GetFluxInstanceByReference(ctx, "ART_001")
	require.NoError(t, err)
	assert.Nil(t, art001.ParentID, "existing instance is not reparented on collision")

	cmd001, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	children, err := st.ListChildren(ctx, cmd001.ID)
	require.NoError(t, err)
	require.Len(t, children, 1, "only ART_002 is created as a new child; ART_001 collided and was skipped")
	assert.Equal(t, "ART_002", children[0].Reference)
}

func TestTraitementEnfantBindsParentOnceAndNeverOverwrites(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:00] COMMANDE_RECU CMD_002 client=CLI_456 articles=[]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:05] TRAITEMENT_ENFANT CMD_002 parent_ref=CMD_001`, "", ""))

	child, err := st.GetFluxInstanceByReference(ctx, "CMD_002")
	require.NoError(t, err)
	parent, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	// A second TRAITEMENT_ENFANT naming a different parent must not
	// overwrite the already-bound parent.
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:10] COMMANDE_RECU CMD_003 client=CLI_789 articles=[]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:15] TRAITEMENT_ENFANT CMD_002 parent_ref=CMD_003`, "", ""))

	child, err = st.GetFluxInstanceByReference(ctx, "CMD_002")
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID, "existing parent binding must never be overwritten")
}

// TestTraitementEnfantRefusesCyclicBinding covers the "no FluxInstance
// is its own ancestor" invariant: once CMD_002 is bound under CMD_001,
// a later line naming CMD_002 as CMD_001's parent must be a no-op.
func TestTraitementEnfantRefusesCyclicBinding(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:00] COMMANDE_RECU CMD_002 client=CLI_456 articles=[]`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:05] TRAITEMENT_ENFANT CMD_002 parent_ref=CMD_001`, "", ""))
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:10] TRAITEMENT_ENFANT CMD_001 parent_ref=CMD_002`, "", ""))
	// A flow naming itself as parent is likewise a no-op.
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:31:15] TRAITEMENT_ENFANT CMD_001 parent_ref=CMD_001`, "", ""))

	cmd001, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	assert.Nil(t, cmd001.ParentID, "binding CMD_001 under its own descendant would make it its own ancestor")
}

func TestCrossReferenceToSelfCreatesNoEdge(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	require.NoError(t, ing.ProcessLine(ctx, commandeLines[0], "", ""))
	// ordre references the source's own main reference.
	require.NoError(t, ing.ProcessLine(ctx, `[2024-01-15 10:30:05] VALIDATION_COMMANDE CMD_001 -> ordre=CMD_001 status=VALIDE`, "", ""))

	inst, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	edges, err := st.ListOutgoingCrossReferences(ctx, inst.ID)
	require.NoError(t, err)
	assert.Empty(t, edges, "a self-referencing value must not create a cross-reference edge")
}

func TestEmptyLineIsNoMatch(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)

	err := ing.ProcessLine(context.Background(), "   ", "", "")
	assert.ErrorIs(t, err, ingestor.ErrNoMatch)
}

func TestLineMatchingRegexButUnparsableTimestampIsNoMatch(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)

	line := `[not-a-timestamp] COMMANDE_RECU CMD_404 client=CLI_1 articles=[]`
	err := ing.ProcessLine(context.Background(), line, "", "")
	assert.ErrorIs(t, err, ingestor.ErrNoMatch)
}

func TestUnknownFlowTypeAndApplicationAreRejected(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	err := ing.ProcessLine(ctx, commandeLines[0], "NOT_A_FLOW", "")
	require.Error(t, err)

	err = ing.ProcessLine(ctx, commandeLines[0], "", "not-an-app")
	require.Error(t, err)
}

// Replaying the same lines twice must add exactly one LogEntry per
// ingestion and no new FluxInstance, CrossReference, or child.
func TestReplayIsIdempotentForGraphShape(t *testing.T) {
	cat, st := testutil.NewCommandeFixture(t)
	ing := ingestor.New(st, cat)
	ctx := context.Background()

	for _, line := range commandeLines {
		require.NoError(t, ing.ProcessLine(ctx, line, "", ""))
	}
	for _, line := range commandeLines {
		require.NoError(t, ing.ProcessLine(ctx, line, "", ""))
	}

	cmd001, err := st.GetFluxInstanceByReference(ctx, "CMD_001")
	require.NoError(t, err)
	logs, err := st.ListLogEntries(ctx, cmd001.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 6, "each of the 3 lines replayed twice yields exactly one LogEntry per ingestion")

	children, err := st.ListChildren(ctx, cmd001.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2, "replay must not create duplicate children")

	edges, err := st.ListOutgoingCrossReferences(ctx, cmd001.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1, "replay must not create duplicate cross-references")

	ord001, err := st.GetFluxInstanceByReference(ctx, "ORD_001")
	require.NoError(t, err)
	assert.NotZero(t, ord001.ID)
}
