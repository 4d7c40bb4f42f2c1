package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/mclement/fluxtrace/internal/query"
)

// LinkedFlowsSnapshot is the canonical, deterministically-ordered view
// of GetAllLinkedFlows used for golden-file comparison. It carries its
// own name so a single golden file can be asserted against from
// multiple call sites without re-deriving it.
type LinkedFlowsSnapshot struct {
	Scenario string             `json:"scenario"`
	Root     string             `json:"root"`
	Result   *query.LinkedFlows `json:"result"`
}

// BuildLinkedFlowsSnapshot runs GetAllLinkedFlows for reference against
// the scenario's result store and renders it as the indented JSON a
// golden file would compare against.
func BuildLinkedFlowsSnapshot(t *testing.T, name string, result *Result, reference string) (*query.LinkedFlows, []byte) {
	t.Helper()

	linked, found, err := query.GetAllLinkedFlows(context.Background(), result.Store, reference)
	if err != nil {
		t.Fatalf("GetAllLinkedFlows(%q): %v", reference, err)
	}
	if !found {
		t.Fatalf("GetAllLinkedFlows(%q): reference not found", reference)
	}

	snapshot := LinkedFlowsSnapshot{Scenario: name, Root: reference, Result: linked}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return linked, data
}

// AssertLinkedFlowsGolden compares BuildLinkedFlowsSnapshot's output
// against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertLinkedFlowsGolden(t *testing.T, name string, result *Result, reference string) {
	t.Helper()

	_, data := BuildLinkedFlowsSnapshot(t, name, result, reference)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
