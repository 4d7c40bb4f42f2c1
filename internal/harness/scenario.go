// Package harness provides scenario-driven test execution and
// golden-file comparison: a scenario is a config plus an ordered batch
// of raw log lines, run through an Ingestor with fixed batch token and
// clock so the resulting store state is reproducible across runs.
package harness

import (
	"context"
	"testing"
	"time"

	"github.com/mclement/fluxtrace/internal/catalog"
	"github.com/mclement/fluxtrace/internal/config"
	"github.com/mclement/fluxtrace/internal/ingestor"
	"github.com/mclement/fluxtrace/internal/store"
	"github.com/mclement/fluxtrace/internal/testutil"
)

// Scenario is one reproducible ingestion run.
type Scenario struct {
	// Name identifies the scenario, used as the golden-file base name.
	Name string

	// Config is the catalog configuration to compile and register.
	Config *config.Config

	// Lines are raw log lines ingested in order via ProcessLine.
	Lines []string

	// BatchToken is the fixed token the Ingestor's batch-token generator
	// returns. Defaults to "test-batch" if empty. Run ingests through
	// ProcessLine, which does not use it, so it does not reach the store.
	BatchToken string

	// FixedTime is the fixed clock value used for every CreatedAt,
	// UpdatedAt and ProcessedAt timestamp. Defaults to a fixed instant
	// if zero.
	FixedTime time.Time
}

// LineOutcome records whether one line was ingested or rejected.
type LineOutcome struct {
	Line string
	Err  error
}

// Result is the outcome of running a Scenario.
type Result struct {
	Catalog  *catalog.Catalog
	Store    *store.Store
	Outcomes []LineOutcome
}

// defaultFixedTime is used whenever a Scenario doesn't specify its own
// FixedTime, so unrelated scenarios don't collide on "now".
var defaultFixedTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// Run compiles the scenario's catalog, registers its flow types and
// applications against a fresh in-memory store, and ingests every line
// in order with a fixed batch token and clock.
func Run(tb testing.TB, scenario Scenario) *Result {
	tb.Helper()

	st := testutil.OpenStore(tb)
	testutil.RegisterFlowTypes(tb, st, scenario.Config)
	cat := testutil.CompileCatalog(tb, scenario.Config)

	token := scenario.BatchToken
	if token == "" {
		token = "test-batch"
	}
	fixedTime := scenario.FixedTime
	if fixedTime.IsZero() {
		fixedTime = defaultFixedTime
	}

	ing := ingestor.New(st, cat).
		WithTokenGenerator(ingestor.FixedGenerator{Token: token}).
		WithClock(func() time.Time { return fixedTime })

	result := &Result{Catalog: cat, Store: st}
	ctx := context.Background()
	for _, line := range scenario.Lines {
		err := ing.ProcessLine(ctx, line, "", "")
		result.Outcomes = append(result.Outcomes, LineOutcome{Line: line, Err: err})
	}
	return result
}
