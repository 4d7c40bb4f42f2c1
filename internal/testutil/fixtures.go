// Package testutil provides fixtures shared by tests across the core:
// a minimal "COMMANDE" flow-type configuration, and helpers to stand
// up an in-memory store and compiled catalog against it.
package testutil

import (
	"context"
	"testing"

	"github.com/mclement/fluxtrace/internal/catalog"
	"github.com/mclement/fluxtrace/internal/config"
	"github.com/mclement/fluxtrace/internal/store"
)

// CommandeConfig builds a single "COMMANDE" flow type with one
// application ("orders-service") and patterns for COMMANDE_RECU,
// VALIDATION_COMMANDE, CREATION_ENFANTS, and TRAITEMENT_ENFANT.
// LIVRAISON_CREEE is a required stage with no configured pattern - the
// fixture never observes it, so flows stay incomplete by design.
func CommandeConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{URL: ":memory:"},
		FlowTypes: map[string]config.FlowTypeConfig{
			"COMMANDE": {
				Description:   "customer order lifecycle",
				RequiredSteps: []string{"COMMANDE_RECU", "VALIDATION_COMMANDE", "LIVRAISON_CREEE"},
				OptionalSteps: []string{},
				Applications: map[string]config.ApplicationConfig{
					"orders-service": {
						Patterns: map[string]config.PatternConfig{
							"COMMANDE_RECU": {
								Regex:            `\[(?P<timestamp>[^\]]+)\] COMMANDE_RECU (?P<main_ref>\S+) client=(?P<client>\S+) articles=\[(?P<articles>[^\]]*)\]`,
								TimestampFormat:  "2006-01-02 15:04:05",
								IdentifierFields: []string{"main_ref"},
								PayloadFields:    []string{"client", "articles"},
								ReferenceLinks:   []string{},
							},
							"VALIDATION_COMMANDE": {
								Regex:            `\[(?P<timestamp>[^\]]+)\] VALIDATION_COMMANDE (?P<main_ref>\S+) \S+ ordre=(?P<ordre>\S+) status=(?P<status>\S+)`,
								TimestampFormat:  "2006-01-02 15:04:05",
								IdentifierFields: []string{"main_ref"},
								PayloadFields:    []string{"status"},
								ReferenceLinks:   []string{"ordre"},
							},
							"CREATION_ENFANTS": {
								Regex:            `\[(?P<timestamp>[^\]]+)\] CREATION_ENFANTS (?P<main_ref>\S+) enfants_ids=(?P<enfants_ids>.*)`,
								TimestampFormat:  "2006-01-02 15:04:05",
								IdentifierFields: []string{"main_ref"},
								PayloadFields:    []string{"enfants_ids"},
								ReferenceLinks:   []string{},
							},
							"TRAITEMENT_ENFANT": {
								Regex:            `\[(?P<timestamp>[^\]]+)\] TRAITEMENT_ENFANT (?P<main_ref>\S+) parent_ref=(?P<parent_ref>\S+)`,
								TimestampFormat:  "2006-01-02 15:04:05",
								IdentifierFields: []string{"main_ref"},
								PayloadFields:    []string{"parent_ref"},
								ReferenceLinks:   []string{},
							},
						},
					},
				},
			},
		},
	}
}

// OpenStore opens a fresh in-memory store, closing it when the test
// completes.
func OpenStore(tb testing.TB) *store.Store {
	tb.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		tb.Fatalf("open store: %v", err)
	}
	tb.Cleanup(func() { st.Close() })
	return st
}

// CompileCatalog builds a Catalog from cfg, failing the test on any
// validation error.
func CompileCatalog(tb testing.TB, cfg *config.Config) *catalog.Catalog {
	tb.Helper()
	cat, err := catalog.Compile(cfg)
	if err != nil {
		tb.Fatalf("compile catalog: %v", err)
	}
	return cat
}

// RegisterFlowTypes mirrors internal/cli's openApp bootstrap: it
// ensures every configured flow type and application exists as a row
// before any ingestion happens, exactly as a freshly-initialized store
// would be prepared.
func RegisterFlowTypes(tb testing.TB, st *store.Store, cfg *config.Config) {
	tb.Helper()
	ctx := context.Background()
	for name, ft := range cfg.FlowTypes {
		ftRow, err := st.EnsureFlowType(ctx, name, ft.Description, ft.RequiredSteps, ft.OptionalSteps)
		if err != nil {
			tb.Fatalf("ensure flow type %q: %v", name, err)
		}
		for appName := range ft.Applications {
			if _, err := st.EnsureApplication(ctx, ftRow.ID, appName); err != nil {
				tb.Fatalf("ensure application %q: %v", appName, err)
			}
		}
	}
}

// NewCommandeFixture builds a ready-to-ingest (catalog, store) pair
// seeded with CommandeConfig, with flow types and applications already
// registered.
func NewCommandeFixture(tb testing.TB) (*catalog.Catalog, *store.Store) {
	tb.Helper()
	cfg := CommandeConfig()
	st := OpenStore(tb)
	RegisterFlowTypes(tb, st, cfg)
	return CompileCatalog(tb, cfg), st
}
