package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/mclement/fluxtrace/internal/catalog"
	"github.com/mclement/fluxtrace/internal/config"
	"github.com/mclement/fluxtrace/internal/ingestor"
	"github.com/mclement/fluxtrace/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// app bundles the objects every data-touching subcommand needs: the
// compiled catalog, the open store, and an ingestor wired to both.
type app struct {
	cfg   *config.Config
	cat   *catalog.Catalog
	store *store.Store
	ing   *ingestor.Ingestor
}

// openApp loads the configuration, compiles the catalog, and opens the
// store named in it. Callers must call Close when done.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	cat, err := catalog.Compile(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid catalog configuration", err)
	}

	st, err := store.Open(dbPath(cfg.Database.URL))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	for name, ft := range cfg.FlowTypes {
		ftRow, err := st.EnsureFlowType(context.Background(), name, ft.Description, ft.RequiredSteps, ft.OptionalSteps)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to register flow type %q", name), err)
		}
		for appName := range ft.Applications {
			if _, err := st.EnsureApplication(context.Background(), ftRow.ID, appName); err != nil {
				st.Close()
				return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to register application %q", appName), err)
			}
		}
	}

	return &app{cfg: cfg, cat: cat, store: st, ing: ingestor.New(st, cat)}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// dbPath strips the sqlite:// scheme some config documents carry,
// leaving a bare filesystem path for store.Open.
func dbPath(url string) string {
	return strings.TrimPrefix(url, "sqlite:///")
}
