package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mclement/fluxtrace/internal/queryir"
	"github.com/mclement/fluxtrace/internal/querysql"
)

// compiler turns the deterministically-ordered, single-table reads below
// into parameterized SQL. It holds no state - see internal/querysql.
var compiler = querysql.NewCompiler()

// query compiles a queryir.Select and runs it, for the read paths whose
// access pattern is a plain filtered-and-ordered scan of one table.
// Reads that join tables or need DISTINCT
// stay hand-written SQL in read.go - the IR's portable fragment deliberately
// doesn't cover those (see internal/queryir's doc comment).
func (s *Store) query(ctx context.Context, sel queryir.Select) (*sql.Rows, error) {
	sqlText, params, err := compiler.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile query on %q: %w", sel.From, err)
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", sel.From, err)
	}
	return rows, nil
}
