// Package querysql compiles internal/queryir queries into parameterized
// SQL for SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/mclement/fluxtrace/internal/queryir"
)

// Compiler compiles queryir.Query values to parameterized SQL.
//
// MANDATORY: every compiled query carries an ORDER BY clause - Select.OrderBy
// must be non-empty. This is what makes the deterministic ordering of
// the read paths mechanical instead of ad hoc per call site.
// CRITICAL: all predicate values are parameterized, never interpolated.
type Compiler struct{}

// NewCompiler creates a Compiler. It holds no state; SQLite connection
// handling lives in internal/store.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts a Query to (sql, params, error).
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *Compiler) compileSelect(q queryir.Select) (string, []any, error) {
	if len(q.OrderBy) == 0 {
		return "", nil, fmt.Errorf("select on %q has no ORDER BY terms", q.From)
	}

	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ", ")
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		sql, p, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + sql
		params = p
	}

	orderParts := make([]string, 0, len(q.OrderBy))
	for _, term := range q.OrderBy {
		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		orderParts = append(orderParts, fmt.Sprintf("%s COLLATE BINARY %s", term.Column, dir))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		columns, q.From, whereClause, strings.Join(orderParts, ", "))
	return sql, params, nil
}

func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return fmt.Sprintf("%s = ?", pred.Field), []any{pred.Value}, nil
	case *queryir.Equals:
		return fmt.Sprintf("%s = ?", pred.Field), []any{pred.Value}, nil

	case queryir.GTE:
		return fmt.Sprintf("%s >= ?", pred.Field), []any{pred.Value}, nil
	case *queryir.GTE:
		return fmt.Sprintf("%s >= ?", pred.Field), []any{pred.Value}, nil

	case queryir.IsNull:
		return fmt.Sprintf("%s IS NULL", pred.Field), nil, nil
	case *queryir.IsNull:
		return fmt.Sprintf("%s IS NULL", pred.Field), nil, nil

	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)

	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil // IN () never matches
	}
	placeholders := strings.Repeat("?, ", len(in.Values))
	placeholders = strings.TrimSuffix(placeholders, ", ")
	sql := fmt.Sprintf("%s IN (%s)", in.Field, placeholders)
	return sql, in.Values, nil
}

func (c *Compiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}
