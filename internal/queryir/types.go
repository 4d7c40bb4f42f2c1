package queryir

// Query is a query against a single table.
type Query interface {
	queryNode()
}

// Predicate is a filter condition usable in Select.Filter.
type Predicate interface {
	predicateNode()
}

// Select reads rows from one table, optionally filtered, always
// ordered. OrderBy is mandatory: every Select compiles to SQL with an
// ORDER BY clause, so two runs against the same data return rows in the
// same order.
type Select struct {
	From    string
	Filter  Predicate
	Columns []string
	OrderBy []OrderTerm
}

func (Select) queryNode() {}

// OrderTerm is one column of a Select's ORDER BY clause.
type OrderTerm struct {
	Column string
	Desc   bool
}

// Equals is "field = value".
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In is "field IN (values...)".
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// GTE is "field >= value", used for the age-threshold filter in
// diagnostics.IncompleteFlows.
type GTE struct {
	Field string
	Value any
}

func (GTE) predicateNode() {}

// IsNull is "field IS NULL", used for the top-level filter
// (flux_instances.parent_id IS NULL) that incomplete-flow reporting
// needs. Unlike
// Equals, a bound nil value would never match NULL under SQL
// three-valued logic, so this gets its own predicate rather than
// Equals{Field, nil}.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// And conjoins predicates; an empty And is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
