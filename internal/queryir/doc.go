// Package queryir defines a small sealed query intermediate
// representation used by the store's read paths to return
// deterministically ordered rows without hand-assembling SQL at every
// call site. internal/querysql is the SQL backend that compiles it.
//
// SEALED INTERFACES:
//
// Query and Predicate use the marker-method pattern: only types defined
// in this package implement them, which lets internal/querysql use an
// exhaustive type switch with no default case needed for correctness.
//
// PORTABLE FRAGMENT:
//
//	Select(from, columns, filter, orderBy)
//	Predicates: Equals, In, GTE, IsNull, And
//
// There is no Join and no bound-variable predicate: every query here
// targets a single table, because the graph-shaped access patterns
// (children, cross-references, log entries of an instance) are all
// expressed as single-table selects keyed by a foreign id, with any
// actual joining done by hand in internal/store where SQL expresses it
// more directly than a generic IR would.
package queryir
