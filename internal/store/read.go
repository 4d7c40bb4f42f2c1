package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mclement/fluxtrace/internal/queryir"
)

var fluxInstanceColumns = []string{"id", "flux_type_id", "reference", "status", "parent_id", "created_at", "updated_at"}

// GetFlowTypeByID resolves a FlowType by primary key.
func (s *Store) GetFlowTypeByID(ctx context.Context, id int64) (*FluxTypeRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, required_stages, optional_stages
		FROM flux_types WHERE id = ?
	`, id)
	return scanFlowTypeRow(row)
}

// GetApplicationByID resolves an Application by primary key.
func (s *Store) GetApplicationByID(ctx context.Context, id int64) (*ApplicationRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, flux_type_id, name FROM applications WHERE id = ?`, id)
	var a ApplicationRow
	if err := row.Scan(&a.ID, &a.FluxTypeID, &a.Name); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetFluxInstanceByID retrieves a FluxInstance by primary key.
func (s *Store) GetFluxInstanceByID(ctx context.Context, id int64) (*FluxInstance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flux_type_id, reference, status, parent_id, created_at, updated_at
		FROM flux_instances WHERE id = ?
	`, id)
	return scanFluxInstanceRow(row)
}

// GetFluxInstanceByReference resolves a FluxInstance by its reference
// string across all flow types. Returns sql.ErrNoRows if none exists;
// the query layer above this renders that as an empty result, not an
// error.
func (s *Store) GetFluxInstanceByReference(ctx context.Context, reference string) (*FluxInstance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flux_type_id, reference, status, parent_id, created_at, updated_at
		FROM flux_instances WHERE reference = ? ORDER BY id ASC LIMIT 1
	`, reference)
	return scanFluxInstanceRow(row)
}

// ListChildren returns the direct children of a FluxInstance, sorted
// by reference.
func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]*FluxInstance, error) {
	rows, err := s.query(ctx, queryir.Select{
		From:    "flux_instances",
		Columns: fluxInstanceColumns,
		Filter:  queryir.Equals{Field: "parent_id", Value: parentID},
		OrderBy: []queryir.OrderTerm{{Column: "reference"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []*FluxInstance
	for rows.Next() {
		fi, err := scanFluxInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	if out == nil {
		out = []*FluxInstance{}
	}
	return out, rows.Err()
}

// CountChildren returns the number of direct children of a FluxInstance.
func (s *Store) CountChildren(ctx context.Context, parentID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flux_instances WHERE parent_id = ?`, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// ListTopLevelInstances returns every FluxInstance of a flow type with no
// parent, optionally filtered to those created at or after minCreatedAt.
// Used by diagnostics.IncompleteFlows.
func (s *Store) ListTopLevelInstances(ctx context.Context, fluxTypeID int64, minCreatedAt *time.Time) ([]*FluxInstance, error) {
	predicates := []queryir.Predicate{
		queryir.Equals{Field: "flux_type_id", Value: fluxTypeID},
		queryir.IsNull{Field: "parent_id"},
	}
	if minCreatedAt != nil {
		predicates = append(predicates, queryir.GTE{Field: "created_at", Value: *minCreatedAt})
	}

	rows, err := s.query(ctx, queryir.Select{
		From:    "flux_instances",
		Columns: fluxInstanceColumns,
		Filter:  queryir.And{Predicates: predicates},
		OrderBy: []queryir.OrderTerm{{Column: "created_at"}, {Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list top-level instances: %w", err)
	}
	defer rows.Close()

	var out []*FluxInstance
	for rows.Next() {
		fi, err := scanFluxInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	if out == nil {
		out = []*FluxInstance{}
	}
	return out, rows.Err()
}

// ListAllInstancesByType returns every FluxInstance of a flow type
// regardless of parentage. Used by diagnostics.Stats.
func (s *Store) ListAllInstancesByType(ctx context.Context, fluxTypeID int64) ([]*FluxInstance, error) {
	rows, err := s.query(ctx, queryir.Select{
		From:    "flux_instances",
		Columns: fluxInstanceColumns,
		Filter:  queryir.Equals{Field: "flux_type_id", Value: fluxTypeID},
		OrderBy: []queryir.OrderTerm{{Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list instances by type: %w", err)
	}
	defer rows.Close()

	var out []*FluxInstance
	for rows.Next() {
		fi, err := scanFluxInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	if out == nil {
		out = []*FluxInstance{}
	}
	return out, rows.Err()
}

// ListLogEntries returns all LogEntries for a FluxInstance, sorted by
// timestamp ascending then by log id.
func (s *Store) ListLogEntries(ctx context.Context, fluxInstanceID int64) ([]*LogEntry, error) {
	rows, err := s.query(ctx, queryir.Select{
		From:    "log_entries",
		Columns: []string{"id", "flux_instance_id", "application_id", "log_type", "timestamp", "seq", "raw_log", "parsed_data", "processed_at"},
		Filter:  queryir.Equals{Field: "flux_instance_id", Value: fluxInstanceID},
		OrderBy: []queryir.OrderTerm{{Column: "timestamp"}, {Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var out []*LogEntry
	for rows.Next() {
		le, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	if out == nil {
		out = []*LogEntry{}
	}
	return out, rows.Err()
}

// DistinctLogTypes returns the set of log_type values observed for a
// FluxInstance - the observed-stages set diagnostics works from.
func (s *Store) DistinctLogTypes(ctx context.Context, fluxInstanceID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT log_type FROM log_entries WHERE flux_instance_id = ?
	`, fluxInstanceID)
	if err != nil {
		return nil, fmt.Errorf("distinct log types: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var lt string
		if err := rows.Scan(&lt); err != nil {
			return nil, fmt.Errorf("scan log type: %w", err)
		}
		out[lt] = true
	}
	return out, rows.Err()
}

// MostRecentLogEntry returns the latest LogEntry (by timestamp, then id)
// for a FluxInstance. Returns sql.ErrNoRows if the instance has no logs.
func (s *Store) MostRecentLogEntry(ctx context.Context, fluxInstanceID int64) (*LogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flux_instance_id, application_id, log_type, timestamp, seq, raw_log, parsed_data, processed_at
		FROM log_entries WHERE flux_instance_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`, fluxInstanceID)
	return scanLogEntryRow(row)
}

func scanLogEntry(rows *sql.Rows) (*LogEntry, error) {
	var le LogEntry
	var parsedJSON string
	if err := rows.Scan(&le.ID, &le.FluxInstanceID, &le.ApplicationID, &le.LogType, &le.Timestamp, &le.Seq, &le.RawLog, &parsedJSON, &le.ProcessedAt); err != nil {
		return nil, fmt.Errorf("scan log entry: %w", err)
	}
	pd, err := unmarshalParsedData(parsedJSON)
	if err != nil {
		return nil, err
	}
	le.ParsedData = pd
	return &le, nil
}

func scanLogEntryRow(row *sql.Row) (*LogEntry, error) {
	var le LogEntry
	var parsedJSON string
	if err := row.Scan(&le.ID, &le.FluxInstanceID, &le.ApplicationID, &le.LogType, &le.Timestamp, &le.Seq, &le.RawLog, &parsedJSON, &le.ProcessedAt); err != nil {
		return nil, err
	}
	pd, err := unmarshalParsedData(parsedJSON)
	if err != nil {
		return nil, err
	}
	le.ParsedData = pd
	return &le, nil
}

// CrossReferenceEdge is a cross-reference resolved to both endpoints'
// reference strings, the shape the linked-flows cross-reference map
// is built from.
type CrossReferenceEdge struct {
	SourceID        int64
	TargetID        int64
	SourceReference string
	TargetReference string
	Field           string
	Value           string
}

// ListOutgoingCrossReferences returns the edges whose source is
// fluxInstanceID, sorted lexicographically by target reference then
// field.
func (s *Store) ListOutgoingCrossReferences(ctx context.Context, fluxInstanceID int64) ([]CrossReferenceEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cr.source_flux_id, cr.target_flux_id, src.reference, tgt.reference, cr.reference_field, cr.reference_value
		FROM cross_references cr
		JOIN flux_instances src ON cr.source_flux_id = src.id
		JOIN flux_instances tgt ON cr.target_flux_id = tgt.id
		WHERE cr.source_flux_id = ?
		ORDER BY tgt.reference COLLATE BINARY ASC, cr.reference_field COLLATE BINARY ASC
	`, fluxInstanceID)
	return scanCrossReferenceEdges(rows, err)
}

// ListIncomingCrossReferences returns the edges whose target is
// fluxInstanceID, sorted the same way as outgoing edges.
func (s *Store) ListIncomingCrossReferences(ctx context.Context, fluxInstanceID int64) ([]CrossReferenceEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cr.source_flux_id, cr.target_flux_id, src.reference, tgt.reference, cr.reference_field, cr.reference_value
		FROM cross_references cr
		JOIN flux_instances src ON cr.source_flux_id = src.id
		JOIN flux_instances tgt ON cr.target_flux_id = tgt.id
		WHERE cr.target_flux_id = ?
		ORDER BY tgt.reference COLLATE BINARY ASC, cr.reference_field COLLATE BINARY ASC
	`, fluxInstanceID)
	return scanCrossReferenceEdges(rows, err)
}

func scanCrossReferenceEdges(rows *sql.Rows, err error) ([]CrossReferenceEdge, error) {
	if err != nil {
		return nil, fmt.Errorf("list cross references: %w", err)
	}
	defer rows.Close()

	var out []CrossReferenceEdge
	for rows.Next() {
		var e CrossReferenceEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.SourceReference, &e.TargetReference, &e.Field, &e.Value); err != nil {
			return nil, fmt.Errorf("scan cross reference: %w", err)
		}
		out = append(out, e)
	}
	if out == nil {
		out = []CrossReferenceEdge{}
	}
	return out, rows.Err()
}

// StageInstanceCount is the number of distinct FluxInstances of a flow
// type that have at least one LogEntry with a given log_type.
type StageInstanceCount struct {
	Stage   string
	Count   int
	FluxIDs []int64 // only populated when the caller asked for details
}

// StageCounts returns, for a flow type, the number of distinct
// FluxInstances observed at each stage. Used by diagnostics.Stats.
func (s *Store) StageCounts(ctx context.Context, fluxTypeID int64, withDetails bool) ([]StageInstanceCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT le.log_type, fi.id
		FROM log_entries le
		JOIN flux_instances fi ON le.flux_instance_id = fi.id
		WHERE fi.flux_type_id = ?
		GROUP BY le.log_type, fi.id
		ORDER BY le.log_type COLLATE BINARY ASC, fi.id ASC
	`, fluxTypeID)
	if err != nil {
		return nil, fmt.Errorf("stage counts: %w", err)
	}
	defer rows.Close()

	byStage := make(map[string]*StageInstanceCount)
	var order []string
	for rows.Next() {
		var stage string
		var fluxID int64
		if err := rows.Scan(&stage, &fluxID); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		sc, ok := byStage[stage]
		if !ok {
			sc = &StageInstanceCount{Stage: stage}
			byStage[stage] = sc
			order = append(order, stage)
		}
		sc.Count++
		if withDetails {
			sc.FluxIDs = append(sc.FluxIDs, fluxID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]StageInstanceCount, 0, len(order))
	for _, stage := range order {
		out = append(out, *byStage[stage])
	}
	return out, nil
}

// CountInstancesWithCrossReference returns the number of distinct
// FluxInstances that are the source of at least one cross-reference.
func (s *Store) CountInstancesWithCrossReference(ctx context.Context, fluxTypeID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT cr.source_flux_id)
		FROM cross_references cr
		JOIN flux_instances fi ON cr.source_flux_id = fi.id
		WHERE fi.flux_type_id = ?
	`, fluxTypeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances with cross reference: %w", err)
	}
	return n, nil
}

// CountInstancesWithChildren returns the number of distinct FluxInstances
// of a flow type that have at least one child.
func (s *Store) CountInstancesWithChildren(ctx context.Context, fluxTypeID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT parent.id)
		FROM flux_instances parent
		JOIN flux_instances child ON child.parent_id = parent.id
		WHERE parent.flux_type_id = ?
	`, fluxTypeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances with children: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of FluxInstances per status value,
// across all flow types.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM flux_instances GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
