package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mclement/fluxtrace/internal/queryir"
)

// EnsureFlowType idempotently creates (or fetches) the row for a
// configured FlowType. Called once per flow type at catalog load, never
// from the per-line hot path.
func (s *Store) EnsureFlowType(ctx context.Context, name, description string, required, optional []string) (*FluxTypeRow, error) {
	reqJSON, err := marshalStages(required)
	if err != nil {
		return nil, err
	}
	optJSON, err := marshalStages(optional)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flux_types (name, description, required_stages, optional_stages)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			required_stages = excluded.required_stages,
			optional_stages = excluded.optional_stages
	`, name, description, reqJSON, optJSON)
	if err != nil {
		return nil, fmt.Errorf("ensure flux type %q: %w", name, err)
	}

	return s.GetFlowTypeByName(ctx, name)
}

// GetFlowTypeByName resolves a FlowType by name. Returns sql.ErrNoRows
// if absent; the ingestor treats that as fatal for the line.
func (s *Store) GetFlowTypeByName(ctx context.Context, name string) (*FluxTypeRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, required_stages, optional_stages
		FROM flux_types WHERE name = ?
	`, name)
	return scanFlowTypeRow(row)
}

// ListFlowTypes returns every configured flow type, ordered by name.
func (s *Store) ListFlowTypes(ctx context.Context) ([]*FluxTypeRow, error) {
	rows, err := s.query(ctx, queryir.Select{
		From:    "flux_types",
		Columns: []string{"id", "name", "description", "required_stages", "optional_stages"},
		OrderBy: []queryir.OrderTerm{{Column: "name"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list flux types: %w", err)
	}
	defer rows.Close()

	var out []*FluxTypeRow
	for rows.Next() {
		ft, err := scanFlowType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

func scanFlowType(rows *sql.Rows) (*FluxTypeRow, error) {
	var ft FluxTypeRow
	var reqJSON, optJSON string
	if err := rows.Scan(&ft.ID, &ft.Name, &ft.Description, &reqJSON, &optJSON); err != nil {
		return nil, fmt.Errorf("scan flux type: %w", err)
	}
	var err error
	if ft.RequiredStages, err = unmarshalStages(reqJSON); err != nil {
		return nil, err
	}
	if ft.OptionalStages, err = unmarshalStages(optJSON); err != nil {
		return nil, err
	}
	return &ft, nil
}

func scanFlowTypeRow(row *sql.Row) (*FluxTypeRow, error) {
	var ft FluxTypeRow
	var reqJSON, optJSON string
	if err := row.Scan(&ft.ID, &ft.Name, &ft.Description, &reqJSON, &optJSON); err != nil {
		return nil, err
	}
	var err error
	if ft.RequiredStages, err = unmarshalStages(reqJSON); err != nil {
		return nil, err
	}
	if ft.OptionalStages, err = unmarshalStages(optJSON); err != nil {
		return nil, err
	}
	return &ft, nil
}

// EnsureApplication idempotently creates (or fetches) the row for one
// (FlowType, Application) pair.
func (s *Store) EnsureApplication(ctx context.Context, fluxTypeID int64, name string) (*ApplicationRow, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (flux_type_id, name)
		VALUES (?, ?)
		ON CONFLICT(flux_type_id, name) DO NOTHING
	`, fluxTypeID, name)
	if err != nil {
		return nil, fmt.Errorf("ensure application %q: %w", name, err)
	}
	return s.GetApplicationByName(ctx, fluxTypeID, name)
}

// GetApplicationByName resolves an Application by (flux type, name).
// Returns sql.ErrNoRows if absent.
func (s *Store) GetApplicationByName(ctx context.Context, fluxTypeID int64, name string) (*ApplicationRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flux_type_id, name FROM applications
		WHERE flux_type_id = ? AND name = ?
	`, fluxTypeID, name)
	var a ApplicationRow
	if err := row.Scan(&a.ID, &a.FluxTypeID, &a.Name); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListApplications returns every application configured for a flow type,
// ordered by name.
func (s *Store) ListApplications(ctx context.Context, fluxTypeID int64) ([]*ApplicationRow, error) {
	rows, err := s.query(ctx, queryir.Select{
		From:    "applications",
		Columns: []string{"id", "flux_type_id", "name"},
		Filter:  queryir.Equals{Field: "flux_type_id", Value: fluxTypeID},
		OrderBy: []queryir.OrderTerm{{Column: "name"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*ApplicationRow
	for rows.Next() {
		var a ApplicationRow
		if err := rows.Scan(&a.ID, &a.FluxTypeID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// GetFluxInstance looks up a FluxInstance by (flux_type_id, reference).
// Returns sql.ErrNoRows if absent.
func (tx *Tx) GetFluxInstance(ctx context.Context, fluxTypeID int64, reference string) (*FluxInstance, error) {
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, flux_type_id, reference, status, parent_id, created_at, updated_at
		FROM flux_instances WHERE flux_type_id = ? AND reference = ?
	`, fluxTypeID, reference)
	return scanFluxInstanceRow(row)
}

// FindInstanceByReference looks up a FluxInstance by reference across
// all flow types; cross-reference targets are resolved without regard
// to flow type. If more than one instance shares the
// reference across flow types, the first by id wins - cross-reference
// resolution does not disambiguate by flow type.
func (tx *Tx) FindInstanceByReference(ctx context.Context, reference string) (*FluxInstance, error) {
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, flux_type_id, reference, status, parent_id, created_at, updated_at
		FROM flux_instances WHERE reference = ? ORDER BY id ASC LIMIT 1
	`, reference)
	return scanFluxInstanceRow(row)
}

// CreateFluxInstance creates a new FluxInstance. parentID is nil for
// top-level instances. Returns the created row.
func (tx *Tx) CreateFluxInstance(ctx context.Context, fluxTypeID int64, reference string, parentID *int64, now time.Time) (*FluxInstance, error) {
	result, err := tx.tx.ExecContext(ctx, `
		INSERT INTO flux_instances (flux_type_id, reference, status, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fluxTypeID, reference, StatusActive, parentID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create flux instance %q: %w", reference, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create flux instance %q: last insert id: %w", reference, err)
	}
	return &FluxInstance{
		ID: id, FluxTypeID: fluxTypeID, Reference: reference, Status: StatusActive,
		ParentID: parentID, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetFluxInstanceByIDTx retrieves a FluxInstance by primary key within
// the transaction, seeing the transaction's own uncommitted writes.
func (tx *Tx) GetFluxInstanceByIDTx(ctx context.Context, id int64) (*FluxInstance, error) {
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, flux_type_id, reference, status, parent_id, created_at, updated_at
		FROM flux_instances WHERE id = ?
	`, id)
	return scanFluxInstanceRow(row)
}

// TouchFluxInstance updates a FluxInstance's updated_at timestamp.
func (tx *Tx) TouchFluxInstance(ctx context.Context, id int64, now time.Time) error {
	_, err := tx.tx.ExecContext(ctx, `UPDATE flux_instances SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch flux instance %d: %w", id, err)
	}
	return nil
}

// BindParentIfUnset sets parent_id on childID to parentID, but only if
// the child currently has no parent. Never overwrites an existing
// parent.
func (tx *Tx) BindParentIfUnset(ctx context.Context, childID, parentID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE flux_instances SET parent_id = ? WHERE id = ? AND parent_id IS NULL
	`, parentID, childID)
	if err != nil {
		return fmt.Errorf("bind parent of %d: %w", childID, err)
	}
	return nil
}

// AppendLogEntry records one ingested line against a FluxInstance and
// Application. seq should come from the Store's logical clock.
func (tx *Tx) AppendLogEntry(ctx context.Context, entry LogEntry) (int64, error) {
	parsedJSON, err := marshalParsedData(entry.ParsedData)
	if err != nil {
		return 0, err
	}

	result, err := tx.tx.ExecContext(ctx, `
		INSERT INTO log_entries
		(flux_instance_id, application_id, log_type, timestamp, seq, raw_log, parsed_data, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.FluxInstanceID, entry.ApplicationID, entry.LogType,
		entry.Timestamp, entry.Seq, entry.RawLog, parsedJSON, entry.ProcessedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append log entry: %w", err)
	}
	return result.LastInsertId()
}

// InsertCrossReferenceIfAbsent inserts a CrossReference edge unless an
// identical (source, target, field, value) tuple already exists.
func (tx *Tx) InsertCrossReferenceIfAbsent(ctx context.Context, source, target int64, field, value string, now time.Time) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO cross_references (source_flux_id, target_flux_id, reference_field, reference_value, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_flux_id, target_flux_id, reference_field, reference_value) DO NOTHING
	`, source, target, field, value, now)
	if err != nil {
		return fmt.Errorf("insert cross reference: %w", err)
	}
	return nil
}

// NextSeq returns the next logical sequence number from the store's
// monotonic clock; callers stamp it onto a LogEntry before AppendLogEntry.
func (s *Store) NextSeq() int64 {
	return s.nextSeq()
}

func scanFluxInstanceRow(row *sql.Row) (*FluxInstance, error) {
	var fi FluxInstance
	var parentID sql.NullInt64
	if err := row.Scan(&fi.ID, &fi.FluxTypeID, &fi.Reference, &fi.Status, &parentID, &fi.CreatedAt, &fi.UpdatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.Int64
		fi.ParentID = &v
	}
	return &fi, nil
}

func scanFluxInstance(rows *sql.Rows) (*FluxInstance, error) {
	var fi FluxInstance
	var parentID sql.NullInt64
	if err := rows.Scan(&fi.ID, &fi.FluxTypeID, &fi.Reference, &fi.Status, &parentID, &fi.CreatedAt, &fi.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan flux instance: %w", err)
	}
	if parentID.Valid {
		v := parentID.Int64
		fi.ParentID = &v
	}
	return &fi, nil
}
