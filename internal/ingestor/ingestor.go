// Package ingestor applies ParsedLogs to the store, one per atomic
// transaction: resolve the flow, append the log entry, then apply
// cross-reference and sub-flow side effects.
package ingestor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mclement/fluxtrace/internal/catalog"
	"github.com/mclement/fluxtrace/internal/parser"
	"github.com/mclement/fluxtrace/internal/store"
)

// ErrNoMatch means no catalog pattern matched the line.
var ErrNoMatch = errors.New("ingestor: no pattern matched line")

// RejectionError means the line parsed but could not be ingested
// (unknown flow type/application, or no usable main reference).
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "ingestion rejected: " + e.Reason
}

// Ingestor consumes parsed records and mutates the flow graph.
type Ingestor struct {
	store            *store.Store
	catalog          *catalog.Catalog
	progressInterval int
	tokenGen         BatchTokenGenerator
	now              func() time.Time
}

// New creates an Ingestor over a store and a compiled catalog. Batch
// tokens default to UUIDv7Generator and wall-clock time is used for
// CreatedAt/UpdatedAt/ProcessedAt; tests that need reproducible output
// should use WithTokenGenerator and WithClock.
func New(st *store.Store, cat *catalog.Catalog) *Ingestor {
	return &Ingestor{
		store: st, catalog: cat, progressInterval: 1000,
		tokenGen: UUIDv7Generator{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithTokenGenerator overrides the batch-token generator, typically
// with a FixedGenerator in tests that need reproducible output.
func (ing *Ingestor) WithTokenGenerator(gen BatchTokenGenerator) *Ingestor {
	ing.tokenGen = gen
	return ing
}

// WithClock overrides the source of "now" used to stamp FluxInstance
// and LogEntry rows, so golden-file tests see reproducible timestamps
// instead of wall-clock time.
func (ing *Ingestor) WithClock(now func() time.Time) *Ingestor {
	ing.now = now
	return ing
}

// WithProgressInterval overrides how often batch ingestion logs a
// progress line. Zero disables progress logging.
func (ing *Ingestor) WithProgressInterval(n int) *Ingestor {
	ing.progressInterval = n
	return ing
}

// ProcessLine runs the full line pipeline: parse, then (on match)
// resolve the flow type, application and main reference, and apply the
// remaining ingestion steps inside one store transaction.
func (ing *Ingestor) ProcessLine(ctx context.Context, rawLine, forceFlowType, forceApplication string) error {
	parsed, ok := parser.Parse(ing.catalog, rawLine, forceFlowType, forceApplication)
	if !ok {
		return ErrNoMatch
	}
	return ing.ingest(ctx, parsed)
}

func (ing *Ingestor) ingest(ctx context.Context, parsed *parser.ParsedLog) error {
	ftRow, err := ing.store.GetFlowTypeByName(ctx, parsed.FlowType)
	if errors.Is(err, sql.ErrNoRows) {
		return &RejectionError{Reason: fmt.Sprintf("unknown flow type %q", parsed.FlowType)}
	} else if err != nil {
		return fmt.Errorf("resolve flow type: %w", err)
	}

	appRow, err := ing.store.GetApplicationByName(ctx, ftRow.ID, parsed.Application)
	if errors.Is(err, sql.ErrNoRows) {
		return &RejectionError{Reason: fmt.Sprintf("unknown application %q for flow type %q", parsed.Application, parsed.FlowType)}
	} else if err != nil {
		return fmt.Errorf("resolve application: %w", err)
	}

	mainRef := firstNonEmpty(parsed.IdentifierOrder, parsed.IdentifierFields)
	if mainRef == "" {
		return &RejectionError{Reason: "no non-empty identifier field"}
	}

	now := ing.now()

	return ing.store.WithTx(ctx, func(tx *store.Tx) error {
		instance, err := tx.GetFluxInstance(ctx, ftRow.ID, mainRef)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			instance, err = tx.CreateFluxInstance(ctx, ftRow.ID, mainRef, nil, now)
			if err != nil {
				return fmt.Errorf("create flux instance: %w", err)
			}
		case err != nil:
			return fmt.Errorf("resolve flux instance: %w", err)
		}

		entry := store.LogEntry{
			FluxInstanceID: instance.ID,
			ApplicationID:  appRow.ID,
			LogType:        parsed.LogType,
			Timestamp:      parsed.Timestamp,
			Seq:            ing.store.NextSeq(),
			RawLog:         parsed.RawLog,
			ParsedData: store.ParsedData{
				IdentifierFields: parsed.IdentifierFields,
				PayloadFields:    parsed.PayloadFields,
				ReferenceLinks:   parsed.ReferenceLinks,
			},
			ProcessedAt: now,
		}
		if _, err := tx.AppendLogEntry(ctx, entry); err != nil {
			return fmt.Errorf("append log entry: %w", err)
		}
		if err := tx.TouchFluxInstance(ctx, instance.ID, now); err != nil {
			return fmt.Errorf("touch flux instance: %w", err)
		}

		if err := applyCrossReferences(ctx, tx, ftRow.ID, instance, parsed, now); err != nil {
			return err
		}

		return applySubFlow(ctx, tx, ftRow.ID, instance, parsed, now)
	})
}

// applyCrossReferences resolves or auto-creates the target of every
// non-empty reference link and records the directed edge.
func applyCrossReferences(ctx context.Context, tx *store.Tx, flowTypeID int64, instance *store.FluxInstance, parsed *parser.ParsedLog, now time.Time) error {
	for _, field := range parsed.ReferenceOrder {
		value := parsed.ReferenceLinks[field]
		if value == "" {
			continue
		}

		target, err := tx.FindInstanceByReference(ctx, value)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			target, err = tx.CreateFluxInstance(ctx, flowTypeID, value, nil, now)
			if err != nil {
				return fmt.Errorf("auto-create cross-reference target: %w", err)
			}
			slog.Debug("auto-created cross-reference target", "reference", value, "flow_type_id", flowTypeID)
		case err != nil:
			return fmt.Errorf("resolve cross-reference target: %w", err)
		}

		if target.ID == instance.ID {
			continue // a self-referencing value creates no edge
		}

		if err := tx.InsertCrossReferenceIfAbsent(ctx, instance.ID, target.ID, field, value, now); err != nil {
			return fmt.Errorf("insert cross reference: %w", err)
		}
	}
	return nil
}

// applySubFlow handles the CREATION_ENFANTS and TRAITEMENT_ENFANT
// stage conventions.
func applySubFlow(ctx context.Context, tx *store.Tx, flowTypeID int64, instance *store.FluxInstance, parsed *parser.ParsedLog, now time.Time) error {
	switch parsed.LogType {
	case store.StageCreationEnfants:
		for _, childRef := range splitIDs(parsed.PayloadFields["enfants_ids"]) {
			_, err := tx.GetFluxInstance(ctx, flowTypeID, childRef)
			if err == nil {
				continue // already exists: add-only, skip on collision
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("check child collision %q: %w", childRef, err)
			}
			parentID := instance.ID
			if _, err := tx.CreateFluxInstance(ctx, flowTypeID, childRef, &parentID, now); err != nil {
				return fmt.Errorf("create child %q: %w", childRef, err)
			}
		}

	case store.StageTraitementEnfant:
		parentRef := parsed.PayloadFields["parent_ref"]
		if parentRef == "" {
			return nil
		}
		parent, err := tx.FindInstanceByReference(ctx, parentRef)
		if errors.Is(err, sql.ErrNoRows) {
			return nil // parent not yet observed; binds on a later replay
		}
		if err != nil {
			return fmt.Errorf("resolve parent %q: %w", parentRef, err)
		}
		cyclic, err := wouldCycle(ctx, tx, instance.ID, parent)
		if err != nil {
			return err
		}
		if cyclic {
			slog.Debug("skipping parent binding that would create a cycle",
				"child", instance.Reference, "parent", parent.Reference)
			return nil
		}
		if err := tx.BindParentIfUnset(ctx, instance.ID, parent.ID); err != nil {
			return fmt.Errorf("bind parent: %w", err)
		}
	}
	return nil
}

// wouldCycle reports whether binding childID under parent would make
// childID its own ancestor: either parent is the child itself, or the
// child already sits somewhere on parent's ancestor chain.
func wouldCycle(ctx context.Context, tx *store.Tx, childID int64, parent *store.FluxInstance) (bool, error) {
	for p := parent; ; {
		if p.ID == childID {
			return true, nil
		}
		if p.ParentID == nil {
			return false, nil
		}
		next, err := tx.GetFluxInstanceByIDTx(ctx, *p.ParentID)
		if err != nil {
			return false, fmt.Errorf("walk ancestor chain of %q: %w", parent.Reference, err)
		}
		p = next
	}
}

// firstNonEmpty returns the first non-empty value among fields, walking
// order (the pattern's declared identifier_fields order).
func firstNonEmpty(order []string, fields map[string]string) string {
	for _, field := range order {
		if v := fields[field]; v != "" {
			return v
		}
	}
	return ""
}

// splitIDs splits a comma-separated enfants_ids payload, trimming
// whitespace and dropping empty tokens.
func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
