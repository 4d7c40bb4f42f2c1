package diagnostics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mclement/fluxtrace/internal/store"
)

// IncompleteFlows reports, per flow type, every top-level instance
// missing at least one required stage. When maxAgeHours is non-nil,
// only top-level instances created within that window are considered.
func IncompleteFlows(ctx context.Context, st *store.Store, maxAgeHours *float64) ([]IncompleteFlowsByType, error) {
	flowTypes, err := st.ListFlowTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flow types: %w", err)
	}

	now := time.Now().UTC()
	var minCreatedAt *time.Time
	if maxAgeHours != nil {
		cutoff := now.Add(-time.Duration(*maxAgeHours * float64(time.Hour)))
		minCreatedAt = &cutoff
	}

	var out []IncompleteFlowsByType
	for _, ft := range flowTypes {
		if len(ft.RequiredStages) == 0 {
			continue
		}

		instances, err := st.ListTopLevelInstances(ctx, ft.ID, minCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("list top-level instances for %q: %w", ft.Name, err)
		}

		var flows []IncompleteFlow
		for _, inst := range instances {
			flow, incomplete, err := evaluateInstance(ctx, st, ft, inst, now)
			if err != nil {
				return nil, err
			}
			if incomplete {
				flows = append(flows, *flow)
			}
		}
		if len(flows) == 0 {
			continue
		}

		sort.Slice(flows, func(i, j int) bool { return flows[i].AgeHours > flows[j].AgeHours })
		out = append(out, IncompleteFlowsByType{FlowType: ft.Name, Flows: flows})
	}

	return out, nil
}

func evaluateInstance(ctx context.Context, st *store.Store, ft *store.FluxTypeRow, inst *store.FluxInstance, now time.Time) (*IncompleteFlow, bool, error) {
	observed, err := st.DistinctLogTypes(ctx, inst.ID)
	if err != nil {
		return nil, false, fmt.Errorf("distinct log types for %q: %w", inst.Reference, err)
	}

	missingRequired := difference(ft.RequiredStages, observed)
	if len(missingRequired) == 0 {
		return nil, false, nil
	}

	allStages := append(append([]string{}, ft.RequiredStages...), ft.OptionalStages...)
	missingAny := difference(allStages, observed)
	present := presentIn(allStages, observed)

	childCount, err := st.CountChildren(ctx, inst.ID)
	if err != nil {
		return nil, false, fmt.Errorf("count children of %q: %w", inst.Reference, err)
	}

	// A FluxInstance can have zero LogEntries - e.g. an auto-created
	// cross-reference target whose own logs haven't
	// been observed yet. That is not a store error; it just means there
	// is no "most recent log" to report.
	lastLog, err := st.MostRecentLogEntry(ctx, inst.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("most recent log of %q: %w", inst.Reference, err)
	}
	if lastLog == nil {
		lastLog = &store.LogEntry{}
	}

	completionRate := 100.0
	if len(ft.RequiredStages) > 0 {
		completionRate = round1(100 * float64(len(ft.RequiredStages)-len(missingRequired)) / float64(len(ft.RequiredStages)))
	}

	return &IncompleteFlow{
		Reference:             inst.Reference,
		Status:                inst.Status,
		CreatedAt:             inst.CreatedAt,
		UpdatedAt:             inst.UpdatedAt,
		AgeHours:              now.Sub(inst.CreatedAt).Hours(),
		MissingStages:         missingAny,
		MissingRequiredStages: missingRequired,
		PresentStages:         present,
		RequiredStages:        ft.RequiredStages,
		OptionalStages:        ft.OptionalStages,
		LastLogTimestamp:      lastLog.Timestamp,
		LastLogType:           lastLog.LogType,
		ChildrenCount:         childCount,
		CompletionRate:        completionRate,
	}, true, nil
}

// difference returns the stages in order (preserving configured order)
// that are absent from observed.
func difference(stages []string, observed map[string]bool) []string {
	var out []string
	for _, s := range stages {
		if !observed[s] {
			out = append(out, s)
		}
	}
	return out
}

func presentIn(stages []string, observed map[string]bool) []string {
	var out []string
	for _, s := range stages {
		if observed[s] {
			out = append(out, s)
		}
	}
	return out
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
