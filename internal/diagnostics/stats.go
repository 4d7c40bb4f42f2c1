package diagnostics

import (
	"context"
	"fmt"
	"sort"

	"github.com/mclement/fluxtrace/internal/store"
)

// ComputeStats aggregates instance counts, status totals, and stage
// coverage per flow type, plus a global stage-frequency map.
func ComputeStats(ctx context.Context, st *store.Store, includeDetails bool) (*Stats, error) {
	flowTypes, err := st.ListFlowTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flow types: %w", err)
	}

	byStatus, err := st.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	countsByType := make(map[string]int, len(flowTypes))
	stageFrequency := make(map[string]int)
	byType := make([]FlowTypeStats, 0, len(flowTypes))

	for _, ft := range flowTypes {
		instances, err := st.ListAllInstancesByType(ctx, ft.ID)
		if err != nil {
			return nil, fmt.Errorf("list instances for %q: %w", ft.Name, err)
		}
		instanceCount := len(instances)
		countsByType[ft.Name] = instanceCount

		stageCounts, err := st.StageCounts(ctx, ft.ID, includeDetails)
		if err != nil {
			return nil, fmt.Errorf("stage counts for %q: %w", ft.Name, err)
		}

		required := toSet(ft.RequiredStages)
		optional := toSet(ft.OptionalStages)

		byID := make(map[int64]*store.FluxInstance, instanceCount)
		for _, inst := range instances {
			byID[inst.ID] = inst
		}

		buckets := make([]StageBucket, 0, len(stageCounts))
		for _, sc := range stageCounts {
			stageFrequency[sc.Stage] += sc.Count

			kind := "other"
			switch {
			case required[sc.Stage]:
				kind = "required"
			case optional[sc.Stage]:
				kind = "optional"
			}

			pct := 0.0
			if instanceCount > 0 {
				pct = round1(100 * float64(sc.Count) / float64(instanceCount))
			}

			bucket := StageBucket{Stage: sc.Stage, Count: sc.Count, Percentage: pct, Kind: kind}
			if includeDetails {
				refs := make([]string, 0, len(sc.FluxIDs))
				for _, id := range sc.FluxIDs {
					if inst, ok := byID[id]; ok {
						refs = append(refs, inst.Reference)
					}
				}
				sort.Strings(refs)
				bucket.References = refs
			}
			buckets = append(buckets, bucket)
		}

		withCrossRefs, err := st.CountInstancesWithCrossReference(ctx, ft.ID)
		if err != nil {
			return nil, fmt.Errorf("count cross-referenced instances for %q: %w", ft.Name, err)
		}
		withChildren, err := st.CountInstancesWithChildren(ctx, ft.ID)
		if err != nil {
			return nil, fmt.Errorf("count instances with children for %q: %w", ft.Name, err)
		}

		byType = append(byType, FlowTypeStats{
			FlowType:           ft.Name,
			InstanceCount:      instanceCount,
			Stages:             buckets,
			FlowsWithCrossRefs: withCrossRefs,
			FlowsWithChildren:  withChildren,
		})
	}

	return &Stats{
		CountsByType:   countsByType,
		CountsByStatus: byStatus,
		ByType:         byType,
		StageFrequency: stageFrequency,
	}, nil
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
