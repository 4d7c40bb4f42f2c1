package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mclement/fluxtrace/internal/store"
)

// GetFlowDetails resolves a flow by reference and builds its detail
// view. found is false when no FluxInstance has that reference - a
// not-found result, not an error.
func GetFlowDetails(ctx context.Context, st *store.Store, reference string) (*FlowDetails, bool, error) {
	instance, err := st.GetFluxInstanceByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve flux by reference: %w", err)
	}

	primary, subInfo, err := resolvePrimarySubject(ctx, st, instance)
	if err != nil {
		return nil, false, err
	}

	view, err := buildFlowView(ctx, st, primary)
	if err != nil {
		return nil, false, err
	}

	return &FlowDetails{
		Flux:            view.Flux,
		Logs:            view.Logs,
		CrossReferences: view.CrossReferences,
		Children:        view.Children,
		SubflowInfo:     subInfo,
	}, true, nil
}

// resolvePrimarySubject implements sub-flow promotion: a
// FluxInstance with a non-null parent_id is a sub-flow query, and the
// parent becomes the primary subject. subInfo.SubflowDetails/SubflowLogs
// surface the originally-requested child's own identity.
func resolvePrimarySubject(ctx context.Context, st *store.Store, instance *store.FluxInstance) (*store.FluxInstance, SubflowInfo, error) {
	if instance.ParentID == nil {
		return instance, SubflowInfo{IsSubflow: false}, nil
	}

	parent, err := st.GetFluxInstanceByID(ctx, *instance.ParentID)
	if err != nil {
		return nil, SubflowInfo{}, fmt.Errorf("resolve sub-flow parent: %w", err)
	}

	childLogs, err := logViews(ctx, st, instance.ID)
	if err != nil {
		return nil, SubflowInfo{}, err
	}
	childView, err := fluxView(ctx, st, instance)
	if err != nil {
		return nil, SubflowInfo{}, err
	}

	return parent, SubflowInfo{
		IsSubflow:          true,
		RequestedReference: instance.Reference,
		ParentReference:    parent.Reference,
		SubflowDetails:     &childView,
		SubflowLogs:        childLogs,
	}, nil
}

type flowView struct {
	Flux            FluxView
	Logs            []LogView
	CrossReferences []CrossReferenceView
	Children        []ChildView
}

func buildFlowView(ctx context.Context, st *store.Store, instance *store.FluxInstance) (*flowView, error) {
	fv, err := fluxView(ctx, st, instance)
	if err != nil {
		return nil, err
	}

	logs, err := logViews(ctx, st, instance.ID)
	if err != nil {
		return nil, err
	}

	edges, err := st.ListOutgoingCrossReferences(ctx, instance.ID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing cross references: %w", err)
	}
	crossRefs := make([]CrossReferenceView, 0, len(edges))
	for _, e := range edges {
		crossRefs = append(crossRefs, CrossReferenceView{
			TargetReference: e.TargetReference,
			ReferenceField:  e.Field,
			ReferenceValue:  e.Value,
		})
	}

	children, err := st.ListChildren(ctx, instance.ID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	childViews := make([]ChildView, 0, len(children))
	for _, c := range children {
		childViews = append(childViews, ChildView{Reference: c.Reference, Status: c.Status})
	}

	return &flowView{Flux: fv, Logs: logs, CrossReferences: crossRefs, Children: childViews}, nil
}

func fluxView(ctx context.Context, st *store.Store, instance *store.FluxInstance) (FluxView, error) {
	ft, err := st.GetFlowTypeByID(ctx, instance.FluxTypeID)
	if err != nil {
		return FluxView{}, fmt.Errorf("resolve flow type %d: %w", instance.FluxTypeID, err)
	}
	return FluxView{
		ID:        instance.ID,
		Reference: instance.Reference,
		Status:    instance.Status,
		FlowType:  ft.Name,
		CreatedAt: instance.CreatedAt,
		UpdatedAt: instance.UpdatedAt,
	}, nil
}

func logViews(ctx context.Context, st *store.Store, fluxInstanceID int64) ([]LogView, error) {
	entries, err := st.ListLogEntries(ctx, fluxInstanceID)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}

	out := make([]LogView, 0, len(entries))
	for _, e := range entries {
		app, err := st.GetApplicationByID(ctx, e.ApplicationID)
		if err != nil {
			return nil, fmt.Errorf("resolve application %d: %w", e.ApplicationID, err)
		}
		out = append(out, LogView{
			Timestamp:   e.Timestamp,
			Application: app.Name,
			LogType:     e.LogType,
			RawLog:      e.RawLog,
			ParsedData:  e.ParsedData,
		})
	}
	return out, nil
}

// GetAllLinkedFlows computes the transitive closure over outgoing and
// incoming cross-reference edges starting from the flow identified as in
// GetFlowDetails. found is false when the reference resolves
// to nothing.
func GetAllLinkedFlows(ctx context.Context, st *store.Store, reference string) (*LinkedFlows, bool, error) {
	instance, err := st.GetFluxInstanceByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve flux by reference: %w", err)
	}

	primary, subInfo, err := resolvePrimarySubject(ctx, st, instance)
	if err != nil {
		return nil, false, err
	}

	visited := map[int64]bool{primary.ID: true}
	queue := []*store.FluxInstance{primary}

	var flows []LinkedFlowEntry
	edgeSeen := make(map[string]bool)
	var crossRefMap []CrossReferenceEdge

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		view, err := buildFlowView(ctx, st, current)
		if err != nil {
			return nil, false, err
		}
		flows = append(flows, LinkedFlowEntry{
			Flux:            view.Flux,
			Logs:            view.Logs,
			CrossReferences: view.CrossReferences,
			Children:        view.Children,
		})

		outgoing, err := st.ListOutgoingCrossReferences(ctx, current.ID)
		if err != nil {
			return nil, false, fmt.Errorf("list outgoing cross references: %w", err)
		}
		incoming, err := st.ListIncomingCrossReferences(ctx, current.ID)
		if err != nil {
			return nil, false, fmt.Errorf("list incoming cross references: %w", err)
		}

		for _, e := range append(outgoing, incoming...) {
			key := edgeKey(e)
			if !edgeSeen[key] {
				edgeSeen[key] = true
				crossRefMap = append(crossRefMap, CrossReferenceEdge{
					SourceReference: e.SourceReference,
					TargetReference: e.TargetReference,
					Field:           e.Field,
					Value:           e.Value,
				})
			}

			neighborID := e.TargetID
			if neighborID == current.ID {
				neighborID = e.SourceID
			}
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			neighbor, err := st.GetFluxInstanceByID(ctx, neighborID)
			if err != nil {
				return nil, false, fmt.Errorf("resolve linked flux %d: %w", neighborID, err)
			}
			queue = append(queue, neighbor)
		}
	}

	sortCrossReferenceMap(crossRefMap)
	sortLinkedFlows(flows)

	return &LinkedFlows{
		Flows:             flows,
		CrossReferenceMap: crossRefMap,
		Summary:           summarize(crossRefMap),
		SubflowInfo:       subInfo,
	}, true, nil
}

func edgeKey(e store.CrossReferenceEdge) string {
	return fmt.Sprintf("%d\x00%d\x00%s\x00%s", e.SourceID, e.TargetID, e.Field, e.Value)
}

// summarize computes the connection count and the bidirectional pairs:
// pairs {A,B} such that both A→B and B→A exist, with any field.
func summarize(edges []CrossReferenceEdge) ClosureSummary {
	forward := make(map[[2]string]bool, len(edges))
	for _, e := range edges {
		forward[[2]string{e.SourceReference, e.TargetReference}] = true
	}

	seen := make(map[[2]string]bool)
	var pairs [][2]string
	for _, e := range edges {
		a, b := e.SourceReference, e.TargetReference
		if !forward[[2]string{b, a}] {
			continue
		}
		key := [2]string{a, b}
		if a > b {
			key = [2]string{b, a}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		pairs = append(pairs, key)
	}

	sortPairs(pairs)
	return ClosureSummary{TotalConnections: len(edges), BidirectionalPairs: pairs}
}
