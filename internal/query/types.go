// Package query implements the read side of the flow graph:
// sub-flow-aware flow detail views and transitive cross-reference
// closures, read-only against the store.
package query

import (
	"time"

	"github.com/mclement/fluxtrace/internal/store"
)

// FluxView is a FluxInstance's core fields as rendered to callers.
type FluxView struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	FlowType  string    `json:"flux_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogView is one LogEntry as rendered to callers.
type LogView struct {
	Timestamp   time.Time        `json:"timestamp"`
	Application string           `json:"application"`
	LogType     string           `json:"log_type"`
	RawLog      string           `json:"raw_log"`
	ParsedData  store.ParsedData `json:"parsed_data"`
}

// ChildView is a direct child FluxInstance as rendered to callers.
type ChildView struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// CrossReferenceView is an outgoing cross-reference edge as rendered in
// a single flow's detail view.
type CrossReferenceView struct {
	TargetReference string `json:"target_reference"`
	ReferenceField  string `json:"reference_field"`
	ReferenceValue  string `json:"reference_value"`
}

// SubflowInfo surfaces the requested sub-flow's own identity when a
// query's requested reference turned out to be a child.
type SubflowInfo struct {
	IsSubflow          bool      `json:"is_subflow"`
	RequestedReference string    `json:"requested_reference"`
	ParentReference    string    `json:"parent_reference,omitempty"`
	SubflowDetails     *FluxView `json:"subflow_details,omitempty"`
	SubflowLogs        []LogView `json:"subflow_logs,omitempty"`
}

// FlowDetails is the result of GetFlowDetails.
type FlowDetails struct {
	Flux            FluxView             `json:"flux"`
	Logs            []LogView            `json:"logs"`
	CrossReferences []CrossReferenceView `json:"cross_references"`
	Children        []ChildView          `json:"children"`
	SubflowInfo     SubflowInfo          `json:"subflow_info"`
}

// LinkedFlowEntry is one flow reachable within a closure.
type LinkedFlowEntry struct {
	Flux            FluxView             `json:"flux"`
	Logs            []LogView            `json:"logs"`
	CrossReferences []CrossReferenceView `json:"cross_references"`
	Children        []ChildView          `json:"children"`
}

// ClosureSummary aggregates the cross-reference map of a closure.
type ClosureSummary struct {
	TotalConnections   int         `json:"total_connections"`
	BidirectionalPairs [][2]string `json:"bidirectional_pairs"`
}

// CrossReferenceEdge is one directed connection in a closure's
// cross-reference map.
type CrossReferenceEdge struct {
	SourceReference string `json:"source_reference"`
	TargetReference string `json:"target_reference"`
	Field           string `json:"field"`
	Value           string `json:"value"`
}

// LinkedFlows is the result of GetAllLinkedFlows.
type LinkedFlows struct {
	Flows             []LinkedFlowEntry    `json:"flows"`
	CrossReferenceMap []CrossReferenceEdge `json:"cross_reference_map"`
	Summary           ClosureSummary       `json:"summary"`
	SubflowInfo       SubflowInfo          `json:"subflow_info"`
}
