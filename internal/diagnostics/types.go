// Package diagnostics implements the core's introspection reports:
// incomplete-flow detection and catalog-wide statistics.
package diagnostics

import "time"

// IncompleteFlow is one top-level FluxInstance missing required stages.
type IncompleteFlow struct {
	Reference             string    `json:"reference"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	AgeHours              float64   `json:"age_hours"`
	MissingStages         []string  `json:"missing_stages"`
	MissingRequiredStages []string  `json:"missing_required_stages"`
	PresentStages         []string  `json:"present_stages"`
	RequiredStages        []string  `json:"required_stages"`
	OptionalStages        []string  `json:"optional_stages"`
	LastLogTimestamp      time.Time `json:"last_log_timestamp"`
	LastLogType           string    `json:"last_log_type"`
	ChildrenCount         int       `json:"children_count"`
	CompletionRate        float64   `json:"completion_rate"`
}

// IncompleteFlowsByType groups IncompleteFlows under their flow type
// name, sorted by age descending. Flow types with none are
// omitted entirely.
type IncompleteFlowsByType struct {
	FlowType string           `json:"flux_type"`
	Flows    []IncompleteFlow `json:"flows"`
}

// StageBucket is one observed stage's frequency within a flow type,
// partitioned as required/optional/other.
type StageBucket struct {
	Stage      string   `json:"stage"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Kind       string   `json:"kind"` // "required", "optional", or "other"
	References []string `json:"references,omitempty"`
}

// FlowTypeStats is the per-flow-type section of Stats.
type FlowTypeStats struct {
	FlowType              string        `json:"flux_type"`
	InstanceCount         int           `json:"instance_count"`
	Stages                []StageBucket `json:"stages"`
	FlowsWithCrossRefs    int           `json:"flows_with_cross_references"`
	FlowsWithChildren     int           `json:"flows_with_children"`
}

// Stats is the result of the stats diagnostic.
type Stats struct {
	CountsByType   map[string]int       `json:"counts_by_type"`
	CountsByStatus map[string]int       `json:"counts_by_status"`
	ByType         []FlowTypeStats      `json:"by_type"`
	StageFrequency map[string]int       `json:"stage_frequency"`
}
