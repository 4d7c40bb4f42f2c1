package store

import "time"

// StatusActive is the status assigned to every FluxInstance at
// creation; nothing in the core transitions or deletes instances.
const StatusActive = "ACTIF"

// Stage names that trigger sub-flow graph changes.
const (
	StageCreationEnfants  = "CREATION_ENFANTS"
	StageTraitementEnfant = "TRAITEMENT_ENFANT"
)

// FluxTypeRow is the persisted row for a configured FlowType.
type FluxTypeRow struct {
	ID             int64
	Name           string
	Description    string
	RequiredStages []string
	OptionalStages []string
}

// ApplicationRow is the persisted row for one (FlowType, Application) pair.
type ApplicationRow struct {
	ID         int64
	FluxTypeID int64
	Name       string
}

// FluxInstance is a single flow/flux: a business transaction identified by
// a reference string within a flow type.
type FluxInstance struct {
	ID         int64
	FluxTypeID int64
	Reference  string
	Status     string
	ParentID   *int64 // nil when this instance has no parent
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ParsedData is the JSON-serialized payload of a LogEntry's parsed_data
// column: the three field-role maps extracted by the parser.
type ParsedData struct {
	IdentifierFields map[string]string `json:"identifier_fields"`
	PayloadFields    map[string]string `json:"payload_fields"`
	ReferenceLinks   map[string]string `json:"reference_links"`
}

// LogEntry is one ingested line attached to a FluxInstance and Application.
type LogEntry struct {
	ID             int64
	FluxInstanceID int64
	ApplicationID  int64
	LogType        string
	Timestamp      time.Time
	Seq            int64
	RawLog         string
	ParsedData     ParsedData
	ProcessedAt    time.Time
}

// CrossReference is a directed edge between two FluxInstances, labeled by
// the field name that carried the reference.
type CrossReference struct {
	ID             int64
	SourceFluxID   int64
	TargetFluxID   int64
	ReferenceField string
	ReferenceValue string
	CreatedAt      time.Time
}
