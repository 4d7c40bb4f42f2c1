// Package catalog builds and validates the immutable pattern catalog
// from configuration: for every (flow type, application,
// stage) triple it holds a compiled regex plus the field-role lists the
// parser needs to extract a ParsedLog.
package catalog

import "regexp"

// Pattern is a compiled (flow type, application, stage) entry.
type Pattern struct {
	Stage            string
	Regex            *regexp.Regexp
	TimestampFormat  string
	IdentifierFields []string
	PayloadFields    []string
	ReferenceLinks   []string
}

// Application holds every stage pattern configured for one producer
// within a flow type.
type Application struct {
	Name     string
	patterns map[string]*Pattern
	order    []string // stage names, sorted
}

// StageNames returns the application's configured stages, alphabetically.
func (a *Application) StageNames() []string {
	return a.order
}

// Pattern returns the pattern for a stage, if configured.
func (a *Application) Pattern(stage string) (*Pattern, bool) {
	p, ok := a.patterns[stage]
	return p, ok
}

// FlowType is one configured family of flows.
type FlowType struct {
	Name           string
	Description    string
	RequiredStages []string
	OptionalStages []string
	applications   map[string]*Application
	order          []string // application names, sorted
}

// ApplicationNames returns the flow type's configured applications,
// alphabetically.
func (ft *FlowType) ApplicationNames() []string {
	return ft.order
}

// Application returns the named application, if configured.
func (ft *FlowType) Application(name string) (*Application, bool) {
	a, ok := ft.applications[name]
	return a, ok
}

// Catalog is the compiled, immutable pattern catalog. Safe for
// concurrent read access once built - nothing here mutates after
// Compile returns.
type Catalog struct {
	flowTypes map[string]*FlowType
	order     []string // flow type names, sorted
}

// FlowTypeNames returns every configured flow type name, alphabetically.
func (c *Catalog) FlowTypeNames() []string {
	return c.order
}

// FlowType returns the named flow type, if configured.
func (c *Catalog) FlowType(name string) (*FlowType, bool) {
	ft, ok := c.flowTypes[name]
	return ft, ok
}

// PatternRef is one candidate the parser can try a line against: a
// fully-qualified (flow type, application, stage) pattern.
type PatternRef struct {
	FlowType    string
	Application string
	Pattern     *Pattern
}
