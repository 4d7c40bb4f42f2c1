package catalog

import (
	"regexp"
	"sort"

	"github.com/mclement/fluxtrace/internal/config"
)

// Compile builds an immutable Catalog from configuration, validating
// every pattern as it goes. It returns all validation errors found,
// so a misconfigured catalog is reported in full rather than one
// defect at a time.
func Compile(cfg *config.Config) (*Catalog, error) {
	cat := &Catalog{flowTypes: make(map[string]*FlowType)}
	var errs ValidationErrors

	flowNames := make([]string, 0, len(cfg.FlowTypes))
	for name := range cfg.FlowTypes {
		flowNames = append(flowNames, name)
	}
	sort.Strings(flowNames)

	for _, flowName := range flowNames {
		ftCfg := cfg.FlowTypes[flowName]
		ft := &FlowType{
			Name:           flowName,
			Description:    ftCfg.Description,
			RequiredStages: nonNil(ftCfg.RequiredSteps),
			OptionalStages: nonNil(ftCfg.OptionalSteps),
			applications:   make(map[string]*Application),
		}

		if len(ftCfg.Applications) == 0 {
			errs = append(errs, &ValidationError{
				Path: flowName, Field: "applications",
				Message: "flow type defines no applications", Code: codeNoApplications,
			})
		}

		appNames := make([]string, 0, len(ftCfg.Applications))
		for name := range ftCfg.Applications {
			appNames = append(appNames, name)
		}
		sort.Strings(appNames)

		for _, appName := range appNames {
			appCfg := ftCfg.Applications[appName]
			app := &Application{Name: appName, patterns: make(map[string]*Pattern)}

			if len(appCfg.Patterns) == 0 {
				errs = append(errs, &ValidationError{
					Path: flowName + "." + appName, Field: "patterns",
					Message: "application defines no patterns", Code: codeNoPatterns,
				})
			}

			stageNames := make([]string, 0, len(appCfg.Patterns))
			for name := range appCfg.Patterns {
				stageNames = append(stageNames, name)
			}
			sort.Strings(stageNames)

			for _, stage := range stageNames {
				pCfg := appCfg.Patterns[stage]
				path := flowName + "." + appName + "." + stage

				re, err := regexp.Compile(pCfg.Regex)
				if err != nil {
					errs = append(errs, &ValidationError{
						Path: path, Field: "regex",
						Message: err.Error(), Code: codeBadRegex,
					})
					continue
				}

				captures := capturesOf(re.SubexpNames())
				for _, field := range requiredCaptures(pCfg.IdentifierFields, pCfg.PayloadFields, pCfg.ReferenceLinks) {
					if !captures[field] {
						errs = append(errs, &ValidationError{
							Path: path, Field: field,
							Message: "no named capture group for this field in regex",
							Code:    codeMissingCapture,
						})
					}
				}

				app.patterns[stage] = &Pattern{
					Stage:            stage,
					Regex:            re,
					TimestampFormat:  pCfg.TimestampFormat,
					IdentifierFields: nonNil(pCfg.IdentifierFields),
					PayloadFields:    nonNil(pCfg.PayloadFields),
					ReferenceLinks:   nonNil(pCfg.ReferenceLinks),
				}
				app.order = append(app.order, stage)
			}

			ft.applications[appName] = app
			ft.order = append(ft.order, appName)
		}

		cat.flowTypes[flowName] = ft
		cat.order = append(cat.order, flowName)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return cat, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Candidates returns the patterns the parser should try, in
// deterministic (flow type, application, stage) order, honoring the
// forced flow-type and application selectors. ok is false when a forced
// selector does not resolve to anything in the catalog.
func (c *Catalog) Candidates(forceFlowType, forceApplication string) (refs []PatternRef, ok bool) {
	switch {
	case forceFlowType != "" && forceApplication != "":
		ft, exists := c.flowTypes[forceFlowType]
		if !exists {
			return nil, false
		}
		app, exists := ft.applications[forceApplication]
		if !exists {
			return nil, false
		}
		return appCandidates(forceFlowType, app), true

	case forceFlowType != "":
		ft, exists := c.flowTypes[forceFlowType]
		if !exists {
			return nil, false
		}
		for _, appName := range ft.order {
			refs = append(refs, appCandidates(forceFlowType, ft.applications[appName])...)
		}
		return refs, true

	case forceApplication != "":
		for _, flowName := range c.order {
			ft := c.flowTypes[flowName]
			if app, exists := ft.applications[forceApplication]; exists {
				refs = append(refs, appCandidates(flowName, app)...)
			}
		}
		return refs, len(refs) > 0

	default:
		for _, flowName := range c.order {
			ft := c.flowTypes[flowName]
			for _, appName := range ft.order {
				refs = append(refs, appCandidates(flowName, ft.applications[appName])...)
			}
		}
		return refs, true
	}
}

func appCandidates(flowType string, app *Application) []PatternRef {
	refs := make([]PatternRef, 0, len(app.order))
	for _, stage := range app.order {
		refs = append(refs, PatternRef{
			FlowType:    flowType,
			Application: app.Name,
			Pattern:     app.patterns[stage],
		})
	}
	return refs
}
