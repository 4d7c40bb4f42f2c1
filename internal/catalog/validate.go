package catalog

import "fmt"

// ValidationError is one configuration defect found while compiling
// the catalog; configuration errors are fatal at startup. Code is a
// short machine-stable tag; Path names the
// (flow type, application, stage) location the problem was found at.
type ValidationError struct {
	Path    string
	Field   string
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s (%s)", e.Path, e.Field, e.Message, e.Code)
}

// ValidationErrors collects every defect found during one Compile call,
// so a misconfigured catalog is reported in full rather than one error
// at a time.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := fmt.Sprintf("%d catalog validation errors:", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return msg
}

const (
	codeMissingCapture = "E_MISSING_CAPTURE"
	codeBadRegex       = "E_BAD_REGEX"
	codeNoApplications = "E_NO_APPLICATIONS"
	codeNoPatterns     = "E_NO_PATTERNS"
)

// requiredCaptures returns the capture-group names a pattern must
// define: every identifier/payload/reference field plus the mandatory
// "timestamp" capture. Duplicate names across roles collapse naturally
// since this is used as a set.
func requiredCaptures(identifier, payload, references []string) []string {
	seen := map[string]bool{"timestamp": true}
	out := []string{"timestamp"}
	for _, group := range [][]string{identifier, payload, references} {
		for _, field := range group {
			if !seen[field] {
				seen[field] = true
				out = append(out, field)
			}
		}
	}
	return out
}

func capturesOf(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	return set
}
