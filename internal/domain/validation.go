package domain

type ValidationCategory string

const (
	ValidationSchema     ValidationCategory = "schema"
	ValidationDAG        ValidationCategory = "dag"
	ValidationConnection ValidationCategory = "connection"
	ValidationConfig     ValidationCategory = "config"
)

type WarningCategory string

const (
	WarningPerformance  WarningCategory = "performance"
	WarningCost         WarningCategory = "cost"
	WarningBestPractice WarningCategory = "best_practice"
)

// ValidationError blocks execution entirely; the definition never runs.
type ValidationError struct {
	Category ValidationCategory `json:"category"`
	Message  string             `json:"message"`
	NodeID   string             `json:"nodeId,omitempty"`
	EdgeID   string             `json:"edgeId,omitempty"`
	Path     []string           `json:"path,omitempty"`
}

// ValidationWarning is advisory and does not block execution.
type ValidationWarning struct {
	Category WarningCategory `json:"category"`
	Message  string          `json:"message"`
	NodeID   string          `json:"nodeId,omitempty"`
}

// ValidationReport collects every finding from one validation pass. The
// validator never fails fast; callers get the complete diagnostic set.
type ValidationReport struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
}

func (r *ValidationReport) AddError(category ValidationCategory, message string) *ValidationError {
	r.Errors = append(r.Errors, ValidationError{Category: category, Message: message})
	r.Valid = false
	return &r.Errors[len(r.Errors)-1]
}

func (r *ValidationReport) AddWarning(category WarningCategory, message string) *ValidationWarning {
	r.Warnings = append(r.Warnings, ValidationWarning{Category: category, Message: message})
	return &r.Warnings[len(r.Warnings)-1]
}

// ErrorsOfCategory filters errors by category, mostly for tests and the CLI.
func (r *ValidationReport) ErrorsOfCategory(category ValidationCategory) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}
