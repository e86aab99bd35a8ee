package api

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/strandlabs/strand/internal/domain"
)

// runRequest is the body for POST /v1/workflows/run and /v1/workflows/submit.
type runRequest struct {
	Definition *domain.WorkflowDefinition `json:"definition" binding:"required"`
	Input      interface{}                `json:"input"`
	Variables  map[string]interface{}     `json:"variables"`
	Secrets    map[string]string          `json:"secrets"`
	Mode       string                     `json:"mode" binding:"omitempty,runmode"`
}

type validateRequest struct {
	Definition *domain.WorkflowDefinition `json:"definition" binding:"required"`
}

type submitResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

// registerValidations installs custom binding rules on gin's validator.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("runmode", func(fl validator.FieldLevel) bool {
		switch domain.ExecutionMode(fl.Field().String()) {
		case domain.ModeProduction, domain.ModeDemo, domain.ModeTest:
			return true
		}
		return false
	})
}
