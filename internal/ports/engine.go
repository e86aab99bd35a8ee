package ports

import (
	"context"

	"github.com/strandlabs/strand/internal/domain"
)

// Orchestrator drives one workflow run: plan construction, layer-synchronous
// execution, guarded invocation, failure policy, and result aggregation.
// Cancellation of ctx is honored cooperatively at layer boundaries. The
// workflow-level timeout is the caller's responsibility around Execute.
type Orchestrator interface {
	Execute(ctx context.Context, def *domain.WorkflowDefinition, ectx ExecutionContext, input interface{}) (*domain.RunResult, error)
	Plan(def *domain.WorkflowDefinition) (*domain.ExecutionPlan, error)
}

// Validator performs structural, DAG, and schema checks over a definition,
// independent of execution. It never mutates its input and collects all
// findings in one pass.
type Validator interface {
	Validate(def *domain.WorkflowDefinition) *domain.ValidationReport
}
