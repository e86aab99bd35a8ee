package ports

import (
	"context"

	"github.com/strandlabs/strand/internal/domain"
)

// RunStore persists run records, per-node results, and definition snapshots.
// Missing keys surface as errors matching domain.ErrNotFound.
type RunStore interface {
	SaveRun(ctx context.Context, record *domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error

	SaveNodeResult(ctx context.Context, runID string, result *domain.NodeResult) error
	ListNodeResults(ctx context.Context, runID string) ([]*domain.NodeResult, error)

	SaveDefinition(ctx context.Context, runID string, def *domain.WorkflowDefinition) error
	GetDefinition(ctx context.Context, runID string) (*domain.WorkflowDefinition, error)

	Close() error
}
