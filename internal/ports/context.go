package ports

import (
	"log/slog"
	"time"

	"github.com/strandlabs/strand/internal/domain"
)

// ProgressCallback is invoked synchronously at each layer boundary and is
// expected to return quickly.
type ProgressCallback func(percent int, event domain.TimelineEvent)

// ExecutionContext is the per-run mutable state container shared by all
// nodes of a run. The node-result map and variable store are written
// concurrently by every node of a layer and must be concurrency-safe.
type ExecutionContext interface {
	RunID() string
	Mode() domain.ExecutionMode
	Logger() *slog.Logger

	SetVariable(key string, value interface{})
	GetVariable(key string) (interface{}, bool)
	Variables() map[string]interface{}

	// Secret returns a caller-supplied secret. Secrets are never logged.
	Secret(key string) (string, bool)

	SetNodeResult(nodeID string, result *domain.NodeResult)
	GetNodeResult(nodeID string) (*domain.NodeResult, bool)
	AllNodeResults() map[string]*domain.NodeResult

	SetMetadata(key string, value interface{})
	Metadata() map[string]interface{}

	Elapsed() time.Duration
	EmitProgress(percent int, event domain.TimelineEvent)

	// Child creates a context for a nested run. Variables and secrets are
	// copied, never aliased.
	Child() ExecutionContext

	// Cleanup releases large buffers. Called exactly once, after the run
	// concludes.
	Cleanup()
}
