// Package strand provides an embeddable workflow orchestration engine for Go
// applications.
//
// Strand executes declarative workflow definitions: directed acyclic graphs of
// typed block nodes connected by edges. Definitions are validated exhaustively
// before execution, compiled into a layered plan, and run layer by layer with
// configurable parallelism, per-node timeouts, and retry policies. It provides
// features like:
//   - Full-diagnostic validation that reports every problem in one pass
//   - Layer-synchronous parallel execution with a global parallelism cap
//   - Per-node timeout and exponential-backoff retry policies
//   - Stop or continue failure handling per workflow
//   - Persistent run history and an asynchronous submission queue
//   - Lifecycle events over an in-process bus, with an optional NATS mirror
//
// Basic usage:
//
//	manager, err := strand.New("./data", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	blocks.RegisterBuiltins(manager.Registry(), blocks.Options{})
//	manager.Start(context.Background())
//	defer manager.Stop()
//
//	def, _ := strand.ParseDefinition(raw)
//	result, err := manager.Execute(ctx, def, strand.RunOptions{Input: input})
package strand

import (
	"context"
	"log/slog"

	"github.com/strandlabs/strand/internal/core"
	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// Manager is the main orchestration engine. It owns validation, planning,
// execution, the run store, the submission queue, and the lifecycle bus.
type Manager = core.Manager

// RunOptions parameterizes one execution or submission: caller input,
// variables, secrets, execution mode, and an optional progress callback.
type RunOptions = core.RunOptions

// WorkflowDefinition is the versioned, serializable workflow document.
type WorkflowDefinition = domain.WorkflowDefinition

// NodeDefinition is one typed block in a workflow.
type NodeDefinition = domain.NodeDefinition

// EdgeDefinition connects a source node to a target node, optionally through
// named ports.
type EdgeDefinition = domain.EdgeDefinition

// GlobalPolicy carries workflow-wide settings: timeout, default retry policy,
// failure strategy, and the parallelism cap.
type GlobalPolicy = domain.GlobalPolicy

// RetryPolicy describes exponential-backoff retries for a node.
type RetryPolicy = domain.RetryPolicy

// ValueSchema is the primitive-shape schema block inputs and outputs can be
// checked against.
type ValueSchema = domain.ValueSchema

// ValidationReport collects every finding from one validation pass.
type ValidationReport = domain.ValidationReport

// ValidationError blocks execution entirely; the definition never runs.
type ValidationError = domain.ValidationError

// ValidationWarning is advisory and does not block execution.
type ValidationWarning = domain.ValidationWarning

// ExecutionPlan is the layered execution order computed for a definition.
type ExecutionPlan = domain.ExecutionPlan

// RunResult aggregates one workflow execution: final status, combined output,
// every node result, and the layer timeline.
type RunResult = domain.RunResult

// NodeResult is the single result slot a node owns for one run.
type NodeResult = domain.NodeResult

// RunRecord is the persisted envelope for a submitted or finished run.
type RunRecord = domain.RunRecord

// RunSummary counts node outcomes for one run.
type RunSummary = domain.RunSummary

// TimelineEvent is a structured progress record emitted at layer boundaries.
type TimelineEvent = domain.TimelineEvent

// RunInfo is the execution metadata blocks can read from their context.
type RunInfo = domain.RunInfo

// BlockExecutor is the unit of work attached to a node type, and the only
// abstraction embedding code implements.
type BlockExecutor = ports.BlockExecutor

// BlockFactory constructs a fresh executor for one node invocation.
type BlockFactory = ports.BlockFactory

// BlockMeta describes a registered block type.
type BlockMeta = ports.BlockMeta

// BlockRegistry maps block-type keys to executor factories.
type BlockRegistry = ports.BlockRegistry

// ExecutionContext is the per-run state container shared by all nodes of a
// run: variables, secrets, node results, and progress emission.
type ExecutionContext = ports.ExecutionContext

// ProgressCallback is invoked synchronously at each layer boundary.
type ProgressCallback = ports.ProgressCallback

// EventBus is the in-process typed pub/sub of run lifecycle events.
type EventBus = ports.EventBus

// Event types for run lifecycle monitoring.

// RunStartedEvent is emitted when a run begins execution.
type RunStartedEvent = domain.RunStartedEvent

// RunCompletedEvent is emitted when a run finishes without a workflow-level
// failure.
type RunCompletedEvent = domain.RunCompletedEvent

// RunFailedEvent is emitted when a run fails or is cancelled.
type RunFailedEvent = domain.RunFailedEvent

// LayerCompletedEvent is emitted after each execution layer settles.
type LayerCompletedEvent = domain.LayerCompletedEvent

// NodeSettledEvent is emitted for each node once its run concludes.
type NodeSettledEvent = domain.NodeSettledEvent

// ExecutionMode selects production, demo, or test behavior for blocks with
// external side effects.
type ExecutionMode = domain.ExecutionMode

const (
	ModeProduction = domain.ModeProduction
	ModeDemo       = domain.ModeDemo
	ModeTest       = domain.ModeTest
)

// NodeRole marks a node as a workflow input or output.
type NodeRole = domain.NodeRole

const (
	RoleInput   = domain.RoleInput
	RoleOutput  = domain.RoleOutput
	RoleProcess = domain.RoleProcess
)

// FailureStrategy selects how a run reacts to a failed node.
type FailureStrategy = domain.FailureStrategy

const (
	// FailureStop aborts remaining layers after the failing layer settles.
	FailureStop = domain.FailureStop
	// FailureContinue skips dependents of the failure and runs the rest.
	FailureContinue = domain.FailureContinue
)

// NodeStatus is the terminal state of one node execution.
type NodeStatus = domain.NodeStatus

const (
	NodeStatusPending   = domain.NodeStatusPending
	NodeStatusRunning   = domain.NodeStatusRunning
	NodeStatusCompleted = domain.NodeStatusCompleted
	NodeStatusFailed    = domain.NodeStatusFailed
	NodeStatusSkipped   = domain.NodeStatusSkipped
)

// RunStatus is the lifecycle state of a run.
type RunStatus = domain.RunStatus

const (
	RunStatusQueued    = domain.RunStatusQueued
	RunStatusRunning   = domain.RunStatusRunning
	RunStatusCompleted = domain.RunStatusCompleted
	RunStatusFailed    = domain.RunStatusFailed
	RunStatusCancelled = domain.RunStatusCancelled
)

// New creates a manager with default settings, persisting runs under dataDir.
// A nil logger discards engine output.
func New(dataDir string, logger *slog.Logger) (*Manager, error) {
	return core.NewManager(domain.NewConfigFromSimple(dataDir, logger))
}

// NewWithConfig creates a manager from a complete configuration object.
func NewWithConfig(config *Config) (*Manager, error) {
	return core.NewManager(config)
}

// ParseDefinition decodes a JSON workflow definition.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	return domain.ParseDefinition(data)
}

// GetRunInfo extracts run metadata from the context passed to a block's
// Execute method.
//
// Example usage in a block:
//
//	func (b *MyBlock) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx strand.ExecutionContext) strand.NodeResult {
//	    if info, ok := strand.GetRunInfo(ctx); ok {
//	        ectx.Logger().Info("executing", "node", info.NodeID, "run", info.RunID)
//	    }
//	    return strand.CompletedResult(input)
//	}
func GetRunInfo(ctx context.Context) (*RunInfo, bool) {
	return domain.GetRunInfo(ctx)
}

// CompletedResult builds a successful node result carrying output.
func CompletedResult(output interface{}) NodeResult {
	return domain.CompletedResult(output)
}

// FailedResult builds a failed node result carrying an error message.
func FailedResult(message string) NodeResult {
	return domain.FailedResult(message)
}

// SkippedResult builds a skipped node result carrying a reason.
func SkippedResult(reason string) NodeResult {
	return domain.SkippedResult(reason)
}

// IsNotFound reports whether err represents a missing run, definition, or
// other stored resource.
func IsNotFound(err error) bool {
	return domain.IsNotFound(err)
}
