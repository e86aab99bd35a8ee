package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
	json "github.com/strandlabs/strand/internal/xjson"
)

var _ ports.Orchestrator = (*Orchestrator)(nil)

// Orchestrator drives layer-synchronous workflow execution: one goroutine
// per node per layer, an all-settle barrier between layers, guarded
// invocation per node, and the configured failure policy across layers.
type Orchestrator struct {
	registry ports.BlockRegistry
	planner  *Planner
	invoker  *invoker
	config   domain.EngineConfig
	logger   *slog.Logger
}

func NewOrchestrator(config domain.EngineConfig, registry ports.BlockRegistry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "orchestrator")

	return &Orchestrator{
		registry: registry,
		planner:  NewPlanner(logger),
		invoker:  newInvoker(config.DefaultNodeTimeout, logger),
		config:   config,
		logger:   logger,
	}
}

// Plan exposes plan construction without executing, for the CLI and tests.
func (o *Orchestrator) Plan(def *domain.WorkflowDefinition) (*domain.ExecutionPlan, error) {
	return o.planner.BuildPlan(def)
}

// Execute runs one workflow. The caller owns the whole-workflow timeout by
// wrapping ctx; the orchestrator enforces per-node timeouts only and checks
// cancellation at layer boundaries.
func (o *Orchestrator) Execute(ctx context.Context, def *domain.WorkflowDefinition, ectx ports.ExecutionContext, input interface{}) (*domain.RunResult, error) {
	startedAt := time.Now()

	plan, err := o.planner.BuildPlan(def)
	if err != nil {
		o.logger.Error("plan construction failed",
			"workflow_id", def.ID,
			"run_id", ectx.RunID(),
			"error", err,
		)
		return nil, err
	}

	result := &domain.RunResult{
		RunID:       ectx.RunID(),
		WorkflowID:  def.ID,
		Status:      domain.RunStatusRunning,
		NodeResults: make(map[string]*domain.NodeResult),
		StartedAt:   startedAt,
	}
	result.Summary.TotalNodes = len(def.Nodes)

	o.logger.Debug("run started",
		"workflow_id", def.ID,
		"run_id", ectx.RunID(),
		"nodes", len(def.Nodes),
		"layers", plan.LayerCount(),
	)

	var sem chan struct{}
	if limit := o.maxParallel(def); limit > 0 {
		sem = make(chan struct{}, limit)
	}

	strategy := def.Strategy()
	totalLayers := plan.LayerCount()
	var failedNode string

layers:
	for layerIdx, layer := range plan.Layers {
		if ctx.Err() != nil {
			result.Status = domain.RunStatusCancelled
			result.Error = domain.ErrRunCancelled.Error()
			o.logger.Debug("run cancelled at layer boundary",
				"run_id", ectx.RunID(),
				"layer", layerIdx,
			)
			break layers
		}

		var wg sync.WaitGroup
		for _, nodeID := range layer {
			node, ok := def.Node(nodeID)
			if !ok {
				// Planner layers come from the definition; this cannot
				// happen unless the definition mutated mid-run.
				continue
			}

			wg.Add(1)
			go func(node *domain.NodeDefinition) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				o.runNode(ctx, def, node, ectx, input)
			}(node)
		}
		wg.Wait()

		layerFailed := false
		for _, nodeID := range layer {
			nodeResult, ok := ectx.GetNodeResult(nodeID)
			if !ok {
				continue
			}
			result.NodeResults[nodeID] = nodeResult
			switch nodeResult.Status {
			case domain.NodeStatusCompleted:
				result.Summary.Completed++
			case domain.NodeStatusFailed:
				result.Summary.Failed++
				layerFailed = true
				failedNode = nodeID
			case domain.NodeStatusSkipped:
				result.Summary.Skipped++
			}
		}

		progress := (layerIdx + 1) * 100 / totalLayers
		event := domain.TimelineEvent{
			Timestamp: time.Now(),
			Name:      "layer_completed",
			Layer:     layerIdx,
			NodeCount: len(layer),
		}
		result.Timeline = append(result.Timeline, event)
		ectx.EmitProgress(progress, event)

		if layerFailed && strategy == domain.FailureStop {
			result.Status = domain.RunStatusFailed
			result.Error = fmt.Sprintf("node %s failed under stop policy", failedNode)
			o.logger.Debug("aborting remaining layers under stop policy",
				"run_id", ectx.RunID(),
				"failed_node", failedNode,
				"layer", layerIdx,
			)
			break layers
		}
	}

	if result.Status == domain.RunStatusRunning {
		result.Status = domain.RunStatusCompleted
		result.Output = o.aggregateOutput(def, ectx)
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	o.logger.Debug("run finished",
		"workflow_id", def.ID,
		"run_id", ectx.RunID(),
		"status", result.Status,
		"completed", result.Summary.Completed,
		"failed", result.Summary.Failed,
		"skipped", result.Summary.Skipped,
		"duration", result.Duration,
	)

	return result, nil
}

// retryPolicy resolves the retry policy for one node: node-level, then the
// workflow's global policy, then the engine-wide default.
func (o *Orchestrator) retryPolicy(def *domain.WorkflowDefinition, node *domain.NodeDefinition) *domain.RetryPolicy {
	if retry := def.NodeRetry(node); retry != nil {
		return retry
	}
	return o.config.DefaultRetry
}

func (o *Orchestrator) maxParallel(def *domain.WorkflowDefinition) int {
	if def.Globals.MaxParallelNodes > 0 {
		return def.Globals.MaxParallelNodes
	}
	return o.config.MaxParallelNodes
}

// runNode settles exactly one node: executor resolution, input gathering,
// config interpolation, schema checks, and the guarded invocation. The
// result is written once into the context's result slot.
func (o *Orchestrator) runNode(ctx context.Context, def *domain.WorkflowDefinition, node *domain.NodeDefinition, ectx ports.ExecutionContext, workflowInput interface{}) {
	started := time.Now()

	settle := func(result domain.NodeResult) {
		result.NodeID = node.ID
		result.StartedAt = started
		result.FinishedAt = time.Now()
		result.Duration = result.FinishedAt.Sub(result.StartedAt)
		ectx.SetNodeResult(node.ID, &result)

		ectx.Logger().Debug("node settled",
			"node_id", node.ID,
			"status", result.Status,
			"retry_count", result.RetryCount,
			"duration", result.Duration,
		)
	}

	// Lazy resolution: an unregistered type is this node's failure under
	// the workflow failure policy, not a pre-flight error.
	executor, err := o.registry.CreateExecutor(node.Type)
	if err != nil {
		settle(domain.FailedResult(err.Error()))
		return
	}

	input := gatherInput(def, node.ID, ectx, workflowInput)
	if !input.Available {
		settle(domain.SkippedResult(input.Reason))
		return
	}

	if node.InputSchema != nil && !executor.ValidateInput(input.Value, node.InputSchema) {
		settle(domain.FailedResult("input does not match declared schema"))
		return
	}

	config := InterpolateConfig(node.Config, Scope{Input: input.Value, Context: ectx})

	nodeCtx := domain.WithRunInfo(ctx, &domain.RunInfo{
		RunID:      ectx.RunID(),
		WorkflowID: def.ID,
		NodeID:     node.ID,
		NodeName:   node.Name,
		Mode:       ectx.Mode(),
	})

	result := o.invoker.invoke(nodeCtx, executor, node, o.retryPolicy(def, node), config, input.Value, ectx)
	result.Input = snapshotInput(input.Value)

	if result.Status == domain.NodeStatusCompleted && node.OutputSchema != nil &&
		!executor.ValidateOutput(result.Output, node.OutputSchema) {
		result = domain.FailedResult("output does not match declared schema")
		result.Input = snapshotInput(input.Value)
	}

	settle(result)
}

// snapshotInput deep-copies the input so later mutation by sibling nodes
// cannot rewrite a recorded result.
func snapshotInput(input interface{}) interface{} {
	if input == nil {
		return nil
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	var snapshot interface{}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil
	}
	return snapshot
}

// aggregateOutput combines the outputs of the output-role nodes (leaves when
// none is flagged) into the final output object. Object outputs merge;
// anything else lands under the node's id.
func (o *Orchestrator) aggregateOutput(def *domain.WorkflowDefinition, ectx ports.ExecutionContext) map[string]interface{} {
	outputs := def.OutputNodes()
	sort.Strings(outputs)

	combined := make(map[string]interface{})
	for _, nodeID := range outputs {
		result, ok := ectx.GetNodeResult(nodeID)
		if !ok || result.Status != domain.NodeStatusCompleted {
			continue
		}
		if obj, isObj := result.Output.(map[string]interface{}); isObj {
			merged, err := domain.MergeMaps(combined, obj)
			if err == nil {
				combined = merged
				continue
			}
		}
		combined[nodeID] = result.Output
	}
	return combined
}
