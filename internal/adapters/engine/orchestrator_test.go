package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/internal/adapters/registry"
	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

type stubBlock struct {
	fn func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult
}

func (s *stubBlock) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	return s.fn(ctx, config, input, ectx)
}

func (s *stubBlock) ValidateInput(value interface{}, schema *domain.ValueSchema) bool {
	return domain.CheckValue(value, schema)
}

func (s *stubBlock) ValidateOutput(value interface{}, schema *domain.ValueSchema) bool {
	return domain.CheckValue(value, schema)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerStub(t *testing.T, reg ports.BlockRegistry, blockType string, fn func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult) {
	t.Helper()
	err := reg.Register(blockType, func() ports.BlockExecutor {
		return &stubBlock{fn: fn}
	}, ports.BlockMeta{Name: blockType})
	require.NoError(t, err)
}

func sleepyEcho(d time.Duration) func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	return func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return domain.FailedResult(ctx.Err().Error())
		}
		return domain.CompletedResult(input)
	}
}

func newTestOrchestrator(t *testing.T, reg ports.BlockRegistry) *Orchestrator {
	t.Helper()
	return NewOrchestrator(domain.EngineConfig{DefaultNodeTimeout: 5 * time.Second}, reg, testLogger())
}

func node(id, blockType string) domain.NodeDefinition {
	return domain.NodeDefinition{ID: id, Type: blockType, Name: id}
}

func edge(source, target string) domain.EdgeDefinition {
	return domain.EdgeDefinition{ID: source + "-" + target, Source: source, Target: target}
}

func TestOrchestratorLinearChain(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "echo", sleepyEcho(50*time.Millisecond))

	def := &domain.WorkflowDefinition{
		ID: "wf-linear",
		Nodes: []domain.NodeDefinition{
			node("a", "echo"), node("b", "echo"), node("c", "echo"),
		},
		Edges: []domain.EdgeDefinition{edge("a", "b"), edge("b", "c")},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	started := time.Now()
	result, err := orch.Execute(context.Background(), def, ectx, map[string]interface{}{"seed": true})
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, 3, result.Summary.Completed)
	assert.Zero(t, result.Summary.Failed)
	// Three layers of one node each run strictly in sequence.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)

	final, ok := result.NodeResults["c"]
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"seed": true}, final.Output)
	assert.Equal(t, map[string]interface{}{"seed": true}, result.Output)
}

func TestOrchestratorDiamondRunsSiblingsConcurrently(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "echo", sleepyEcho(60*time.Millisecond))

	def := &domain.WorkflowDefinition{
		ID: "wf-diamond",
		Nodes: []domain.NodeDefinition{
			node("start", "echo"), node("left", "echo"), node("right", "echo"), node("join", "echo"),
		},
		Edges: []domain.EdgeDefinition{
			edge("start", "left"), edge("start", "right"),
			edge("left", "join"), edge("right", "join"),
		},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	started := time.Now()
	result, err := orch.Execute(context.Background(), def, ectx, "in")
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, 4, result.Summary.Completed)
	// left and right share a layer, so three layers of work, not four.
	assert.Less(t, elapsed, 4*60*time.Millisecond)

	join, ok := result.NodeResults["join"]
	require.True(t, ok)
	// Merge point keys each branch by its source node id.
	assert.Equal(t, map[string]interface{}{"left": "in", "right": "in"}, join.Output)
}

func TestOrchestratorStopPolicyAbortsDownstream(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "echo", sleepyEcho(0))
	registerStub(t, reg, "boom", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		return domain.FailedResult("deliberate failure")
	})

	def := &domain.WorkflowDefinition{
		ID:      "wf-stop",
		Globals: domain.GlobalPolicy{ErrorHandling: domain.FailureStop},
		Nodes: []domain.NodeDefinition{
			node("a", "echo"), node("b", "boom"), node("c", "echo"),
		},
		Edges: []domain.EdgeDefinition{edge("a", "b"), edge("b", "c")},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Contains(t, result.Error, "b")
	assert.Equal(t, 1, result.Summary.Completed)
	assert.Equal(t, 1, result.Summary.Failed)

	// The already-produced results are kept; the never-started node has none.
	assert.Contains(t, result.NodeResults, "a")
	assert.Contains(t, result.NodeResults, "b")
	assert.NotContains(t, result.NodeResults, "c")
}

func TestOrchestratorContinuePolicyIsolatesFailure(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "echo", sleepyEcho(0))
	registerStub(t, reg, "boom", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		return domain.FailedResult("deliberate failure")
	})

	// Two branches from start: the failing branch's descendant is skipped,
	// the healthy branch completes.
	def := &domain.WorkflowDefinition{
		ID:      "wf-continue",
		Globals: domain.GlobalPolicy{ErrorHandling: domain.FailureContinue},
		Nodes: []domain.NodeDefinition{
			node("start", "echo"),
			node("bad", "boom"), node("after-bad", "echo"),
			node("good", "echo"), node("after-good", "echo"),
		},
		Edges: []domain.EdgeDefinition{
			edge("start", "bad"), edge("bad", "after-bad"),
			edge("start", "good"), edge("good", "after-good"),
		},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, "in")
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, 3, result.Summary.Completed)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, 1, result.Summary.Skipped)

	skipped := result.NodeResults["after-bad"]
	require.NotNil(t, skipped)
	assert.Equal(t, domain.NodeStatusSkipped, skipped.Status)
	assert.Contains(t, skipped.SkipReason, "bad")

	healthy := result.NodeResults["after-good"]
	require.NotNil(t, healthy)
	assert.Equal(t, domain.NodeStatusCompleted, healthy.Status)
}

func TestOrchestratorProgressMonotonicToHundred(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "echo", sleepyEcho(0))

	def := &domain.WorkflowDefinition{
		ID: "wf-progress",
		Nodes: []domain.NodeDefinition{
			node("a", "echo"), node("b", "echo"), node("c", "echo"), node("d", "echo"),
		},
		Edges: []domain.EdgeDefinition{edge("a", "b"), edge("b", "c"), edge("c", "d")},
	}

	var mu sync.Mutex
	var seen []int
	ectx := NewExecutionContext(ContextOptions{
		Logger: testLogger(),
		Progress: func(percent int, event domain.TimelineEvent) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, percent)
		},
	})

	orch := newTestOrchestrator(t, reg)
	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{25, 50, 75, 100}, seen)
	assert.Len(t, result.Timeline, 4)
	for i, event := range result.Timeline {
		assert.Equal(t, "layer_completed", event.Name)
		assert.Equal(t, i, event.Layer)
	}
}

func TestOrchestratorCancelledBetweenLayers(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "echo", sleepyEcho(0))

	def := &domain.WorkflowDefinition{
		ID: "wf-cancel",
		Nodes: []domain.NodeDefinition{
			node("a", "echo"), node("b", "echo"),
		},
		Edges: []domain.EdgeDefinition{edge("a", "b")},
	}

	// Progress fires synchronously at the layer boundary, so cancelling from
	// the first layer's callback lands before the second layer starts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{
		Logger: testLogger(),
		Progress: func(percent int, event domain.TimelineEvent) {
			if event.Layer == 0 {
				cancel()
			}
		},
	})

	result, err := orch.Execute(ctx, def, ectx, nil)
	require.NoError(t, err)

	// The in-flight layer settled, the next layer was refused.
	assert.Equal(t, domain.RunStatusCancelled, result.Status)
	assert.Equal(t, 1, result.Summary.Completed)
	assert.NotContains(t, result.NodeResults, "b")
}

func TestOrchestratorUnregisteredTypeFailsNode(t *testing.T) {
	reg := registry.NewManager(testLogger())

	def := &domain.WorkflowDefinition{
		ID:      "wf-unregistered",
		Globals: domain.GlobalPolicy{ErrorHandling: domain.FailureContinue},
		Nodes:   []domain.NodeDefinition{node("a", "ghost.type")},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.NoError(t, err)

	failed := result.NodeResults["a"]
	require.NotNil(t, failed)
	assert.Equal(t, domain.NodeStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "ghost.type")
}

func TestOrchestratorEngineDefaultRetryApplies(t *testing.T) {
	reg := registry.NewManager(testLogger())

	var attempts atomic.Int32
	registerStub(t, reg, "flaky", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		if attempts.Add(1) <= 2 {
			return domain.FailedResult("transient")
		}
		return domain.CompletedResult(input)
	})

	// Neither the node nor the workflow carries a retry policy, so the
	// engine-wide default is the budget that saves this run.
	def := &domain.WorkflowDefinition{
		ID:    "wf-default-retry",
		Nodes: []domain.NodeDefinition{node("a", "flaky")},
	}

	orch := NewOrchestrator(domain.EngineConfig{
		DefaultNodeTimeout: 5 * time.Second,
		DefaultRetry:       &domain.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffMultiplier: 1},
	}, reg, testLogger())
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, "in")
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	settled := result.NodeResults["a"]
	require.NotNil(t, settled)
	assert.Equal(t, 2, settled.RetryCount)
}

func TestOrchestratorNodeRetryOverridesEngineDefault(t *testing.T) {
	reg := registry.NewManager(testLogger())

	var attempts atomic.Int32
	registerStub(t, reg, "boom", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		attempts.Add(1)
		return domain.FailedResult("always fails")
	})

	def := &domain.WorkflowDefinition{
		ID: "wf-retry-precedence",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "boom", Name: "a", Retry: &domain.RetryPolicy{MaxRetries: 0, BackoffMultiplier: 1}},
		},
	}

	orch := NewOrchestrator(domain.EngineConfig{
		DefaultNodeTimeout: 5 * time.Second,
		DefaultRetry:       &domain.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffMultiplier: 1},
	}, reg, testLogger())
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.NoError(t, err)

	// The node's own zero budget wins; the engine default must not re-arm it.
	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 0, result.NodeResults["a"].RetryCount)
}

func TestOrchestratorMaxParallelNodesLimitsLayer(t *testing.T) {
	reg := registry.NewManager(testLogger())

	var running, peak int32
	registerStub(t, reg, "counting", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		current := atomic.AddInt32(&running, 1)
		for {
			observed := atomic.LoadInt32(&peak)
			if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return domain.CompletedResult(nil)
	})

	def := &domain.WorkflowDefinition{
		ID:      "wf-limit",
		Globals: domain.GlobalPolicy{MaxParallelNodes: 2},
		Nodes: []domain.NodeDefinition{
			node("a", "counting"), node("b", "counting"),
			node("c", "counting"), node("d", "counting"),
		},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Summary.Completed)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestOrchestratorOutputSchemaMismatchFailsNode(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "stringer", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		return domain.CompletedResult("not a number")
	})

	def := &domain.WorkflowDefinition{
		ID:      "wf-schema",
		Globals: domain.GlobalPolicy{ErrorHandling: domain.FailureContinue},
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "stringer", Name: "a", OutputSchema: &domain.ValueSchema{Type: domain.TypeNumber}},
		},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.NoError(t, err)

	failed := result.NodeResults["a"]
	require.NotNil(t, failed)
	assert.Equal(t, domain.NodeStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "schema")
}

func TestOrchestratorPanicIsolatedToNode(t *testing.T) {
	reg := registry.NewManager(testLogger())
	registerStub(t, reg, "panicky", func(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
		panic("boom")
	})
	registerStub(t, reg, "echo", sleepyEcho(0))

	def := &domain.WorkflowDefinition{
		ID:      "wf-panic",
		Globals: domain.GlobalPolicy{ErrorHandling: domain.FailureContinue},
		Nodes: []domain.NodeDefinition{
			node("bad", "panicky"), node("good", "echo"),
		},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, "in")
	require.NoError(t, err)

	assert.Equal(t, domain.NodeStatusFailed, result.NodeResults["bad"].Status)
	assert.Contains(t, result.NodeResults["bad"].Error, "panic")
	assert.Equal(t, domain.NodeStatusCompleted, result.NodeResults["good"].Status)
}

func TestOrchestratorPlanFailureReturnsError(t *testing.T) {
	reg := registry.NewManager(testLogger())
	def := &domain.WorkflowDefinition{
		ID:    "wf-cycle",
		Nodes: []domain.NodeDefinition{node("a", "echo"), node("b", "echo")},
		Edges: []domain.EdgeDefinition{edge("a", "b"), edge("b", "a")},
	}

	orch := newTestOrchestrator(t, reg)
	ectx := NewExecutionContext(ContextOptions{Logger: testLogger()})

	result, err := orch.Execute(context.Background(), def, ectx, nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "cycle")
}
