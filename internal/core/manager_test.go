package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

type echoBlock struct{}

func (echoBlock) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	if fail, ok := config["fail"].(bool); ok && fail {
		return domain.FailedResult("configured to fail")
	}
	return domain.CompletedResult(input)
}

func (echoBlock) ValidateInput(value interface{}, schema *domain.ValueSchema) bool {
	return domain.CheckValue(value, schema)
}

func (echoBlock) ValidateOutput(value interface{}, schema *domain.ValueSchema) bool {
	return domain.CheckValue(value, schema)
}

func testConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Mode = domain.ModeTest
	cfg.InMemory = true
	cfg.Runner.PollInterval = 10 * time.Millisecond
	cfg.Runner.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testConfig())
	require.NoError(t, err)
	require.NoError(t, m.Registry().Register("echo", func() ports.BlockExecutor {
		return echoBlock{}
	}, ports.BlockMeta{Name: "Echo"}))
	return m
}

func simpleDefinition() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:       "wf-simple",
		Name:     "simple",
		Version:  "1.0.0",
		Metadata: domain.Metadata{CreatedAt: time.Now()},
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "echo", Name: "a", Config: map[string]interface{}{}},
			{ID: "b", Type: "echo", Name: "b", Config: map[string]interface{}{}},
		},
		Edges: []domain.EdgeDefinition{
			{ID: "a-b", Source: "a", Target: "b"},
		},
	}
}

// TestManagerExecuteGatesOnStructuralValidation pins the structural gate:
// a definition without metadata.createdAt or node config objects is refused
// before any node runs.
func TestManagerExecuteGatesOnStructuralValidation(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	def := simpleDefinition()
	def.Metadata = domain.Metadata{}
	def.Nodes[0].Config = nil

	_, err := m.Execute(context.Background(), def, RunOptions{})
	require.Error(t, err)

	report := m.Validate(def)
	assert.False(t, report.Valid)

	def = simpleDefinition()
	report = m.Validate(def)
	assert.True(t, report.Valid, "unexpected errors: %v", report.Errors)
}

func TestManagerExecuteSynchronous(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	input := map[string]interface{}{"seed": true}
	result, err := m.Execute(context.Background(), simpleDefinition(), RunOptions{Input: input})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Summary.Completed)
	assert.Equal(t, input, result.Output)

	record, err := m.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, record.Status)
	require.NotNil(t, record.Result)

	nodeResults, err := m.ListNodeResults(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, nodeResults, 2)

	def, err := m.GetDefinition(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "wf-simple", def.ID)
}

func TestManagerExecuteRejectsInvalidDefinition(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	def := simpleDefinition()
	def.Edges = append(def.Edges, domain.EdgeDefinition{ID: "b-a", Source: "b", Target: "a"})

	_, err := m.Execute(context.Background(), def, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestManagerExecuteEnforcesGlobalTimeout(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	require.NoError(t, m.Registry().Register("sleepy", func() ports.BlockExecutor {
		return sleepyBlock{}
	}, ports.BlockMeta{Name: "Sleepy"}))

	def := &domain.WorkflowDefinition{
		ID:       "wf-timeout",
		Name:     "timeout",
		Version:  "1.0.0",
		Metadata: domain.Metadata{CreatedAt: time.Now()},
		Globals:  domain.GlobalPolicy{Timeout: 50 * time.Millisecond},
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "sleepy", Name: "a", Config: map[string]interface{}{}},
			{ID: "b", Type: "sleepy", Name: "b", Config: map[string]interface{}{}},
		},
		Edges: []domain.EdgeDefinition{{ID: "a-b", Source: "a", Target: "b"}},
	}

	result, err := m.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, domain.RunStatusCompleted, result.Status)
}

type sleepyBlock struct{}

func (sleepyBlock) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	select {
	case <-time.After(200 * time.Millisecond):
		return domain.CompletedResult(input)
	case <-ctx.Done():
		return domain.FailedResult(ctx.Err().Error())
	}
}

func (sleepyBlock) ValidateInput(value interface{}, schema *domain.ValueSchema) bool  { return true }
func (sleepyBlock) ValidateOutput(value interface{}, schema *domain.ValueSchema) bool { return true }

func TestManagerSubmitAndRunnerDrains(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop() }()

	var mu sync.Mutex
	completed := make(map[string]bool)
	m.Events().OnRunCompleted(func(event *domain.RunCompletedEvent) {
		mu.Lock()
		defer mu.Unlock()
		completed[event.RunID] = true
	})

	runID, err := m.Submit(context.Background(), simpleDefinition(), RunOptions{
		Input: map[string]interface{}{"n": float64(1)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		record, err := m.GetRun(context.Background(), runID)
		return err == nil && record.Status == domain.RunStatusCompleted
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, completed[runID])
}

func TestManagerLifecycleEvents(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop() }()

	var mu sync.Mutex
	var order []string
	m.Events().OnRunStarted(func(*domain.RunStartedEvent) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "started")
	})
	m.Events().OnLayerCompleted(func(event *domain.LayerCompletedEvent) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "layer")
	})
	m.Events().OnNodeSettled(func(event *domain.NodeSettledEvent) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "node:"+event.NodeID)
	})
	m.Events().OnRunCompleted(func(*domain.RunCompletedEvent) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "completed")
	})

	_, err := m.Execute(context.Background(), simpleDefinition(), RunOptions{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"started", "layer", "layer", "node:a", "node:b", "completed"}, order)
}

func TestManagerFailedRunPublishesRunFailed(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop() }()

	var mu sync.Mutex
	var failedEvent *domain.RunFailedEvent
	m.Events().OnRunFailed(func(event *domain.RunFailedEvent) {
		mu.Lock()
		defer mu.Unlock()
		failedEvent = event
	})

	def := simpleDefinition()
	def.Nodes[0].Config = map[string]interface{}{"fail": true}

	result, err := m.Execute(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, result.Status)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, failedEvent)
	assert.Equal(t, result.RunID, failedEvent.RunID)
}

func TestManagerStartStopLifecycle(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), domain.ErrAlreadyStarted)

	require.NoError(t, m.Stop())
	assert.ErrorIs(t, m.Stop(), domain.ErrNotStarted)
}

func TestManagerCancelUnknownRun(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	err := m.Cancel("ghost")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestManagerPlan(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	plan, err := m.Plan(simpleDefinition())
	require.NoError(t, err)
	assert.Equal(t, 2, plan.LayerCount())
}

func TestManagerValidateSurfacesWarnings(t *testing.T) {
	m := newTestManager(t)
	defer func() { _ = m.store.Close() }()

	def := simpleDefinition()
	def.Nodes = append(def.Nodes, domain.NodeDefinition{ID: "c", Type: "not.registered", Name: "c", Config: map[string]interface{}{}})
	def.Edges = append(def.Edges, domain.EdgeDefinition{ID: "b-c", Source: "b", Target: "c"})

	report := m.Validate(def)
	assert.True(t, report.Valid)
	assert.NotEmpty(t, report.Warnings)
}
