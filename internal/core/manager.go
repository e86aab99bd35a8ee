package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strandlabs/strand/internal/adapters/engine"
	"github.com/strandlabs/strand/internal/adapters/events"
	"github.com/strandlabs/strand/internal/adapters/queue"
	"github.com/strandlabs/strand/internal/adapters/registry"
	"github.com/strandlabs/strand/internal/adapters/runstore"
	"github.com/strandlabs/strand/internal/adapters/validator"
	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// Manager owns the wired engine: store, queue, event bus, block registry,
// validator, and orchestrator. It is the single entry point the public API
// and the HTTP server drive.
type Manager struct {
	config    *domain.Config
	logger    *slog.Logger
	store     *runstore.Store
	queue     *queue.Queue
	bus       *events.Bus
	publisher *events.Publisher
	registry  *registry.Manager
	validator *validator.Validator
	engine    *engine.Orchestrator
	contexts  *engine.ContextFactory
	runner    *runner

	mu      sync.Mutex
	started bool
	active  map[string]context.CancelFunc
}

// RunOptions parameterizes one execution or submission.
type RunOptions struct {
	RunID     string
	Input     interface{}
	Variables map[string]interface{}
	Secrets   map[string]string
	Mode      domain.ExecutionMode
	Progress  ports.ProgressCallback
}

func NewManager(config *domain.Config) (*Manager, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger

	var store *runstore.Store
	var err error
	if config.InMemory {
		store, err = runstore.OpenInMemory(logger)
	} else {
		store, err = runstore.Open(config.DataDir, logger)
	}
	if err != nil {
		return nil, err
	}

	runQueue, err := queue.New(store.DB(), logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := events.NewBus(logger)
	blockRegistry := registry.NewManager(logger)

	m := &Manager{
		config:    config,
		logger:    logger.With("component", "manager"),
		store:     store,
		queue:     runQueue,
		bus:       bus,
		registry:  blockRegistry,
		validator: validator.New(blockRegistry, logger),
		engine:    engine.NewOrchestrator(config.Engine, blockRegistry, logger),
		contexts:  engine.NewContextFactory(config.Mode, logger),
		active:    make(map[string]context.CancelFunc),
	}
	m.runner = newRunner(m, config.Runner, logger)
	return m, nil
}

// Registry exposes block registration to embedding code.
func (m *Manager) Registry() ports.BlockRegistry {
	return m.registry
}

// Events exposes the lifecycle bus for subscription.
func (m *Manager) Events() ports.EventBus {
	return m.bus
}

// Start brings up the event bus, the optional NATS mirror, and the runner
// workers that drain the submission queue.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return domain.ErrAlreadyStarted
	}

	if err := m.bus.Start(ctx); err != nil {
		return err
	}

	if url := m.config.Events.NATSURL; url != "" {
		publisher, err := events.NewPublisher(url, m.config.Events.SubjectPrefix, m.bus, m.config.Logger)
		if err != nil {
			// The broker is an observer, not a dependency.
			m.logger.Warn("NATS mirror unavailable, continuing without it", "url", url, "error", err)
		} else {
			m.publisher = publisher
		}
	}

	m.runner.start()
	m.started = true
	m.logger.Info("manager started",
		"mode", m.config.Mode,
		"workers", m.config.Runner.WorkerCount,
		"in_memory", m.config.InMemory,
	)
	return nil
}

// Stop drains the runner, cancels active runs, and closes storage.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return domain.ErrNotStarted
	}
	m.started = false
	for _, cancel := range m.active {
		cancel()
	}
	m.mu.Unlock()

	m.runner.stop()
	if m.publisher != nil {
		m.publisher.Close()
		m.publisher = nil
	}
	_ = m.bus.Stop()
	if err := m.queue.Close(); err != nil {
		m.logger.Warn("queue close failed", "error", err)
	}
	err := m.store.Close()
	m.logger.Info("manager stopped")
	return err
}

// Validate runs the full diagnostic pass without executing anything.
func (m *Manager) Validate(def *domain.WorkflowDefinition) *domain.ValidationReport {
	return m.validator.Validate(def)
}

// Plan builds the layered execution plan without running the workflow.
func (m *Manager) Plan(def *domain.WorkflowDefinition) (*domain.ExecutionPlan, error) {
	return m.engine.Plan(def)
}

// Execute validates and runs a workflow synchronously. The workflow-wide
// timeout from globals wraps the caller's context here.
func (m *Manager) Execute(ctx context.Context, def *domain.WorkflowDefinition, opts RunOptions) (*domain.RunResult, error) {
	if err := m.checkDefinition(def); err != nil {
		return nil, err
	}

	record := m.newRecord(def, opts)
	record.Status = domain.RunStatusRunning
	record.StartedAt = time.Now()
	if err := m.store.SaveRun(ctx, record); err != nil {
		return nil, err
	}
	if err := m.store.SaveDefinition(ctx, record.ID, def); err != nil {
		return nil, err
	}

	return m.run(ctx, def, record, opts)
}

// Submit validates and enqueues a workflow for asynchronous execution by the
// runner, returning the run id immediately.
func (m *Manager) Submit(ctx context.Context, def *domain.WorkflowDefinition, opts RunOptions) (string, error) {
	if err := m.checkDefinition(def); err != nil {
		return "", err
	}

	record := m.newRecord(def, opts)
	if err := m.store.SaveRun(ctx, record); err != nil {
		return "", err
	}
	if err := m.store.SaveDefinition(ctx, record.ID, def); err != nil {
		return "", err
	}

	err := m.queue.Enqueue(&domain.RunSubmission{
		RunID:       record.ID,
		Definition:  def,
		Input:       opts.Input,
		Variables:   opts.Variables,
		Secrets:     opts.Secrets,
		Mode:        opts.Mode,
		SubmittedAt: record.SubmittedAt,
	})
	if err != nil {
		return "", err
	}

	m.logger.Debug("run submitted", "run_id", record.ID, "workflow_id", def.ID)
	return record.ID, nil
}

func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.store.GetRun(ctx, runID)
}

func (m *Manager) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	return m.store.ListRuns(ctx, limit)
}

func (m *Manager) ListNodeResults(ctx context.Context, runID string) ([]*domain.NodeResult, error) {
	return m.store.ListNodeResults(ctx, runID)
}

func (m *Manager) GetDefinition(ctx context.Context, runID string) (*domain.WorkflowDefinition, error) {
	return m.store.GetDefinition(ctx, runID)
}

// Cancel interrupts an active asynchronous run. In-flight nodes finish their
// current layer; subsequent layers are refused.
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	cancel, ok := m.active[runID]
	m.mu.Unlock()
	if !ok {
		return domain.NewNotFoundError("active run", runID)
	}
	cancel()
	m.logger.Debug("run cancellation requested", "run_id", runID)
	return nil
}

// checkDefinition gates execution on a clean validation pass. Warnings are
// logged and let through.
func (m *Manager) checkDefinition(def *domain.WorkflowDefinition) error {
	report := m.validator.Validate(def)
	for _, warning := range report.Warnings {
		m.logger.Warn("definition warning",
			"workflow_id", def.ID,
			"category", warning.Category,
			"message", warning.Message,
			"node_id", warning.NodeID,
		)
	}
	if !report.Valid {
		first := report.Errors[0]
		return domain.NewValidationError(first.Message, nil,
			domain.WithComponent("manager"),
			domain.WithWorkflowID(def.ID),
			domain.WithContextDetail("error_count", len(report.Errors)))
	}
	return nil
}

func (m *Manager) newRecord(def *domain.WorkflowDefinition, opts RunOptions) *domain.RunRecord {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	return &domain.RunRecord{
		ID:          runID,
		WorkflowID:  def.ID,
		Status:      domain.RunStatusQueued,
		SubmittedAt: time.Now(),
	}
}

// run executes one workflow against a saved record, publishing lifecycle
// events and persisting the outcome. Both Execute and the runner land here.
func (m *Manager) run(ctx context.Context, def *domain.WorkflowDefinition, record *domain.RunRecord, opts RunOptions) (*domain.RunResult, error) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if def.Globals.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, def.Globals.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	m.trackActive(record.ID, cancel)
	defer m.untrackActive(record.ID)

	plan, err := m.engine.Plan(def)
	if err != nil {
		m.finishRecord(record, nil, err)
		return nil, err
	}

	ectx := m.contexts.New(engine.ContextOptions{
		RunID:     record.ID,
		Mode:      opts.Mode,
		Variables: opts.Variables,
		Secrets:   opts.Secrets,
		Progress:  m.progressRelay(record.ID, def.ID, plan.LayerCount(), opts.Progress),
	})
	defer ectx.Cleanup()

	m.bus.PublishRunStarted(&domain.RunStartedEvent{
		RunID:      record.ID,
		WorkflowID: def.ID,
		StartedAt:  time.Now(),
		NodeCount:  plan.NodeCount(),
		LayerCount: plan.LayerCount(),
	})

	result, err := m.engine.Execute(runCtx, def, ectx, opts.Input)
	if err != nil {
		m.finishRecord(record, nil, err)
		m.bus.PublishRunFailed(&domain.RunFailedEvent{
			RunID:      record.ID,
			WorkflowID: def.ID,
			Error:      err.Error(),
			FailedAt:   time.Now(),
		})
		return nil, err
	}

	m.persistResult(record, result)
	m.publishOutcome(def, result)
	return result, nil
}

func (m *Manager) trackActive(runID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[runID] = cancel
}

func (m *Manager) untrackActive(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, runID)
}

// progressRelay fans layer progress out to the caller's callback and the bus.
func (m *Manager) progressRelay(runID, workflowID string, totalLayers int, callback ports.ProgressCallback) ports.ProgressCallback {
	return func(percent int, event domain.TimelineEvent) {
		m.bus.PublishLayerCompleted(&domain.LayerCompletedEvent{
			RunID:       runID,
			WorkflowID:  workflowID,
			Layer:       event.Layer,
			TotalLayers: totalLayers,
			NodeCount:   event.NodeCount,
			Progress:    percent,
			CompletedAt: event.Timestamp,
		})
		if callback != nil {
			callback(percent, event)
		}
	}
}

func (m *Manager) persistResult(record *domain.RunRecord, result *domain.RunResult) {
	ctx := context.Background()
	for _, nodeResult := range result.NodeResults {
		if err := m.store.SaveNodeResult(ctx, record.ID, nodeResult); err != nil {
			m.logger.Error("failed to persist node result",
				"run_id", record.ID,
				"node_id", nodeResult.NodeID,
				"error", err,
			)
		}
	}

	record.Status = result.Status
	record.StartedAt = result.StartedAt
	record.FinishedAt = result.FinishedAt
	record.Error = result.Error
	record.Result = result
	if err := m.store.SaveRun(ctx, record); err != nil {
		m.logger.Error("failed to persist run record", "run_id", record.ID, "error", err)
	}
}

func (m *Manager) finishRecord(record *domain.RunRecord, result *domain.RunResult, err error) {
	record.Status = domain.RunStatusFailed
	record.FinishedAt = time.Now()
	if err != nil {
		record.Error = err.Error()
	}
	record.Result = result
	if saveErr := m.store.SaveRun(context.Background(), record); saveErr != nil {
		m.logger.Error("failed to persist run record", "run_id", record.ID, "error", saveErr)
	}
}

// publishOutcome emits node settlement events in node-id order, then the
// terminal run event.
func (m *Manager) publishOutcome(def *domain.WorkflowDefinition, result *domain.RunResult) {
	nodeIDs := make([]string, 0, len(result.NodeResults))
	for nodeID := range result.NodeResults {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)
	for _, nodeID := range nodeIDs {
		nodeResult := result.NodeResults[nodeID]
		m.bus.PublishNodeSettled(&domain.NodeSettledEvent{
			RunID:      result.RunID,
			WorkflowID: def.ID,
			NodeID:     nodeID,
			Status:     nodeResult.Status,
			Duration:   nodeResult.Duration,
			RetryCount: nodeResult.RetryCount,
			Error:      nodeResult.Error,
			SettledAt:  nodeResult.FinishedAt,
		})
	}

	switch result.Status {
	case domain.RunStatusCompleted:
		m.bus.PublishRunCompleted(&domain.RunCompletedEvent{
			RunID:      result.RunID,
			WorkflowID: def.ID,
			Output:     result.Output,
			Summary:    result.Summary,
			Duration:   result.Duration,
			FinishedAt: result.FinishedAt,
		})
	default:
		m.bus.PublishRunFailed(&domain.RunFailedEvent{
			RunID:      result.RunID,
			WorkflowID: def.ID,
			Error:      result.Error,
			Duration:   result.Duration,
			FailedAt:   result.FinishedAt,
		})
	}
}
