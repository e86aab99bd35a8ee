package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// ContextOptions configures one execution context. Zero values are filled
// with sane defaults by the factory.
type ContextOptions struct {
	RunID     string
	Mode      domain.ExecutionMode
	Variables map[string]interface{}
	Secrets   map[string]string
	Logger    *slog.Logger
	Progress  ports.ProgressCallback
}

// ContextFactory creates execution contexts with a fresh execution id per
// run.
type ContextFactory struct {
	logger *slog.Logger
	mode   domain.ExecutionMode
}

func NewContextFactory(mode domain.ExecutionMode, logger *slog.Logger) *ContextFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextFactory{logger: logger, mode: mode}
}

func (f *ContextFactory) New(opts ContextOptions) ports.ExecutionContext {
	if opts.Mode == "" {
		opts.Mode = f.mode
	}
	if opts.Logger == nil {
		opts.Logger = f.logger
	}
	return NewExecutionContext(opts)
}

type executionContext struct {
	runID    string
	mode     domain.ExecutionMode
	logger   *slog.Logger
	progress ports.ProgressCallback
	started  time.Time

	mu        sync.RWMutex
	variables map[string]interface{}
	secrets   map[string]string
	results   map[string]*domain.NodeResult
	metadata  map[string]interface{}

	cleanupOnce sync.Once
}

// NewExecutionContext builds the per-run state container. Variables and
// secrets are copied so the caller's maps are never aliased.
func NewExecutionContext(opts ContextOptions) ports.ExecutionContext {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.ModeProduction
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	variables := make(map[string]interface{}, len(opts.Variables))
	for k, v := range opts.Variables {
		variables[k] = v
	}
	secrets := make(map[string]string, len(opts.Secrets))
	for k, v := range opts.Secrets {
		secrets[k] = v
	}

	return &executionContext{
		runID:     runID,
		mode:      mode,
		logger:    logger.With("component", "execution-context", "run_id", runID),
		progress:  opts.Progress,
		started:   time.Now(),
		variables: variables,
		secrets:   secrets,
		results:   make(map[string]*domain.NodeResult),
		metadata:  make(map[string]interface{}),
	}
}

func (c *executionContext) RunID() string {
	return c.runID
}

func (c *executionContext) Mode() domain.ExecutionMode {
	return c.mode
}

func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

func (c *executionContext) SetVariable(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
}

func (c *executionContext) GetVariable(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.variables[key]
	return value, ok
}

func (c *executionContext) Variables() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

func (c *executionContext) Secret(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.secrets[key]
	return value, ok
}

func (c *executionContext) SetNodeResult(nodeID string, result *domain.NodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[nodeID] = result
}

func (c *executionContext) GetNodeResult(nodeID string) (*domain.NodeResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[nodeID]
	return result, ok
}

func (c *executionContext) AllNodeResults() map[string]*domain.NodeResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*domain.NodeResult, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

func (c *executionContext) SetMetadata(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

func (c *executionContext) Metadata() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

func (c *executionContext) Elapsed() time.Duration {
	return time.Since(c.started)
}

func (c *executionContext) EmitProgress(percent int, event domain.TimelineEvent) {
	if c.progress != nil {
		c.progress(percent, event)
	}
}

func (c *executionContext) Child() ports.ExecutionContext {
	c.mu.RLock()
	variables := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		variables[k] = v
	}
	secrets := make(map[string]string, len(c.secrets))
	for k, v := range c.secrets {
		secrets[k] = v
	}
	c.mu.RUnlock()

	return NewExecutionContext(ContextOptions{
		Mode:      c.mode,
		Variables: variables,
		Secrets:   secrets,
		Logger:    c.logger,
	})
}

func (c *executionContext) Cleanup() {
	c.cleanupOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.results = make(map[string]*domain.NodeResult)
		c.variables = make(map[string]interface{})
		c.secrets = make(map[string]string)
		c.metadata = make(map[string]interface{})
		c.logger.Debug("execution context cleaned up")
	})
}
