package domain

import (
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	DataDir string        `json:"data_dir" yaml:"data_dir"`
	Mode    ExecutionMode `json:"mode" yaml:"mode"`
	Logger  *slog.Logger  `json:"-" yaml:"-"`

	Engine EngineConfig `json:"engine" yaml:"engine"`
	Runner RunnerConfig `json:"runner" yaml:"runner"`
	Server ServerConfig `json:"server" yaml:"server"`
	Events EventsConfig `json:"events" yaml:"events"`

	// InMemory stores runs and the queue in memory instead of DataDir.
	// Used by tests and short-lived CLI invocations.
	InMemory bool `json:"in_memory" yaml:"in_memory"`
}

type EngineConfig struct {
	DefaultNodeTimeout time.Duration `json:"default_node_timeout" yaml:"default_node_timeout"`
	DefaultRetry       *RetryPolicy  `json:"default_retry,omitempty" yaml:"default_retry,omitempty"`
	MaxParallelNodes   int           `json:"max_parallel_nodes" yaml:"max_parallel_nodes"`
}

type RunnerConfig struct {
	WorkerCount     int           `json:"worker_count" yaml:"worker_count"`
	PollInterval    time.Duration `json:"poll_interval" yaml:"poll_interval"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

type EventsConfig struct {
	NATSURL       string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return NewConfigError("logger", ErrInvalidInput)
	}
	if !c.InMemory && c.DataDir == "" {
		return NewConfigError("data_dir", ErrInvalidInput)
	}
	switch c.Mode {
	case ModeProduction, ModeDemo, ModeTest:
	default:
		return NewConfigError("mode", ErrInvalidInput)
	}
	if c.Engine.MaxParallelNodes < 0 {
		return NewConfigError("engine.max_parallel_nodes", ErrInvalidInput)
	}
	if c.Engine.DefaultRetry != nil {
		if c.Engine.DefaultRetry.MaxRetries < 0 {
			return NewConfigError("engine.default_retry.max_retries", ErrInvalidInput)
		}
		if c.Engine.DefaultRetry.BackoffMultiplier < 1 {
			return NewConfigError("engine.default_retry.backoff_multiplier", ErrInvalidInput)
		}
	}
	if c.Runner.WorkerCount <= 0 {
		return NewConfigError("runner.worker_count", ErrInvalidInput)
	}
	if c.Runner.PollInterval <= 0 {
		return NewConfigError("runner.poll_interval", ErrInvalidInput)
	}
	return nil
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{
		Field: field,
		Err:   err,
	}
}
