package strand

import (
	"log/slog"
	"time"

	"github.com/strandlabs/strand/internal/domain"
)

type Config = domain.Config

type EngineConfig = domain.EngineConfig

type RunnerConfig = domain.RunnerConfig

type ServerConfig = domain.ServerConfig

type EventsConfig = domain.EventsConfig

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultEngineConfig() EngineConfig {
	return domain.DefaultEngineConfig()
}

func DefaultRunnerConfig() RunnerConfig {
	return domain.DefaultRunnerConfig()
}

func DefaultServerConfig() ServerConfig {
	return domain.DefaultServerConfig()
}

func DefaultEventsConfig() EventsConfig {
	return domain.DefaultEventsConfig()
}

type ConfigBuilder struct {
	config *Config
}

func NewConfigBuilder(dataDir string) *ConfigBuilder {
	config := DefaultConfig()
	config.DataDir = dataDir
	return &ConfigBuilder{config: config}
}

func (cb *ConfigBuilder) WithMode(mode ExecutionMode) *ConfigBuilder {
	cb.config.WithMode(mode)
	return cb
}

func (cb *ConfigBuilder) WithInMemory() *ConfigBuilder {
	cb.config.WithInMemory()
	return cb
}

func (cb *ConfigBuilder) WithEngineSettings(defaultNodeTimeout time.Duration, maxParallelNodes int) *ConfigBuilder {
	cb.config.WithEngineSettings(defaultNodeTimeout, maxParallelNodes)
	return cb
}

func (cb *ConfigBuilder) WithDefaultRetry(policy RetryPolicy) *ConfigBuilder {
	cb.config.WithDefaultRetry(policy)
	return cb
}

func (cb *ConfigBuilder) WithRunnerSettings(workerCount int, pollInterval time.Duration) *ConfigBuilder {
	cb.config.WithRunnerSettings(workerCount, pollInterval)
	return cb
}

func (cb *ConfigBuilder) WithServerAddr(addr string) *ConfigBuilder {
	cb.config.WithServerAddr(addr)
	return cb
}

func (cb *ConfigBuilder) WithNATS(url string) *ConfigBuilder {
	cb.config.WithNATS(url)
	return cb
}

func (cb *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	cb.config.Logger = logger
	return cb
}

func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}
