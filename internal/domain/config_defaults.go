package domain

import (
	"io"
	"log/slog"
	"time"
)

func DefaultConfig() *Config {
	return &Config{
		Mode:   ModeProduction,
		Logger: slog.Default(),
		Engine: DefaultEngineConfig(),
		Runner: DefaultRunnerConfig(),
		Server: DefaultServerConfig(),
		Events: DefaultEventsConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultNodeTimeout: 5 * time.Minute,
		MaxParallelNodes:   0,
	}
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:     4,
		PollInterval:    100 * time.Millisecond,
		ShutdownTimeout: 30 * time.Second,
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		SubjectPrefix: "strand",
	}
}

func NewConfigFromSimple(dataDir string, logger *slog.Logger) *Config {
	config := DefaultConfig()
	config.DataDir = dataDir
	config.Logger = logger

	if logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return config
}

func (c *Config) WithMode(mode ExecutionMode) *Config {
	c.Mode = mode
	return c
}

func (c *Config) WithInMemory() *Config {
	c.InMemory = true
	return c
}

func (c *Config) WithEngineSettings(defaultNodeTimeout time.Duration, maxParallelNodes int) *Config {
	c.Engine.DefaultNodeTimeout = defaultNodeTimeout
	c.Engine.MaxParallelNodes = maxParallelNodes
	return c
}

func (c *Config) WithDefaultRetry(policy RetryPolicy) *Config {
	c.Engine.DefaultRetry = &policy
	return c
}

func (c *Config) WithRunnerSettings(workerCount int, pollInterval time.Duration) *Config {
	c.Runner.WorkerCount = workerCount
	if pollInterval > 0 {
		c.Runner.PollInterval = pollInterval
	}
	return c
}

func (c *Config) WithServerAddr(addr string) *Config {
	c.Server.Addr = addr
	return c
}

func (c *Config) WithNATS(url string) *Config {
	c.Events.NATSURL = url
	return c
}
