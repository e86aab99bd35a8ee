package api

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/strandlabs/strand/internal/domain"
)

// ConfigFromEnv builds a server config from the environment, loading .env
// first when present. Unset variables keep their defaults.
//
//	STRAND_DATA_DIR        storage directory (default ./strand-data)
//	STRAND_MODE            production | demo | test
//	STRAND_ADDR            http listen address
//	STRAND_WORKERS         runner worker count
//	STRAND_NATS_URL        optional NATS mirror
//	STRAND_SUBJECT_PREFIX  NATS subject prefix
//	STRAND_NODE_TIMEOUT    default per-node timeout, a Go duration
func ConfigFromEnv(logger *slog.Logger) *domain.Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}

	cfg := domain.DefaultConfig()
	cfg.Logger = logger
	cfg.DataDir = envOr("STRAND_DATA_DIR", "./strand-data")

	if mode := os.Getenv("STRAND_MODE"); mode != "" {
		cfg.Mode = domain.ExecutionMode(mode)
	}
	if addr := os.Getenv("STRAND_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if raw := os.Getenv("STRAND_WORKERS"); raw != "" {
		if workers, err := strconv.Atoi(raw); err == nil && workers > 0 {
			cfg.Runner.WorkerCount = workers
		} else {
			logger.Warn("ignoring invalid STRAND_WORKERS", "value", raw)
		}
	}
	if url := os.Getenv("STRAND_NATS_URL"); url != "" {
		cfg.Events.NATSURL = url
	}
	if prefix := os.Getenv("STRAND_SUBJECT_PREFIX"); prefix != "" {
		cfg.Events.SubjectPrefix = prefix
	}
	if raw := os.Getenv("STRAND_NODE_TIMEOUT"); raw != "" {
		if timeout, err := time.ParseDuration(raw); err == nil {
			cfg.Engine.DefaultNodeTimeout = timeout
		} else {
			logger.Warn("ignoring invalid STRAND_NODE_TIMEOUT", "value", raw)
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
