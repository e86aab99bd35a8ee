package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/strandlabs/strand/internal/domain"
)

// runner is the worker pool draining the submission queue. Each worker polls,
// claims one submission, and executes it through the manager.
type runner struct {
	manager *Manager
	config  domain.RunnerConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRunner(manager *Manager, config domain.RunnerConfig, logger *slog.Logger) *runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &runner{
		manager: manager,
		config:  config,
		logger:  logger.With("component", "runner"),
	}
}

func (r *runner) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.logger.Debug("runner started", "workers", r.config.WorkerCount)
}

// stop cancels the workers and waits up to the shutdown timeout for in-flight
// runs to settle.
func (r *runner) stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Debug("runner stopped")
	case <-time.After(r.config.ShutdownTimeout):
		r.logger.Warn("runner shutdown timed out with runs still in flight",
			"timeout", r.config.ShutdownTimeout,
		)
	}
}

func (r *runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	logger := r.logger.With("worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sub, ok, err := r.manager.queue.Dequeue()
		if err != nil {
			logger.Error("dequeue failed", "error", err)
			ok = false
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.config.PollInterval):
			}
			continue
		}

		r.execute(ctx, sub, logger)
	}
}

func (r *runner) execute(ctx context.Context, sub *domain.RunSubmission, logger *slog.Logger) {
	record, err := r.manager.GetRun(ctx, sub.RunID)
	if err != nil {
		// The record was deleted after submission; nothing to update.
		logger.Warn("submission without a record, skipping", "run_id", sub.RunID, "error", err)
		return
	}

	record.Status = domain.RunStatusRunning
	record.StartedAt = time.Now()
	if err := r.manager.store.SaveRun(ctx, record); err != nil {
		logger.Error("failed to mark run running", "run_id", sub.RunID, "error", err)
	}

	logger.Debug("executing submission", "run_id", sub.RunID, "workflow_id", sub.Definition.ID)

	_, err = r.manager.run(ctx, sub.Definition, record, RunOptions{
		RunID:     sub.RunID,
		Input:     sub.Input,
		Variables: sub.Variables,
		Secrets:   sub.Secrets,
		Mode:      sub.Mode,
	})
	if err != nil {
		logger.Error("run failed before execution", "run_id", sub.RunID, "error", err)
	}
}
