package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// invoker wraps each executor call with the timeout race and the retry loop.
type invoker struct {
	defaultTimeout time.Duration
	logger         *slog.Logger
}

func newInvoker(defaultTimeout time.Duration, logger *slog.Logger) *invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoker{
		defaultTimeout: defaultTimeout,
		logger:         logger.With("component", "invoker"),
	}
}

// invoke runs one node's executor with timeout and retry guarding. The
// returned result always has a terminal status; retries happen inside the
// RUNNING phase and surface only through RetryCount.
func (inv *invoker) invoke(
	ctx context.Context,
	executor ports.BlockExecutor,
	node *domain.NodeDefinition,
	retry *domain.RetryPolicy,
	config map[string]interface{},
	input interface{},
	ectx ports.ExecutionContext,
) domain.NodeResult {
	timeout := inv.defaultTimeout
	if node.Timeout > 0 {
		timeout = node.Timeout
	}

	maxRetries := 0
	if retry != nil {
		maxRetries = retry.MaxRetries
	}

	var result domain.NodeResult
	for attempt := 0; ; attempt++ {
		result = inv.invokeOnce(ctx, executor, node, timeout, config, input, ectx)
		result.RetryCount = attempt

		if result.Status == domain.NodeStatusCompleted || attempt >= maxRetries {
			return result
		}

		delay := retry.Delay(attempt)
		inv.logger.Debug("retrying node after failure",
			"node_id", node.ID,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"delay", delay,
			"error", result.Error,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.Error = "run cancelled during retry backoff: " + result.Error
			return result
		}
	}
}

// invokeOnce races a single executor attempt against the node timeout. A
// timed-out attempt yields a failed result regardless of whether the
// underlying call honors cancellation; the stray goroutine is left to finish
// against the cancelled context.
func (inv *invoker) invokeOnce(
	ctx context.Context,
	executor ports.BlockExecutor,
	node *domain.NodeDefinition,
	timeout time.Duration,
	config map[string]interface{},
	input interface{},
	ectx ports.ExecutionContext,
) domain.NodeResult {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan domain.NodeResult, 1)
	go func() {
		done <- invokeWithRecovery(attemptCtx, executor, config, input, ectx, node.ID, inv.logger)
	}()

	select {
	case result := <-done:
		return result
	case <-attemptCtx.Done():
		// Prefer a result that settled in the same instant over the
		// cancellation signal.
		select {
		case result := <-done:
			return result
		default:
		}
		if ctx.Err() != nil {
			return domain.FailedResult(domain.ErrRunCancelled.Error())
		}
		inv.logger.Debug("node execution timed out",
			"node_id", node.ID,
			"timeout", timeout,
		)
		return domain.FailedResult(
			domain.NewTimeoutError("node execution exceeded timeout", nil,
				domain.WithComponent("invoker"),
				domain.WithNodeID(node.ID),
				domain.WithContextDetail("timeout", timeout.String()),
			).Error())
	}
}
