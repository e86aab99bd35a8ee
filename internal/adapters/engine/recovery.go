package engine

import (
	"context"
	"log/slog"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// invokeWithRecovery shields one executor attempt: a panicking block yields
// a failed result instead of tearing down the layer's goroutines.
func invokeWithRecovery(
	ctx context.Context,
	executor ports.BlockExecutor,
	config map[string]interface{},
	input interface{},
	ectx ports.ExecutionContext,
	nodeID string,
	logger *slog.Logger,
) (result domain.NodeResult) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := domain.NewPanicError(ectx.RunID(), nodeID, r)
			logger.Error("block execution panicked",
				"run_id", ectx.RunID(),
				"node_id", nodeID,
				"panic_value", r,
				"stack_trace", panicErr.StackTrace,
			)
			result = domain.FailedResult(panicErr.Error())
		}
	}()

	return executor.Execute(ctx, config, input, ectx)
}
