package domain

import "context"

type contextKey string

const RunInfoKey contextKey = "strand:run_info"

// RunInfo is the execution metadata made available to blocks through the
// context passed to Execute.
type RunInfo struct {
	RunID      string        `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	NodeID     string        `json:"node_id"`
	NodeName   string        `json:"node_name"`
	Mode       ExecutionMode `json:"mode"`
}

func WithRunInfo(ctx context.Context, info *RunInfo) context.Context {
	return context.WithValue(ctx, RunInfoKey, info)
}

func GetRunInfo(ctx context.Context) (*RunInfo, bool) {
	info, ok := ctx.Value(RunInfoKey).(*RunInfo)
	return info, ok
}
