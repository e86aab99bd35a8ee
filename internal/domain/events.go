package domain

import (
	"fmt"
	"runtime"
	"time"
)

type RunStartedEvent struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	StartedAt  time.Time `json:"started_at"`
	NodeCount  int       `json:"node_count"`
	LayerCount int       `json:"layer_count"`
}

type RunCompletedEvent struct {
	RunID      string                 `json:"run_id"`
	WorkflowID string                 `json:"workflow_id"`
	Output     map[string]interface{} `json:"output,omitempty"`
	Summary    RunSummary             `json:"summary"`
	Duration   time.Duration          `json:"duration"`
	FinishedAt time.Time              `json:"finished_at"`
}

type RunFailedEvent struct {
	RunID      string        `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	Error      string        `json:"error"`
	FailedNode string        `json:"failed_node,omitempty"`
	Duration   time.Duration `json:"duration"`
	FailedAt   time.Time     `json:"failed_at"`
}

type LayerCompletedEvent struct {
	RunID       string    `json:"run_id"`
	WorkflowID  string    `json:"workflow_id"`
	Layer       int       `json:"layer"`
	TotalLayers int       `json:"total_layers"`
	NodeCount   int       `json:"node_count"`
	Progress    int       `json:"progress"`
	CompletedAt time.Time `json:"completed_at"`
}

type NodeSettledEvent struct {
	RunID      string        `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	NodeID     string        `json:"node_id"`
	Status     NodeStatus    `json:"status"`
	Duration   time.Duration `json:"duration"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
	SettledAt  time.Time     `json:"settled_at"`
}

// RunPanicError captures a panic recovered during a block execution, with
// the goroutine stack at the recovery point.
type RunPanicError struct {
	RunID      string      `json:"run_id"`
	NodeID     string      `json:"node_id"`
	PanicValue interface{} `json:"panic_value"`
	StackTrace string      `json:"stack_trace"`
	Timestamp  time.Time   `json:"timestamp"`
}

func (e *RunPanicError) Error() string {
	return fmt.Sprintf("block execution panicked: node %s: %v", e.NodeID, e.PanicValue)
}

func NewPanicError(runID, nodeID string, panicValue interface{}) *RunPanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	return &RunPanicError{
		RunID:      runID,
		NodeID:     nodeID,
		PanicValue: panicValue,
		StackTrace: string(buf[:n]),
		Timestamp:  time.Now(),
	}
}
