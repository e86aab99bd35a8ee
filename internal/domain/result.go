package domain

import "time"

type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// NodeResult is the single result slot a node owns for one run. Retries
// overwrite it; the engine never appends a second entry for the same node.
type NodeResult struct {
	NodeID     string        `json:"nodeId"`
	Status     NodeStatus    `json:"status"`
	Input      interface{}   `json:"input,omitempty"`
	Output     interface{}   `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	SkipReason string        `json:"skipReason,omitempty"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	RetryCount int           `json:"retryCount"`
}

func CompletedResult(output interface{}) NodeResult {
	return NodeResult{Status: NodeStatusCompleted, Output: output}
}

func FailedResult(message string) NodeResult {
	return NodeResult{Status: NodeStatusFailed, Error: message}
}

func SkippedResult(reason string) NodeResult {
	return NodeResult{Status: NodeStatusSkipped, SkipReason: reason}
}

// TimelineEvent is a structured progress record emitted at layer boundaries.
type TimelineEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Name      string                 `json:"eventName"`
	Layer     int                    `json:"layer"`
	NodeCount int                    `json:"nodeCount"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type RunSummary struct {
	TotalNodes int `json:"totalNodes"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// RunResult aggregates one workflow execution: final status, combined output
// of the output nodes, every produced node result, and the layer timeline.
type RunResult struct {
	RunID       string                 `json:"runId"`
	WorkflowID  string                 `json:"workflowId"`
	Status      RunStatus              `json:"status"`
	Output      map[string]interface{} `json:"output,omitempty"`
	NodeResults map[string]*NodeResult `json:"nodeResults"`
	Timeline    []TimelineEvent        `json:"timeline,omitempty"`
	Summary     RunSummary             `json:"summary"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"startedAt"`
	FinishedAt  time.Time              `json:"finishedAt"`
	Duration    time.Duration          `json:"duration"`
}

// RunRecord is the persisted envelope for a submitted or finished run.
type RunRecord struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflowId"`
	Status      RunStatus  `json:"status"`
	SubmittedAt time.Time  `json:"submittedAt"`
	StartedAt   time.Time  `json:"startedAt,omitempty"`
	FinishedAt  time.Time  `json:"finishedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *RunResult `json:"result,omitempty"`
}

// RunSubmission is what the queue carries for asynchronous execution.
type RunSubmission struct {
	RunID       string                 `json:"runId"`
	Definition  *WorkflowDefinition    `json:"definition"`
	Input       interface{}            `json:"input,omitempty"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
	Secrets     map[string]string      `json:"secrets,omitempty"`
	Mode        ExecutionMode          `json:"mode,omitempty"`
	SubmittedAt time.Time              `json:"submittedAt"`
}
