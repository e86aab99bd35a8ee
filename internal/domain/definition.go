package domain

import (
	"time"

	json "github.com/strandlabs/strand/internal/xjson"
)

// DefaultPort is the implicit port name used when an edge does not name one.
const DefaultPort = "default"

type NodeRole string

const (
	RoleInput   NodeRole = "input"
	RoleOutput  NodeRole = "output"
	RoleProcess NodeRole = ""
)

type FailureStrategy string

const (
	FailureStop     FailureStrategy = "stop"
	FailureContinue FailureStrategy = "continue"
)

type ExecutionMode string

const (
	ModeProduction ExecutionMode = "production"
	ModeDemo       ExecutionMode = "demo"
	ModeTest       ExecutionMode = "test"
)

// RetryPolicy describes exponential backoff retries for a node.
// Delay for attempt n (zero-based) is InitialDelay * BackoffMultiplier^n.
type RetryPolicy struct {
	MaxRetries        int           `json:"maxRetries"`
	InitialDelay      time.Duration `json:"initialDelay"`
	BackoffMultiplier float64       `json:"backoffMultiplier"`
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffMultiplier
	}
	return time.Duration(delay)
}

type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeObject  ValueType = "object"
	TypeArray   ValueType = "array"
	TypeAny     ValueType = "any"
)

// ValueSchema is the recognized primitive-shape schema the engine can check
// block inputs and outputs against. Fields constrains object members when set.
type ValueSchema struct {
	Type   ValueType            `json:"type"`
	Fields map[string]ValueType `json:"fields,omitempty"`
}

// Recognized reports whether the schema uses only known primitive type names.
func (s *ValueSchema) Recognized() bool {
	if s == nil {
		return true
	}
	if !recognizedType(s.Type) {
		return false
	}
	for _, ft := range s.Fields {
		if !recognizedType(ft) {
			return false
		}
	}
	return true
}

func recognizedType(t ValueType) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeAny:
		return true
	}
	return false
}

// CheckValue reports whether value conforms to schema. A nil schema accepts
// everything; object field types are checked shallowly.
func CheckValue(value interface{}, schema *ValueSchema) bool {
	if schema == nil || schema.Type == TypeAny {
		return true
	}
	switch schema.Type {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		return isNumber(value)
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]interface{})
		return ok
	case TypeObject:
		obj, ok := value.(map[string]interface{})
		if !ok {
			return false
		}
		for field, ft := range schema.Fields {
			fv, present := obj[field]
			if !present {
				return false
			}
			if !CheckValue(fv, &ValueSchema{Type: ft}) {
				return false
			}
		}
		return true
	}
	return false
}

func isNumber(value interface{}) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}

// NodeDefinition is one typed block in a workflow. Config is opaque to the
// engine and handed to the block executor after interpolation.
type NodeDefinition struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Name         string                 `json:"name"`
	Role         NodeRole               `json:"role,omitempty"`
	Config       map[string]interface{} `json:"config"`
	InputSchema  *ValueSchema           `json:"inputSchema,omitempty"`
	OutputSchema *ValueSchema           `json:"outputSchema,omitempty"`
	Timeout      time.Duration          `json:"timeout,omitempty"`
	Retry        *RetryPolicy           `json:"retry,omitempty"`
}

type EdgeDefinition struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	SourcePort string `json:"sourcePort,omitempty"`
	TargetPort string `json:"targetPort,omitempty"`
	Condition  string `json:"condition,omitempty"`
}

type Metadata struct {
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// GlobalPolicy carries the workflow-wide execution policy. The workflow
// timeout is enforced by callers around Execute, not by the orchestrator.
type GlobalPolicy struct {
	Timeout          time.Duration   `json:"timeout,omitempty"`
	RetryPolicy      *RetryPolicy    `json:"retryPolicy,omitempty"`
	ErrorHandling    FailureStrategy `json:"errorHandling,omitempty"`
	MaxParallelNodes int             `json:"maxParallelNodes,omitempty"`
}

// WorkflowDefinition is the versioned, serializable workflow document.
type WorkflowDefinition struct {
	ID       string                 `json:"workflowId"`
	Name     string                 `json:"name"`
	Version  string                 `json:"version"`
	Metadata Metadata               `json:"metadata"`
	Globals  GlobalPolicy           `json:"globals"`
	Nodes    []NodeDefinition       `json:"nodes"`
	Edges    []EdgeDefinition       `json:"edges"`
	Schemas  map[string]ValueSchema `json:"schemas,omitempty"`
}

func (d *WorkflowDefinition) Node(id string) (*NodeDefinition, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

func (d *WorkflowDefinition) IncomingEdges(nodeID string) []EdgeDefinition {
	var edges []EdgeDefinition
	for _, e := range d.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []EdgeDefinition {
	var edges []EdgeDefinition
	for _, e := range d.Edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// EntryNodes returns input-role nodes, or nodes with no incoming edges when
// no node is explicitly flagged.
func (d *WorkflowDefinition) EntryNodes() []string {
	var entries []string
	for _, n := range d.Nodes {
		if n.Role == RoleInput {
			entries = append(entries, n.ID)
		}
	}
	if len(entries) > 0 {
		return entries
	}
	hasIncoming := make(map[string]bool, len(d.Nodes))
	for _, e := range d.Edges {
		hasIncoming[e.Target] = true
	}
	for _, n := range d.Nodes {
		if !hasIncoming[n.ID] {
			entries = append(entries, n.ID)
		}
	}
	return entries
}

// OutputNodes returns output-role nodes, or leaf nodes when none is flagged.
func (d *WorkflowDefinition) OutputNodes() []string {
	var outputs []string
	for _, n := range d.Nodes {
		if n.Role == RoleOutput {
			outputs = append(outputs, n.ID)
		}
	}
	if len(outputs) > 0 {
		return outputs
	}
	hasOutgoing := make(map[string]bool, len(d.Nodes))
	for _, e := range d.Edges {
		hasOutgoing[e.Source] = true
	}
	for _, n := range d.Nodes {
		if !hasOutgoing[n.ID] {
			outputs = append(outputs, n.ID)
		}
	}
	return outputs
}

func (d *WorkflowDefinition) Strategy() FailureStrategy {
	if d.Globals.ErrorHandling == FailureContinue {
		return FailureContinue
	}
	return FailureStop
}

// NodeRetry resolves the effective retry policy for a node, falling back to
// the workflow default.
func (d *WorkflowDefinition) NodeRetry(node *NodeDefinition) *RetryPolicy {
	if node.Retry != nil {
		return node.Retry
	}
	return d.Globals.RetryPolicy
}

func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, NewValidationError("definition is not valid JSON", err, WithComponent("definition"))
	}
	return &def, nil
}

func (d *WorkflowDefinition) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
