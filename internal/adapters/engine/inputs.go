package engine

import (
	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// nodeInput is the resolved input for one node invocation. Available is
// false when a predecessor failed or was skipped and no usable value exists.
type nodeInput struct {
	Value     interface{}
	Available bool
	Reason    string
}

// gatherInput resolves a node's input from its predecessors: zero incoming
// edges use the workflow input, one edge passes the predecessor's output
// unmodified, and a merge point builds an object keyed by each edge's source
// port (the source node id when no port is named).
func gatherInput(def *domain.WorkflowDefinition, nodeID string, ectx ports.ExecutionContext, workflowInput interface{}) nodeInput {
	incoming := def.IncomingEdges(nodeID)

	if len(incoming) == 0 {
		return nodeInput{Value: workflowInput, Available: true}
	}

	if len(incoming) == 1 {
		edge := incoming[0]
		result, ok := ectx.GetNodeResult(edge.Source)
		if !ok || result.Status != domain.NodeStatusCompleted {
			return nodeInput{Reason: "predecessor did not complete: " + edge.Source}
		}
		return nodeInput{Value: result.Output, Available: true}
	}

	merged := make(map[string]interface{}, len(incoming))
	settled := 0
	for _, edge := range incoming {
		result, ok := ectx.GetNodeResult(edge.Source)
		if !ok || result.Status != domain.NodeStatusCompleted {
			continue
		}
		key := edge.SourcePort
		if key == "" {
			key = edge.Source
		}
		merged[key] = result.Output
		settled++
	}

	if settled == 0 {
		return nodeInput{Reason: "no predecessor completed"}
	}
	return nodeInput{Value: merged, Available: true}
}
