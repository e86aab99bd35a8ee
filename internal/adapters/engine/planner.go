package engine

import (
	"log/slog"
	"sort"

	"github.com/heimdalr/dag"

	"github.com/strandlabs/strand/internal/domain"
)

// Planner builds the layered execution plan for one run. Plans are computed
// fresh for every run and never cached across definitions.
type Planner struct {
	logger *slog.Logger
}

func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger.With("component", "planner")}
}

// BuildPlan derives dependency sets from the edges and runs Kahn's algorithm
// to pull successive zero-in-degree frontiers into layers. A cycle is a
// fatal runtime error even when the caller bypassed validation.
func (p *Planner) BuildPlan(def *domain.WorkflowDefinition) (*domain.ExecutionPlan, error) {
	graph := dag.NewDAG()

	for i := range def.Nodes {
		node := &def.Nodes[i]
		if err := graph.AddVertexByID(node.ID, node); err != nil {
			return nil, domain.NewWorkflowError("duplicate node id in definition: "+node.ID, err,
				domain.WithComponent("planner"),
				domain.WithWorkflowID(def.ID),
				domain.WithNodeID(node.ID))
		}
	}

	dependencies := make(map[string][]string, len(def.Nodes))
	dependents := make(map[string][]string, len(def.Nodes))
	inDegree := make(map[string]int, len(def.Nodes))
	seen := make(map[[2]string]bool, len(def.Edges))

	for _, n := range def.Nodes {
		inDegree[n.ID] = 0
	}

	for _, edge := range def.Edges {
		if edge.Source == edge.Target {
			return nil, domain.NewWorkflowError("definition contains a self-loop: "+edge.Source, nil,
				domain.WithComponent("planner"),
				domain.WithWorkflowID(def.ID),
				domain.WithNodeID(edge.Source))
		}
		pair := [2]string{edge.Source, edge.Target}
		if seen[pair] {
			// Parallel edges only matter for input gathering, not ordering.
			continue
		}
		seen[pair] = true

		if err := graph.AddEdge(edge.Source, edge.Target); err != nil {
			if _, isLoop := err.(dag.EdgeLoopError); isLoop {
				return nil, domain.NewWorkflowError("cycle detected in definition", err,
					domain.WithComponent("planner"),
					domain.WithWorkflowID(def.ID))
			}
			return nil, domain.NewWorkflowError("invalid edge in definition", err,
				domain.WithComponent("planner"),
				domain.WithWorkflowID(def.ID))
		}

		dependencies[edge.Target] = append(dependencies[edge.Target], edge.Source)
		dependents[edge.Source] = append(dependents[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	var layers [][]string
	frontier := make([]string, 0, len(def.Nodes))
	for id, degree := range inDegree {
		if degree == 0 {
			frontier = append(frontier, id)
		}
	}

	planned := 0
	for len(frontier) > 0 {
		// Layer order is made deterministic so serialized plans and
		// progress events are stable.
		sort.Strings(frontier)
		layer := frontier
		layers = append(layers, layer)
		planned += len(layer)

		frontier = nil
		for _, id := range layer {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					frontier = append(frontier, dependent)
				}
			}
		}
	}

	if planned < len(def.Nodes) {
		return nil, domain.NewWorkflowError("cycle detected in definition: layered node count mismatch", nil,
			domain.WithComponent("planner"),
			domain.WithWorkflowID(def.ID),
			domain.WithContextDetail("planned", planned),
			domain.WithContextDetail("defined", len(def.Nodes)))
	}

	p.logger.Debug("execution plan built",
		"workflow_id", def.ID,
		"nodes", planned,
		"layers", len(layers),
	)

	return &domain.ExecutionPlan{
		Layers:       layers,
		Dependencies: dependencies,
		Dependents:   dependents,
	}, nil
}
