package validator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// costBearingTypes are flagged with a cost warning so operators know a
// definition spends money when it runs.
var costBearingTypes = map[string]bool{
	"ai.generate": true,
	"email.send":  true,
}

// apiTypes should carry batching hints to avoid per-row request storms.
var apiTypes = map[string]bool{
	"http.request": true,
}

// Validator performs structural, node, edge, DAG, and advisory checks over a
// workflow definition. It is pure: the definition is never mutated, every
// finding is collected in one pass, and validation terminates even on
// malformed or cyclic input.
type Validator struct {
	registry ports.BlockRegistry
	logger   *slog.Logger
}

// New builds a validator. registry may be nil; block types then only get
// structural checks and no unknown-type warnings.
func New(registry ports.BlockRegistry, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		registry: registry,
		logger:   logger.With("component", "validator"),
	}
}

func (v *Validator) Validate(def *domain.WorkflowDefinition) *domain.ValidationReport {
	report := &domain.ValidationReport{Valid: true}

	if def == nil {
		report.AddError(domain.ValidationSchema, "definition is nil")
		return report
	}

	v.checkStructure(def, report)
	v.checkNodes(def, report)
	v.checkEdges(def, report)
	v.checkDAG(def, report)
	v.checkAdvisory(def, report)

	v.logger.Debug("validation finished",
		"workflow_id", def.ID,
		"valid", report.Valid,
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
	)
	return report
}

func (v *Validator) checkStructure(def *domain.WorkflowDefinition, report *domain.ValidationReport) {
	if def.ID == "" {
		report.AddError(domain.ValidationSchema, "workflowId is required")
	}
	if def.Name == "" {
		report.AddError(domain.ValidationSchema, "name is required")
	}
	if def.Version == "" {
		report.AddError(domain.ValidationSchema, "version is required")
	}
	if len(def.Nodes) == 0 {
		report.AddError(domain.ValidationSchema, "nodes is required and must not be empty")
	}
	if def.Metadata.CreatedAt.IsZero() {
		report.AddError(domain.ValidationSchema, "metadata.createdAt is required")
	}

	if policy := def.Globals.RetryPolicy; policy != nil {
		if policy.MaxRetries < 0 {
			report.AddError(domain.ValidationConfig, "globals retryPolicy maxRetries must be >= 0")
		}
		if policy.BackoffMultiplier < 1 {
			report.AddError(domain.ValidationConfig, "globals retryPolicy backoffMultiplier must be >= 1")
		}
	}
}

func (v *Validator) checkNodes(def *domain.WorkflowDefinition, report *domain.ValidationReport) {
	seen := make(map[string]bool, len(def.Nodes))

	for i := range def.Nodes {
		node := &def.Nodes[i]

		if node.ID == "" {
			report.AddError(domain.ValidationSchema, fmt.Sprintf("node at index %d has no id", i))
			continue
		}
		if seen[node.ID] {
			err := report.AddError(domain.ValidationSchema, "duplicate node id: "+node.ID)
			err.NodeID = node.ID
		}
		seen[node.ID] = true

		if node.Type == "" {
			err := report.AddError(domain.ValidationSchema, "node has empty type: "+node.ID)
			err.NodeID = node.ID
		}
		if node.Name == "" {
			err := report.AddError(domain.ValidationSchema, "node has empty name: "+node.ID)
			err.NodeID = node.ID
		}
		if node.Config == nil {
			err := report.AddError(domain.ValidationConfig, "node has no config object: "+node.ID)
			err.NodeID = node.ID
		}

		if !node.InputSchema.Recognized() {
			err := report.AddError(domain.ValidationSchema, "node input schema uses unrecognized types: "+node.ID)
			err.NodeID = node.ID
			err.Path = []string{"inputSchema"}
		}
		if !node.OutputSchema.Recognized() {
			err := report.AddError(domain.ValidationSchema, "node output schema uses unrecognized types: "+node.ID)
			err.NodeID = node.ID
			err.Path = []string{"outputSchema"}
		}

		if node.Retry != nil {
			if node.Retry.MaxRetries < 0 {
				err := report.AddError(domain.ValidationConfig, "retry maxRetries must be >= 0: "+node.ID)
				err.NodeID = node.ID
			}
			if node.Retry.BackoffMultiplier < 1 {
				err := report.AddError(domain.ValidationConfig, "retry backoffMultiplier must be >= 1: "+node.ID)
				err.NodeID = node.ID
			}
		}

		// Unknown block types warn rather than fail: registration may
		// happen after validation and before execution.
		if v.registry != nil && node.Type != "" && !v.registry.Has(node.Type) {
			warn := report.AddWarning(domain.WarningBestPractice, "block type not registered: "+node.Type)
			warn.NodeID = node.ID
		}
	}
}

func (v *Validator) checkEdges(def *domain.WorkflowDefinition, report *domain.ValidationReport) {
	nodeIDs := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		nodeIDs[n.ID] = true
	}

	seenPorts := make(map[string]bool, len(def.Edges))

	for _, edge := range def.Edges {
		if !nodeIDs[edge.Source] {
			err := report.AddError(domain.ValidationConnection,
				fmt.Sprintf("edge %s references unknown source node: %s", edge.ID, edge.Source))
			err.EdgeID = edge.ID
		}
		if !nodeIDs[edge.Target] {
			err := report.AddError(domain.ValidationConnection,
				fmt.Sprintf("edge %s references unknown target node: %s", edge.ID, edge.Target))
			err.EdgeID = edge.ID
		}
		if edge.Source != "" && edge.Source == edge.Target {
			err := report.AddError(domain.ValidationConnection,
				"edge is a self-loop: "+edge.Source)
			err.EdgeID = edge.ID
		}

		// Two edges into the same target with the same source port would
		// collide at a merge point.
		portKey := edge.Target + "\x00" + edge.SourcePort
		if edge.SourcePort != "" && seenPorts[portKey] {
			err := report.AddError(domain.ValidationConnection,
				fmt.Sprintf("duplicate source port %q on edges into node %s", edge.SourcePort, edge.Target))
			err.EdgeID = edge.ID
		}
		seenPorts[portKey] = true
	}
}

func (v *Validator) checkDAG(def *domain.WorkflowDefinition, report *domain.ValidationReport) {
	adjacency := make(map[string][]string, len(def.Nodes))
	nodeIDs := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, e := range def.Edges {
		if nodeIDs[e.Source] && nodeIDs[e.Target] && e.Source != e.Target {
			adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		}
	}

	for _, cycle := range findCycles(def, adjacency) {
		report.AddError(domain.ValidationDAG, "cycle detected: "+strings.Join(cycle, " -> "))
	}

	reachable := make(map[string]bool, len(def.Nodes))
	frontier := def.EntryNodes()
	for _, id := range frontier {
		reachable[id] = true
	}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, child := range adjacency[next] {
			if !reachable[child] {
				reachable[child] = true
				frontier = append(frontier, child)
			}
		}
	}

	for _, n := range def.Nodes {
		if !reachable[n.ID] {
			// An unreachable node can never execute, so this is an error.
			err := report.AddError(domain.ValidationDAG, "node is unreachable from any entry node: "+n.ID)
			err.NodeID = n.ID
		}
	}
}

// findCycles runs a depth-first search with an explicit recursion stack and
// reports each discovered cycle with its full node path.
func findCycles(def *domain.WorkflowDefinition, adjacency map[string][]string) [][]string {
	const (
		white = 0
		grey  = 1
		black = 2
	)

	color := make(map[string]int, len(def.Nodes))
	var stack []string
	onStack := make(map[string]int)
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		onStack[id] = len(stack)
		stack = append(stack, id)

		for _, child := range adjacency[id] {
			switch color[child] {
			case white:
				visit(child)
			case grey:
				start := onStack[child]
				cycle := make([]string, 0, len(stack)-start+1)
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, child)
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
		color[id] = black
	}

	for _, n := range def.Nodes {
		if color[n.ID] == white {
			visit(n.ID)
		}
	}
	return cycles
}

func (v *Validator) checkAdvisory(def *domain.WorkflowDefinition, report *domain.ValidationReport) {
	inputs := 0
	outputs := 0
	for _, n := range def.Nodes {
		if n.Role == domain.RoleInput {
			inputs++
		}
		if n.Role == domain.RoleOutput {
			outputs++
		}

		if costBearingTypes[n.Type] {
			warn := report.AddWarning(domain.WarningCost, "node uses a cost-bearing block type: "+n.Type)
			warn.NodeID = n.ID
		}
		if apiTypes[n.Type] {
			if _, ok := n.Config["batchSize"]; !ok {
				warn := report.AddWarning(domain.WarningPerformance,
					"API block without batching hint (batchSize): "+n.ID)
				warn.NodeID = n.ID
			}
		}
	}

	if inputs == 0 {
		report.AddWarning(domain.WarningBestPractice, "no node is designated as input")
	}
	if inputs > 1 {
		report.AddWarning(domain.WarningBestPractice, "multiple nodes are designated as input")
	}
	if outputs == 0 {
		report.AddWarning(domain.WarningBestPractice, "no node is designated as output")
	}

	if len(def.Edges) == 0 && len(def.Nodes) > 1 {
		report.AddWarning(domain.WarningBestPractice,
			"definition has no edges; all nodes will run in one parallel layer")
	}

	if def.Globals.Timeout == 0 {
		report.AddWarning(domain.WarningBestPractice, "no global timeout configured")
	}
	if def.Globals.RetryPolicy == nil {
		report.AddWarning(domain.WarningBestPractice, "no default retry policy configured")
	}
}
