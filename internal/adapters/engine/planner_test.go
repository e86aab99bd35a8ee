package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/internal/domain"
)

func TestPlannerLayersLinearChain(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{node("a", "t"), node("b", "t"), node("c", "t")},
		Edges: []domain.EdgeDefinition{edge("a", "b"), edge("b", "c")},
	}

	plan, err := NewPlanner(testLogger()).BuildPlan(def)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, plan.Layers)
	assert.Equal(t, []string{"a"}, plan.Dependencies["b"])
	assert.Equal(t, []string{"c"}, plan.Dependents["b"])
}

func TestPlannerLayersDiamond(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			node("start", "t"), node("right", "t"), node("left", "t"), node("join", "t"),
		},
		Edges: []domain.EdgeDefinition{
			edge("start", "left"), edge("start", "right"),
			edge("left", "join"), edge("right", "join"),
		},
	}

	plan, err := NewPlanner(testLogger()).BuildPlan(def)
	require.NoError(t, err)

	// Sibling layers are sorted for deterministic plans.
	assert.Equal(t, [][]string{{"start"}, {"left", "right"}, {"join"}}, plan.Layers)
}

func TestPlannerEveryNodePlannedExactlyOnce(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			node("a", "t"), node("b", "t"), node("c", "t"),
			node("d", "t"), node("e", "t"), node("f", "t"),
			node("island", "t"),
		},
		Edges: []domain.EdgeDefinition{
			edge("a", "c"), edge("b", "c"), edge("c", "d"),
			edge("c", "e"), edge("d", "f"), edge("e", "f"),
		},
	}

	plan, err := NewPlanner(testLogger()).BuildPlan(def)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, layer := range plan.Layers {
		for _, id := range layer {
			seen[id]++
		}
	}
	assert.Len(t, seen, len(def.Nodes))
	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s planned %d times", id, count)
	}
	assert.Equal(t, len(def.Nodes), plan.NodeCount())
}

func TestPlannerParallelEdgesDoNotDoubleCount(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{node("a", "t"), node("b", "t")},
		Edges: []domain.EdgeDefinition{
			{ID: "e1", Source: "a", Target: "b", SourcePort: "ok"},
			{ID: "e2", Source: "a", Target: "b", SourcePort: "raw"},
		},
	}

	plan, err := NewPlanner(testLogger()).BuildPlan(def)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, plan.Layers)
	assert.Equal(t, []string{"a"}, plan.Dependencies["b"])
}

func TestPlannerRejectsCycle(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{node("a", "t"), node("b", "t"), node("c", "t")},
		Edges: []domain.EdgeDefinition{edge("a", "b"), edge("b", "c"), edge("c", "a")},
	}

	plan, err := NewPlanner(testLogger()).BuildPlan(def)
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.Contains(t, err.Error(), "cycle")
}

func TestPlannerRejectsSelfLoop(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{node("a", "t")},
		Edges: []domain.EdgeDefinition{edge("a", "a")},
	}

	_, err := NewPlanner(testLogger()).BuildPlan(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-loop")
}

func TestPlannerRejectsDuplicateNodeIDs(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{node("a", "t"), node("a", "t")},
	}

	_, err := NewPlanner(testLogger()).BuildPlan(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestPlannerEmptyDefinition(t *testing.T) {
	plan, err := NewPlanner(testLogger()).BuildPlan(&domain.WorkflowDefinition{ID: "wf"})
	require.NoError(t, err)
	assert.Zero(t, plan.LayerCount())
	assert.Zero(t, plan.NodeCount())
}
