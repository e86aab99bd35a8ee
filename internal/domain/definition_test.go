package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefinition_RoundTrip(t *testing.T) {
	doc := []byte(`{
		"workflowId": "wf-1",
		"name": "csv pipeline",
		"version": "1.0.0",
		"metadata": {"createdAt": "2026-01-10T12:00:00Z", "tags": ["etl"]},
		"globals": {"errorHandling": "continue", "maxParallelNodes": 4},
		"nodes": [
			{"id": "load", "type": "csv.parse", "name": "Load", "role": "input", "config": {"text": "a,b"}},
			{"id": "out", "type": "transform", "name": "Out", "role": "output", "config": {}}
		],
		"edges": [
			{"id": "e1", "source": "load", "target": "out"}
		]
	}`)

	def, err := ParseDefinition(doc)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", def.ID)
	assert.Equal(t, FailureContinue, def.Strategy())
	assert.Equal(t, 4, def.Globals.MaxParallelNodes)
	require.Len(t, def.Nodes, 2)
	assert.Equal(t, RoleInput, def.Nodes[0].Role)

	data, err := def.Marshal()
	require.NoError(t, err)

	again, err := ParseDefinition(data)
	require.NoError(t, err)
	assert.Equal(t, def, again)
}

func TestParseDefinition_Invalid(t *testing.T) {
	_, err := ParseDefinition([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, CategoryValidation, GetErrorCategory(err))
}

func TestWorkflowDefinition_EntryNodes(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []NodeDefinition{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		},
		Edges: []EdgeDefinition{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}

	assert.Equal(t, []string{"a"}, def.EntryNodes())

	def.Nodes[2].Role = RoleInput
	assert.Equal(t, []string{"c"}, def.EntryNodes(), "explicit input role wins over in-degree")
}

func TestWorkflowDefinition_OutputNodes(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []NodeDefinition{{ID: "a"}, {ID: "b"}},
		Edges: []EdgeDefinition{{ID: "e1", Source: "a", Target: "b"}},
	}

	assert.Equal(t, []string{"b"}, def.OutputNodes(), "leaves are outputs when none is flagged")

	def.Nodes[0].Role = RoleOutput
	assert.Equal(t, []string{"a"}, def.OutputNodes())
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, BackoffMultiplier: 2}

	assert.Equal(t, 100*time.Millisecond, policy.Delay(0))
	assert.Equal(t, 200*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(2))
}

func TestCheckValue(t *testing.T) {
	tests := []struct {
		name   string
		value  interface{}
		schema *ValueSchema
		want   bool
	}{
		{"nil schema accepts anything", 42, nil, true},
		{"any accepts anything", "x", &ValueSchema{Type: TypeAny}, true},
		{"string ok", "x", &ValueSchema{Type: TypeString}, true},
		{"string mismatch", 1.0, &ValueSchema{Type: TypeString}, false},
		{"number ok", 1.5, &ValueSchema{Type: TypeNumber}, true},
		{"bool ok", true, &ValueSchema{Type: TypeBoolean}, true},
		{"array ok", []interface{}{1}, &ValueSchema{Type: TypeArray}, true},
		{
			"object with fields ok",
			map[string]interface{}{"rows": 2.0, "name": "r"},
			&ValueSchema{Type: TypeObject, Fields: map[string]ValueType{"rows": TypeNumber}},
			true,
		},
		{
			"object missing field",
			map[string]interface{}{"name": "r"},
			&ValueSchema{Type: TypeObject, Fields: map[string]ValueType{"rows": TypeNumber}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckValue(tt.value, tt.schema))
		})
	}
}

func TestValueSchema_Recognized(t *testing.T) {
	assert.True(t, (*ValueSchema)(nil).Recognized())
	assert.True(t, (&ValueSchema{Type: TypeObject, Fields: map[string]ValueType{"a": TypeString}}).Recognized())
	assert.False(t, (&ValueSchema{Type: "uuid"}).Recognized())
	assert.False(t, (&ValueSchema{Type: TypeObject, Fields: map[string]ValueType{"a": "decimal"}}).Recognized())
}
