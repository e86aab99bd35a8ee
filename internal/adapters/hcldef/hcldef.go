// Package hcldef loads workflow definitions written in HCL, as a friendlier
// authoring surface than raw JSON. The decoded document is the same
// domain.WorkflowDefinition either way.
package hcldef

import (
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/strandlabs/strand/internal/domain"
)

type fileRoot struct {
	Workflows []*workflowBlock `hcl:"workflow,block"`
}

type workflowBlock struct {
	ID       string         `hcl:"id,label"`
	Name     string         `hcl:"name,optional"`
	Version  string         `hcl:"version,optional"`
	Metadata *metadataBlock `hcl:"metadata,block"`
	Globals  *globalsBlock  `hcl:"globals,block"`
	Nodes    []*nodeBlock   `hcl:"node,block"`
	Edges    []*edgeBlock   `hcl:"edge,block"`
}

type metadataBlock struct {
	Author    string   `hcl:"author,optional"`
	CreatedAt string   `hcl:"created_at,optional"`
	UpdatedAt string   `hcl:"updated_at,optional"`
	Tags      []string `hcl:"tags,optional"`
}

type globalsBlock struct {
	Timeout          string      `hcl:"timeout,optional"`
	ErrorHandling    string      `hcl:"error_handling,optional"`
	MaxParallelNodes int         `hcl:"max_parallel_nodes,optional"`
	Retry            *retryBlock `hcl:"retry,block"`
}

type retryBlock struct {
	MaxRetries        int     `hcl:"max_retries"`
	InitialDelay      string  `hcl:"initial_delay,optional"`
	BackoffMultiplier float64 `hcl:"backoff_multiplier,optional"`
}

type nodeBlock struct {
	ID      string      `hcl:"id,label"`
	Type    string      `hcl:"type"`
	Name    string      `hcl:"name,optional"`
	Role    string      `hcl:"role,optional"`
	Timeout string      `hcl:"timeout,optional"`
	Retry   *retryBlock `hcl:"retry,block"`
	Config  *cty.Value  `hcl:"config,optional"`
}

type edgeBlock struct {
	ID         string `hcl:"id,optional"`
	Source     string `hcl:"source"`
	Target     string `hcl:"target"`
	SourcePort string `hcl:"source_port,optional"`
	TargetPort string `hcl:"target_port,optional"`
}

// LoadFile parses one .hcl file containing exactly one workflow block.
func LoadFile(path string) (*domain.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewValidationError("failed to read definition file", err,
			domain.WithComponent("hcldef"),
			domain.WithContextDetail("path", path))
	}
	return Load(data, path)
}

// Load parses HCL source. filename only labels diagnostics.
func Load(src []byte, filename string) (*domain.WorkflowDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, domain.NewValidationError("definition is not valid HCL: "+diags.Error(), diags,
			domain.WithComponent("hcldef"),
			domain.WithContextDetail("file", filename))
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, domain.NewValidationError("failed to decode definition: "+diags.Error(), diags,
			domain.WithComponent("hcldef"),
			domain.WithContextDetail("file", filename))
	}

	if len(root.Workflows) != 1 {
		return nil, domain.NewValidationError("definition must contain exactly one workflow block", nil,
			domain.WithComponent("hcldef"),
			domain.WithContextDetail("found", len(root.Workflows)))
	}

	return translateWorkflow(root.Workflows[0])
}

func translateWorkflow(block *workflowBlock) (*domain.WorkflowDefinition, error) {
	def := &domain.WorkflowDefinition{
		ID:      block.ID,
		Name:    block.Name,
		Version: block.Version,
	}
	if def.Name == "" {
		def.Name = block.ID
	}

	if block.Metadata != nil {
		metadata, err := translateMetadata(block.Metadata)
		if err != nil {
			return nil, err
		}
		def.Metadata = metadata
	}
	// HCL files are authoring sources without a stored creation time, so an
	// unset createdAt is stamped at load.
	if def.Metadata.CreatedAt.IsZero() {
		def.Metadata.CreatedAt = time.Now()
	}

	if block.Globals != nil {
		globals, err := translateGlobals(block.Globals)
		if err != nil {
			return nil, err
		}
		def.Globals = globals
	}

	for _, nb := range block.Nodes {
		node, err := translateNode(nb)
		if err != nil {
			return nil, err
		}
		def.Nodes = append(def.Nodes, node)
	}

	for _, eb := range block.Edges {
		id := eb.ID
		if id == "" {
			id = eb.Source + "-" + eb.Target
		}
		def.Edges = append(def.Edges, domain.EdgeDefinition{
			ID:         id,
			Source:     eb.Source,
			Target:     eb.Target,
			SourcePort: eb.SourcePort,
			TargetPort: eb.TargetPort,
		})
	}

	return def, nil
}

func translateMetadata(block *metadataBlock) (domain.Metadata, error) {
	metadata := domain.Metadata{
		Author: block.Author,
		Tags:   block.Tags,
	}

	createdAt, err := parseOptionalTime(block.CreatedAt, "metadata.created_at")
	if err != nil {
		return metadata, err
	}
	metadata.CreatedAt = createdAt

	updatedAt, err := parseOptionalTime(block.UpdatedAt, "metadata.updated_at")
	if err != nil {
		return metadata, err
	}
	metadata.UpdatedAt = updatedAt

	return metadata, nil
}

func translateGlobals(block *globalsBlock) (domain.GlobalPolicy, error) {
	globals := domain.GlobalPolicy{
		ErrorHandling:    domain.FailureStrategy(block.ErrorHandling),
		MaxParallelNodes: block.MaxParallelNodes,
	}

	timeout, err := parseOptionalDuration(block.Timeout, "globals.timeout")
	if err != nil {
		return globals, err
	}
	globals.Timeout = timeout

	if block.Retry != nil {
		retry, err := translateRetry(block.Retry, "globals.retry")
		if err != nil {
			return globals, err
		}
		globals.RetryPolicy = retry
	}
	return globals, nil
}

func translateNode(block *nodeBlock) (domain.NodeDefinition, error) {
	node := domain.NodeDefinition{
		ID:   block.ID,
		Type: block.Type,
		Name: block.Name,
		Role: domain.NodeRole(block.Role),
	}
	if node.Name == "" {
		node.Name = block.ID
	}

	timeout, err := parseOptionalDuration(block.Timeout, "node "+block.ID+" timeout")
	if err != nil {
		return node, err
	}
	node.Timeout = timeout

	if block.Retry != nil {
		retry, err := translateRetry(block.Retry, "node "+block.ID+" retry")
		if err != nil {
			return node, err
		}
		node.Retry = retry
	}

	if block.Config != nil && !block.Config.IsNull() {
		native, err := ctyToNative(*block.Config)
		if err != nil {
			return node, domain.NewValidationError("invalid node config", err,
				domain.WithComponent("hcldef"),
				domain.WithNodeID(block.ID))
		}
		config, ok := native.(map[string]interface{})
		if !ok {
			return node, domain.NewValidationError("node config must be an object", nil,
				domain.WithComponent("hcldef"),
				domain.WithNodeID(block.ID))
		}
		node.Config = config
	}
	if node.Config == nil {
		// Structural validation requires a config object on every node.
		node.Config = map[string]interface{}{}
	}

	return node, nil
}

func translateRetry(block *retryBlock, where string) (*domain.RetryPolicy, error) {
	delay, err := parseOptionalDuration(block.InitialDelay, where+".initial_delay")
	if err != nil {
		return nil, err
	}

	multiplier := block.BackoffMultiplier
	if multiplier == 0 {
		multiplier = 1
	}

	return &domain.RetryPolicy{
		MaxRetries:        block.MaxRetries,
		InitialDelay:      delay,
		BackoffMultiplier: multiplier,
	}, nil
}

func parseOptionalDuration(value, where string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, domain.NewValidationError("invalid duration for "+where, err,
			domain.WithComponent("hcldef"),
			domain.WithContextDetail("value", value))
	}
	return d, nil
}

func parseOptionalTime(value, where string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError("invalid RFC3339 timestamp for "+where, err,
			domain.WithComponent("hcldef"),
			domain.WithContextDetail("value", value))
	}
	return ts, nil
}
