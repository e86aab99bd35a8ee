package ports

import (
	"context"

	"github.com/strandlabs/strand/internal/domain"
)

// BlockExecutor is the unit of work attached to a node type, and the only
// abstraction external code implements. Execute returns a failed result for
// expected failures instead of panicking; it may be re-invoked for retries
// and must be safe to run concurrently with unrelated node executions
// sharing the same ExecutionContext.
type BlockExecutor interface {
	Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ExecutionContext) domain.NodeResult
	ValidateInput(value interface{}, schema *domain.ValueSchema) bool
	ValidateOutput(value interface{}, schema *domain.ValueSchema) bool
}

// BlockFactory constructs a fresh executor for one node invocation.
type BlockFactory func() BlockExecutor

type BlockMeta struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Version  string `json:"version"`
}

type BlockRegistrationError struct {
	BlockType string
	Reason    string
}

func (e *BlockRegistrationError) Error() string {
	return "block registration failed for " + e.BlockType + ": " + e.Reason
}

// BlockRegistry maps string block-type keys to executor factories.
// CreateExecutor resolves lazily, at the moment a node is about to run;
// resolution failure is that node's failure under the workflow's failure
// policy, not a pre-flight error.
type BlockRegistry interface {
	Register(blockType string, factory BlockFactory, meta BlockMeta) error
	Unregister(blockType string) error
	CreateExecutor(blockType string) (BlockExecutor, error)
	Has(blockType string) bool
	Meta(blockType string) (BlockMeta, bool)
	List() []string
	Count() int
}
