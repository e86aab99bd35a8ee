package blocks

import (
	"context"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// Template emits its config content as output. Because node config is
// interpolated before execution, the content has already had every
// {{...}} reference substituted; the block's job is just to surface it.
type Template struct {
	Base
}

func (t *Template) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	content, present := config["content"]
	if !present {
		return domain.FailedResult(`config "content" is required`)
	}
	return domain.CompletedResult(map[string]interface{}{"content": content})
}
