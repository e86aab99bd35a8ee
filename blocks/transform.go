package blocks

import (
	"context"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// Transform reshapes an object input: pick keeps only the listed keys, drop
// removes keys, set adds or overwrites entries. Operations apply in that
// order on a copy of the input.
type Transform struct {
	Base
}

func (t *Transform) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	obj, ok := input.(map[string]interface{})
	if !ok {
		if input == nil {
			obj = map[string]interface{}{}
		} else {
			// Non-object inputs are wrapped so set/pick still work.
			obj = map[string]interface{}{"value": input}
		}
	}

	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	if picks, ok := config["pick"].([]interface{}); ok {
		kept := make(map[string]interface{}, len(picks))
		for _, p := range picks {
			key, ok := p.(string)
			if !ok {
				continue
			}
			if value, present := out[key]; present {
				kept[key] = value
			}
		}
		out = kept
	}

	if drops, ok := config["drop"].([]interface{}); ok {
		for _, d := range drops {
			if key, ok := d.(string); ok {
				delete(out, key)
			}
		}
	}

	if sets, ok := config["set"].(map[string]interface{}); ok {
		merged, err := domain.MergeMaps(out, sets)
		if err != nil {
			return domain.FailedResult("transform set failed: " + err.Error())
		}
		out = merged
	}

	return domain.CompletedResult(out)
}
