package domain

import (
	"dario.cat/mergo"
)

// MergeMaps merges src into dst with src values winning, recursing into
// nested objects. Both inputs are left untouched; the merged copy is
// returned. This is how output-node objects combine into the final run
// output and how transform set-operations land on their target.
func MergeMaps(dst, src map[string]interface{}) (map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		merged[k] = v
	}
	if err := mergo.Merge(&merged, src, mergo.WithOverride); err != nil {
		return nil, NewWorkflowError("failed to merge maps", err, WithComponent("merge"))
	}
	return merged, nil
}
