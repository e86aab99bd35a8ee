package engine

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

var templatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

// Scope is what {{path.to.value}} references resolve against at the moment a
// node's config is handed to its executor.
type Scope struct {
	Input   interface{}
	Context ports.ExecutionContext
}

// InterpolateConfig runs the deterministic substitution pass over a node's
// config. The input map is never mutated; a substituted copy is returned.
// Unresolved references are left as literal text.
func InterpolateConfig(config map[string]interface{}, scope Scope) map[string]interface{} {
	if config == nil {
		return nil
	}
	out := make(map[string]interface{}, len(config))
	for k, v := range config {
		out[k] = interpolateValue(v, scope)
	}
	return out
}

func interpolateValue(value interface{}, scope Scope) interface{} {
	switch v := value.(type) {
	case string:
		return interpolateString(v, scope)
	case map[string]interface{}:
		return InterpolateConfig(v, scope)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = interpolateValue(item, scope)
		}
		return out
	default:
		return value
	}
}

// interpolateString substitutes {{...}} references. A template that is
// exactly one expression yields the raw resolved value, preserving its type;
// mixed text renders every resolved reference through string formatting.
func interpolateString(template string, scope Scope) interface{} {
	matches := templatePattern.FindStringSubmatch(template)
	if matches != nil && matches[0] == strings.TrimSpace(template) {
		if resolved, ok := resolvePath(matches[1], scope); ok {
			return resolved
		}
		return template
	}

	return templatePattern.ReplaceAllStringFunc(template, func(ref string) string {
		path := templatePattern.FindStringSubmatch(ref)[1]
		if resolved, ok := resolvePath(path, scope); ok {
			return fmt.Sprintf("%v", resolved)
		}
		return ref
	})
}

// resolvePath looks up a dotted path in one of the explicit scopes:
// input.*, variables.*, secrets.*, nodes.<id>.output.*, env.*.
func resolvePath(path string, scope Scope) (interface{}, bool) {
	parts := strings.Split(path, ".")
	head, rest := parts[0], parts[1:]

	switch head {
	case "input":
		return walkPath(scope.Input, rest)
	case "variables":
		if len(rest) == 0 || scope.Context == nil {
			return nil, false
		}
		value, ok := scope.Context.GetVariable(rest[0])
		if !ok {
			return nil, false
		}
		return walkPath(value, rest[1:])
	case "secrets":
		if len(rest) != 1 || scope.Context == nil {
			return nil, false
		}
		return lookupSecret(scope.Context, rest[0])
	case "nodes":
		return resolveNodePath(rest, scope)
	case "env":
		if len(rest) != 1 {
			return nil, false
		}
		value, ok := os.LookupEnv(rest[0])
		if !ok {
			return nil, false
		}
		return value, true
	default:
		return nil, false
	}
}

func lookupSecret(ectx ports.ExecutionContext, key string) (interface{}, bool) {
	value, ok := ectx.Secret(key)
	if !ok {
		return nil, false
	}
	return value, true
}

// resolveNodePath handles nodes.<id>.output[.field...].
func resolveNodePath(parts []string, scope Scope) (interface{}, bool) {
	if len(parts) < 2 || scope.Context == nil {
		return nil, false
	}
	nodeID, field := parts[0], parts[1]
	if field != "output" {
		return nil, false
	}
	result, ok := scope.Context.GetNodeResult(nodeID)
	if !ok || result.Status != domain.NodeStatusCompleted {
		return nil, false
	}
	return walkPath(result.Output, parts[2:])
}

func walkPath(value interface{}, parts []string) (interface{}, bool) {
	current := value
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
