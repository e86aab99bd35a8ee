// Package blocks ships the built-in block executors: data plumbing
// (transform, template, csv.parse, delay), outbound calls (http.request,
// email.send), and model-backed generation (ai.generate).
package blocks

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// Base supplies the shared schema checks so each executor only implements
// Execute.
type Base struct{}

func (Base) ValidateInput(value interface{}, schema *domain.ValueSchema) bool {
	return domain.CheckValue(value, schema)
}

func (Base) ValidateOutput(value interface{}, schema *domain.ValueSchema) bool {
	return domain.CheckValue(value, schema)
}

// Options carries the external services the outbound blocks need. Leaving a
// field unset disables the corresponding block outside demo mode.
type Options struct {
	Model llms.Model
	SMTP  *SMTPOptions
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// RegisterBuiltins wires every built-in block type into the registry.
func RegisterBuiltins(registry ports.BlockRegistry, opts Options) error {
	builtins := []struct {
		blockType string
		factory   ports.BlockFactory
		meta      ports.BlockMeta
	}{
		{"transform", func() ports.BlockExecutor { return &Transform{} },
			ports.BlockMeta{Name: "Transform", Category: "data", Version: "1.0.0"}},
		{"template", func() ports.BlockExecutor { return &Template{} },
			ports.BlockMeta{Name: "Template", Category: "data", Version: "1.0.0"}},
		{"delay", func() ports.BlockExecutor { return &Delay{} },
			ports.BlockMeta{Name: "Delay", Category: "control", Version: "1.0.0"}},
		{"csv.parse", func() ports.BlockExecutor { return &CSVParse{} },
			ports.BlockMeta{Name: "CSV Parse", Category: "data", Version: "1.0.0"}},
		{"http.request", func() ports.BlockExecutor { return NewHTTPRequest() },
			ports.BlockMeta{Name: "HTTP Request", Category: "network", Version: "1.0.0"}},
		{"ai.generate", func() ports.BlockExecutor { return &AIGenerate{model: opts.Model} },
			ports.BlockMeta{Name: "AI Generate", Category: "ai", Version: "1.0.0"}},
		{"email.send", func() ports.BlockExecutor { return &EmailSend{smtp: opts.SMTP} },
			ports.BlockMeta{Name: "Email Send", Category: "messaging", Version: "1.0.0"}},
	}

	for _, b := range builtins {
		if err := registry.Register(b.blockType, b.factory, b.meta); err != nil {
			return err
		}
	}
	return nil
}

func stringOption(config map[string]interface{}, key, fallback string) string {
	if value, ok := config[key].(string); ok {
		return value
	}
	return fallback
}

func boolOption(config map[string]interface{}, key string, fallback bool) bool {
	if value, ok := config[key].(bool); ok {
		return value
	}
	return fallback
}

func requiredString(config map[string]interface{}, key string) (string, error) {
	value, ok := config[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("config %q is required and must be a string", key)
	}
	return value, nil
}
