package blocks

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// AIGenerate sends a prompt to the configured language model and returns the
// generated text. Demo mode returns a canned completion so workflows can be
// exercised without a model behind them.
type AIGenerate struct {
	Base
	model llms.Model
}

func (a *AIGenerate) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	prompt, err := requiredString(config, "prompt")
	if err != nil {
		return domain.FailedResult(err.Error())
	}

	if ectx.Mode() == domain.ModeDemo {
		return domain.CompletedResult(map[string]interface{}{
			"text": "[demo] generated response for prompt: " + prompt,
		})
	}

	if a.model == nil {
		return domain.FailedResult("ai.generate requires a configured model")
	}

	var opts []llms.CallOption
	if temperature, ok := config["temperature"].(float64); ok {
		opts = append(opts, llms.WithTemperature(temperature))
	}
	if maxTokens, ok := config["maxTokens"].(float64); ok {
		opts = append(opts, llms.WithMaxTokens(int(maxTokens)))
	}

	messages := []llms.MessageContent{}
	if system := stringOption(config, "system", ""); system != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, prompt))

	response, err := a.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return domain.FailedResult("generation failed: " + err.Error())
	}
	if len(response.Choices) == 0 {
		return domain.FailedResult("model returned no choices")
	}

	return domain.CompletedResult(map[string]interface{}{
		"text": response.Choices[0].Content,
	})
}
