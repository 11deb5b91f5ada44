package provider

import (
	"context"

	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
)

// OpenAIClient talks to OpenAI-compatible servers such as LM Studio.
type OpenAIClient struct {
	baseClient
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (c *OpenAIClient) Capabilities() Capabilities {
	return Capabilities{Vision: true, Temperature: true}
}

func (c *OpenAIClient) ImageFormat() images.Format {
	return images.FormatDataURI
}

// Chat posts to <base>/v1/chat/completions.
func (c *OpenAIClient) Chat(ctx context.Context, messages []llm.Message, model string, opts ChatOptions) (llm.Response, error) {
	modelName, err := c.resolveModel(model)
	if err != nil {
		return nil, err
	}

	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	return c.post(ctx, "/v1/chat/completions", openAIChatRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: temperature,
	})
}

// Vision sends the prompt and images as one multimodal user message.
func (c *OpenAIClient) Vision(ctx context.Context, prompt string, imgs []string, model string) (llm.Response, error) {
	parts := make([]llm.ContentPart, 0, len(imgs)+1)
	parts = append(parts, llm.ContentPart{Type: llm.PartInputText, Text: prompt})
	for _, img := range imgs {
		parts = append(parts, llm.ContentPart{Type: llm.PartInputImage, Image: img})
	}

	messages := []llm.Message{{Role: "user", Content: parts}}
	return c.Chat(ctx, messages, model, ChatOptions{})
}
