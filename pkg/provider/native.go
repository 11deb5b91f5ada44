package provider

import (
	"context"

	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
)

// NativeClient talks to native chat servers such as Ollama.
type NativeClient struct {
	baseClient
}

// nativeChatRequest is a non-streaming /api/chat request.
type nativeChatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

func (c *NativeClient) Capabilities() Capabilities {
	return Capabilities{Vision: true}
}

func (c *NativeClient) ImageFormat() images.Format {
	return images.FormatRawBase64
}

// Chat posts to <base>/api/chat with streaming disabled. Temperature is not
// forwarded.
func (c *NativeClient) Chat(ctx context.Context, messages []llm.Message, model string, _ ChatOptions) (llm.Response, error) {
	modelName, err := c.resolveModel(model)
	if err != nil {
		return nil, err
	}

	return c.post(ctx, "/api/chat", nativeChatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   false,
	})
}

// Vision sends one user message with the prompt as content and the images,
// if any, in the images field.
func (c *NativeClient) Vision(ctx context.Context, prompt string, imgs []string, model string) (llm.Response, error) {
	msg := llm.Message{Role: "user", Content: prompt}
	if len(imgs) > 0 {
		msg.Images = imgs
	}
	return c.Chat(ctx, []llm.Message{msg}, model, ChatOptions{})
}
