// Package dispatch resolves which provider serves a request, validates the
// request, prepares images for the provider's wire format and wraps the
// provider response in the bridge's uniform envelope.
package dispatch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/pkg/config"
	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
	"github.com/papercomputeco/mcpbridge/pkg/provider"
)

// DefaultPrompt is used for vision requests that carry no prompt.
const DefaultPrompt = "Describe the image"

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Provider    string        `json:"provider,omitempty"`
	Messages    []llm.Message `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// VisionRequest is the body of an analyze or batch call.
type VisionRequest struct {
	Provider string         `json:"provider,omitempty"`
	Prompt   string         `json:"prompt,omitempty"`
	Images   []images.Entry `json:"images"`
	Model    string         `json:"model,omitempty"`
}

// Result is the envelope for chat and analyze calls.
type Result struct {
	Provider string       `json:"provider"`
	Response llm.Response `json:"response"`
}

// BatchItem pairs one requested image with its provider response.
type BatchItem struct {
	Image    images.Entry `json:"image"`
	Response llm.Response `json:"response"`
}

// BatchResult is the envelope for batch calls. Results follow input order.
type BatchResult struct {
	Provider string      `json:"provider"`
	Results  []BatchItem `json:"results"`
}

// Dispatcher is shared by all requests and never mutated after New.
type Dispatcher struct {
	config  config.ServerConfig
	clients map[string]provider.Client

	// vision holds the subset of clients that accept images.
	vision map[string]provider.VisionClient

	logger *zap.Logger
}

// New creates a Dispatcher over already constructed clients. Client names are
// matched case-insensitively.
func New(cfg config.ServerConfig, clients map[string]provider.Client, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		config:  cfg,
		clients: make(map[string]provider.Client, len(clients)),
		vision:  make(map[string]provider.VisionClient),
		logger:  logger,
	}
	for name, c := range clients {
		name = strings.ToLower(name)
		d.clients[name] = c
		if vc, ok := c.(provider.VisionClient); ok && c.Capabilities().Vision {
			d.vision[name] = vc
		}
	}
	return d
}

// NewFromConfig builds one client per configured provider and a Dispatcher over them.
func NewFromConfig(cfg config.ServerConfig, logger *zap.Logger) (*Dispatcher, error) {
	clients, err := provider.NewAll(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, clients, logger), nil
}

// Config returns the configuration the Dispatcher was built with.
func (d *Dispatcher) Config() config.ServerConfig {
	return d.config
}

// Resolve returns the provider for a requested name, or the default provider
// when name is empty.
func (d *Dispatcher) Resolve(name string) (string, provider.Client, error) {
	if name == "" {
		name = d.config.DefaultProvider
	}
	name = strings.ToLower(name)

	client, ok := d.clients[name]
	if !ok {
		return "", nil, llm.NewValidationError("Unsupported provider '%s'.", name)
	}
	return name, client, nil
}

// Chat relays a conversation to the resolved provider.
func (d *Dispatcher) Chat(ctx context.Context, req ChatRequest) (*Result, error) {
	name, client, err := d.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, llm.NewValidationError("'messages' must be a non-empty list.")
	}

	var opts provider.ChatOptions
	if client.Capabilities().Temperature {
		opts.Temperature = req.Temperature
	}

	d.logger.Debug("dispatching chat request",
		zap.String("provider", name),
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
	)

	resp, err := client.Chat(ctx, req.Messages, req.Model, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Provider: name, Response: resp}, nil
}

// Vision sends every image of the request to the resolved provider in one call.
func (d *Dispatcher) Vision(ctx context.Context, req VisionRequest) (*Result, error) {
	name, client, prompt, err := d.resolveVision(req, "vision analysis")
	if err != nil {
		return nil, err
	}

	prepared, err := images.Prepare(req.Images, client.ImageFormat())
	if err != nil {
		return nil, err
	}

	d.logger.Debug("dispatching vision request",
		zap.String("provider", name),
		zap.String("model", req.Model),
		zap.Int("image_count", len(prepared)),
	)

	resp, err := client.Vision(ctx, prompt, prepared, req.Model)
	if err != nil {
		return nil, err
	}
	return &Result{Provider: name, Response: resp}, nil
}

// Batch makes one vision call per image, in order. The first failure aborts
// the batch and discards the results gathered so far.
func (d *Dispatcher) Batch(ctx context.Context, req VisionRequest) (*BatchResult, error) {
	name, client, prompt, err := d.resolveVision(req, "batch vision analysis")
	if err != nil {
		return nil, err
	}

	results := make([]BatchItem, 0, len(req.Images))
	for i, entry := range req.Images {
		prepared, err := images.Prepare([]images.Entry{entry}, client.ImageFormat())
		if err != nil {
			return nil, err
		}

		d.logger.Debug("dispatching batch item",
			zap.String("provider", name),
			zap.Int("index", i),
			zap.Int("total", len(req.Images)),
		)

		resp, err := client.Vision(ctx, prompt, prepared, req.Model)
		if err != nil {
			return nil, err
		}
		results = append(results, BatchItem{Image: entry, Response: resp})
	}

	return &BatchResult{Provider: name, Results: results}, nil
}

func (d *Dispatcher) resolveVision(req VisionRequest, operation string) (string, provider.VisionClient, string, error) {
	name, _, err := d.Resolve(req.Provider)
	if err != nil {
		return "", nil, "", err
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	if len(req.Images) == 0 {
		return "", nil, "", llm.NewValidationError("'images' must be a non-empty list.")
	}

	client, ok := d.vision[name]
	if !ok {
		return "", nil, "", llm.NewValidationError("Provider '%s' does not support %s.", name, operation)
	}

	return name, client, prompt, nil
}
