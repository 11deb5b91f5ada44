// Package provider contains the clients for the backend language-model APIs the
// bridge relays to. Every client can chat; clients that can also look at images
// implement VisionClient. Which one a configured provider gets is decided once,
// in New, from its configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/papercomputeco/mcpbridge/pkg/config"
	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
)

// DefaultTemperature is sent to providers that accept a temperature when the
// caller does not pick one.
const DefaultTemperature = 0.2

// ChatOptions are optional generation parameters.
type ChatOptions struct {
	// Temperature is ignored by clients whose Capabilities report no
	// temperature support.
	Temperature *float64
}

// Capabilities describes what a client accepts beyond plain chat.
type Capabilities struct {
	Vision      bool
	Temperature bool
}

// Client is the contract shared by every provider variant.
type Client interface {
	// Name is the configured provider name.
	Name() string

	// Capabilities reports optional features.
	Capabilities() Capabilities

	// Chat sends messages and returns the decoded provider response. An empty
	// model falls back to the provider's configured default.
	Chat(ctx context.Context, messages []llm.Message, model string, opts ChatOptions) (llm.Response, error)
}

// VisionClient is a Client that also accepts images.
type VisionClient interface {
	Client

	// ImageFormat is the wire format Vision expects its images in.
	ImageFormat() images.Format

	// Vision sends a prompt with images already rendered in ImageFormat.
	Vision(ctx context.Context, prompt string, imgs []string, model string) (llm.Response, error)
}

// New builds the client variant for a provider configuration.
func New(name string, cfg config.ProviderConfig) (Client, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}
	return NewWithTransport(name, cfg, transport)
}

// NewWithTransport is New with an explicit transport.
func NewWithTransport(name string, cfg config.ProviderConfig, transport Transport) (Client, error) {
	base := baseClient{
		name:      strings.ToLower(name),
		config:    cfg,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
	}

	var client VisionClient
	switch cfg.Kind {
	case config.KindOpenAI:
		client = &OpenAIClient{baseClient: base}
	case config.KindNative:
		client = &NativeClient{baseClient: base}
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", name, cfg.Kind)
	}

	if !cfg.Vision {
		return ChatOnly(client), nil
	}
	return client, nil
}

// NewAll builds a client for every configured provider, keyed by name.
func NewAll(cfg config.ServerConfig) (map[string]Client, error) {
	clients := make(map[string]Client, len(cfg.Providers))
	for _, name := range cfg.ProviderNames() {
		client, err := New(name, cfg.Providers[name])
		if err != nil {
			return nil, err
		}
		clients[name] = client
	}
	return clients, nil
}

// ChatOnly hides the vision capability of a client.
func ChatOnly(c Client) Client {
	return chatOnly{inner: c}
}

type chatOnly struct {
	inner Client
}

func (c chatOnly) Name() string { return c.inner.Name() }

func (c chatOnly) Capabilities() Capabilities {
	caps := c.inner.Capabilities()
	caps.Vision = false
	return caps
}

func (c chatOnly) Chat(ctx context.Context, messages []llm.Message, model string, opts ChatOptions) (llm.Response, error) {
	return c.inner.Chat(ctx, messages, model, opts)
}

// baseClient holds what both variants share.
type baseClient struct {
	name      string
	config    config.ProviderConfig
	baseURL   string
	transport Transport
}

func (b *baseClient) Name() string { return b.name }

func (b *baseClient) resolveModel(model string) (string, error) {
	if model != "" {
		return model, nil
	}
	if b.config.DefaultModel != "" {
		return b.config.DefaultModel, nil
	}
	return "", &Error{Provider: b.name, Message: fmt.Sprintf("No model configured for provider '%s'.", b.name)}
}

func (b *baseClient) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if b.config.APIKey != "" {
		h["Authorization"] = "Bearer " + b.config.APIKey
	}
	return h
}

// post sends payload as JSON and decodes the JSON object the provider answers with.
func (b *baseClient) post(ctx context.Context, path string, payload any) (llm.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	status, respBody, err := b.transport.Post(ctx, b.baseURL+path, b.headers(), body)
	if err != nil {
		return nil, transportError(b.name, err)
	}
	if status < 200 || status >= 300 {
		return nil, statusError(b.name, status, respBody)
	}

	var resp llm.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &Error{
			Provider: b.name,
			Message:  fmt.Sprintf("Invalid JSON response from provider: %v", err),
			Body:     respBody,
			Err:      err,
		}
	}
	return resp, nil
}
