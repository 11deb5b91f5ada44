// Package config holds the bridge configuration: which providers exist, how to
// reach them, and where the HTTP listener binds.
//
// Configuration is layered, lowest precedence first:
//   - built-in defaults (lmstudio + ollama on localhost)
//   - an optional TOML file
//   - environment variables
//   - command line overrides applied with ServerConfig.With
//
// A ServerConfig is immutable once loaded: With returns a modified copy.
package config

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8082
	DefaultProvider = "lmstudio"
	DefaultTimeout  = 60 * time.Second

	// DefaultMaxBodyBytes bounds request bodies; base64 images make them large.
	DefaultMaxBodyBytes = 64 * 1024 * 1024

	// RedactedMarker replaces secrets in configuration snapshots.
	RedactedMarker = "<hidden>"
)

// Kind selects the provider client variant.
type Kind string

const (
	// KindOpenAI speaks the OpenAI-compatible /v1/chat/completions API.
	KindOpenAI Kind = "openai"

	// KindNative speaks the native /api/chat API.
	KindNative Kind = "native"
)

// Transport selects the HTTP implementation used for outbound provider calls.
type Transport string

const (
	TransportHTTP     Transport = "http"
	TransportFastHTTP Transport = "fasthttp"
)

// ProviderConfig holds settings for a single provider.
type ProviderConfig struct {
	Kind         Kind
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration

	// Vision is false for providers that only accept chat requests.
	Vision bool

	Transport Transport
}

// ServerConfig is the top-level bridge configuration.
type ServerConfig struct {
	Host            string
	Port            int
	DefaultProvider string
	MaxBodyBytes    int

	// Providers is keyed by lower-cased provider name.
	Providers map[string]ProviderConfig
}

// Default returns the built-in configuration: LM Studio as the default
// provider and a local Ollama, both vision capable.
func Default() ServerConfig {
	return ServerConfig{
		Host:            DefaultHost,
		Port:            DefaultPort,
		DefaultProvider: DefaultProvider,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		Providers: map[string]ProviderConfig{
			"lmstudio": {
				Kind:         KindOpenAI,
				BaseURL:      "http://localhost:1234",
				DefaultModel: "vision",
				Timeout:      DefaultTimeout,
				Vision:       true,
				Transport:    TransportHTTP,
			},
			"ollama": {
				Kind:         KindNative,
				BaseURL:      "http://localhost:11434",
				DefaultModel: "llava",
				Timeout:      DefaultTimeout,
				Vision:       true,
				Transport:    TransportHTTP,
			},
		},
	}
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ProviderNames returns the configured provider names in sorted order.
func (c ServerConfig) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Option overrides a field when cloning a ServerConfig.
type Option func(*ServerConfig)

// WithHost overrides the bind host.
func WithHost(host string) Option {
	return func(c *ServerConfig) { c.Host = host }
}

// WithPort overrides the bind port.
func WithPort(port int) Option {
	return func(c *ServerConfig) { c.Port = port }
}

// WithDefaultProvider overrides the provider used when requests name none.
func WithDefaultProvider(name string) Option {
	return func(c *ServerConfig) { c.DefaultProvider = strings.ToLower(name) }
}

// WithProvider adds or replaces a provider.
func WithProvider(name string, p ProviderConfig) Option {
	return func(c *ServerConfig) { c.Providers[strings.ToLower(name)] = p }
}

// With returns a copy of c with the options applied. The receiver is not modified.
func (c ServerConfig) With(opts ...Option) ServerConfig {
	clone := c
	clone.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		clone.Providers[name] = p
	}
	for _, opt := range opts {
		opt(&clone)
	}
	return clone
}

// Validate checks that the configuration can be served.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}
	if _, ok := c.Providers[strings.ToLower(c.DefaultProvider)]; !ok {
		return fmt.Errorf("default provider %q is not configured", c.DefaultProvider)
	}
	for _, name := range c.ProviderNames() {
		if err := c.Providers[name].validate(); err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
	}
	return nil
}

func (p ProviderConfig) validate() error {
	switch p.Kind {
	case KindOpenAI, KindNative:
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	switch p.Transport {
	case TransportHTTP, TransportFastHTTP:
	default:
		return fmt.Errorf("unknown transport %q", p.Transport)
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// ProviderSnapshot is the non-secret view of a ProviderConfig.
type ProviderSnapshot struct {
	Kind         Kind    `json:"kind"`
	BaseURL      string  `json:"base_url"`
	APIKey       *string `json:"api_key"`
	DefaultModel *string `json:"default_model"`
	Timeout      float64 `json:"timeout"`
	Vision       bool    `json:"vision"`
}

// Snapshot is the non-secret view of a ServerConfig served on /config.
type Snapshot struct {
	Host            string                      `json:"host"`
	Port            int                         `json:"port"`
	DefaultProvider string                      `json:"default_provider"`
	Providers       map[string]ProviderSnapshot `json:"providers"`
}

// Snapshot returns the configuration with API keys redacted.
func (c ServerConfig) Snapshot() Snapshot {
	s := Snapshot{
		Host:            c.Host,
		Port:            c.Port,
		DefaultProvider: c.DefaultProvider,
		Providers:       make(map[string]ProviderSnapshot, len(c.Providers)),
	}
	for name, p := range c.Providers {
		s.Providers[name] = p.Snapshot()
	}
	return s
}

// Snapshot returns the provider settings with the API key redacted.
func (p ProviderConfig) Snapshot() ProviderSnapshot {
	ps := ProviderSnapshot{
		Kind:    p.Kind,
		BaseURL: p.BaseURL,
		Timeout: p.Timeout.Seconds(),
		Vision:  p.Vision,
	}
	if p.APIKey != "" {
		marker := RedactedMarker
		ps.APIKey = &marker
	}
	if p.DefaultModel != "" {
		model := p.DefaultModel
		ps.DefaultModel = &model
	}
	return ps
}
