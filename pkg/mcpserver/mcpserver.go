// Package mcpserver exposes the bridge operations as Model Context Protocol
// tools, so an MCP host can reach the configured providers without HTTP.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/pkg/dispatch"
	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
	"github.com/papercomputeco/mcpbridge/pkg/provider"
)

const serverName = "mcpbridge"

// Tool names.
const (
	ToolChat    = "chat"
	ToolAnalyze = "analyze"
	ToolBatch   = "batch"
	ToolConfig  = "config"
)

// Server wraps an mcp.Server whose tools call a Dispatcher.
type Server struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
	server     *mcp.Server
}

type chatInput struct {
	Provider    string        `json:"provider,omitempty" jsonschema:"provider name; the configured default when empty"`
	Messages    []llm.Message `json:"messages" jsonschema:"conversation in role/content form"`
	Model       string        `json:"model,omitempty" jsonschema:"model name; the provider default when empty"`
	Temperature *float64      `json:"temperature,omitempty" jsonschema:"sampling temperature, for providers that accept one"`
}

// visionInput keeps images untyped so the inferred schema accepts both path
// strings and objects; they are decoded into images.Entry afterwards.
type visionInput struct {
	Provider string `json:"provider,omitempty" jsonschema:"provider name; the configured default when empty"`
	Prompt   string `json:"prompt,omitempty" jsonschema:"instruction for the model"`
	Images   []any  `json:"images" jsonschema:"file paths, or objects with one of path, base64 or data_uri and an optional mime"`
	Model    string `json:"model,omitempty" jsonschema:"model name; the provider default when empty"`
}

type configInput struct{}

// New registers the bridge tools on a fresh MCP server.
func New(d *dispatch.Dispatcher, logger *zap.Logger, version string) *Server {
	s := &Server{
		dispatcher: d,
		logger:     logger,
		server:     mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolChat,
		Description: "Send a chat conversation to a configured language-model provider.",
	}, s.chat)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolAnalyze,
		Description: "Send a prompt and one or more images to a vision-capable provider in a single request.",
	}, s.analyze)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolBatch,
		Description: "Analyze each image separately with the same prompt. Results keep the input order.",
	}, s.batch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolConfig,
		Description: "Show the bridge configuration with API keys redacted.",
	}, s.config)

	return s
}

// MCP returns the underlying server, for connecting custom transports.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves over stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting mcp server on stdio",
		zap.String("default_provider", s.dispatcher.Config().DefaultProvider),
		zap.Strings("providers", s.dispatcher.Config().ProviderNames()),
	)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) chat(ctx context.Context, _ *mcp.CallToolRequest, in chatInput) (*mcp.CallToolResult, any, error) {
	result, err := s.dispatcher.Chat(ctx, dispatch.ChatRequest{
		Provider:    in.Provider,
		Messages:    in.Messages,
		Model:       in.Model,
		Temperature: in.Temperature,
	})
	return s.respond(ToolChat, result, err)
}

func (s *Server) analyze(ctx context.Context, _ *mcp.CallToolRequest, in visionInput) (*mcp.CallToolResult, any, error) {
	req, err := in.request()
	if err != nil {
		return s.respond(ToolAnalyze, nil, err)
	}
	result, err := s.dispatcher.Vision(ctx, req)
	return s.respond(ToolAnalyze, result, err)
}

func (s *Server) batch(ctx context.Context, _ *mcp.CallToolRequest, in visionInput) (*mcp.CallToolResult, any, error) {
	req, err := in.request()
	if err != nil {
		return s.respond(ToolBatch, nil, err)
	}
	result, err := s.dispatcher.Batch(ctx, req)
	return s.respond(ToolBatch, result, err)
}

func (s *Server) config(_ context.Context, _ *mcp.CallToolRequest, _ configInput) (*mcp.CallToolResult, any, error) {
	return s.respond(ToolConfig, s.dispatcher.Config().Snapshot(), nil)
}

func (in visionInput) request() (dispatch.VisionRequest, error) {
	req := dispatch.VisionRequest{
		Provider: in.Provider,
		Prompt:   in.Prompt,
		Model:    in.Model,
	}
	raw, err := json.Marshal(in.Images)
	if err != nil {
		return req, fmt.Errorf("encode images: %w", err)
	}
	var entries []images.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return req, fmt.Errorf("decode images: %w", err)
	}
	req.Images = entries
	return req, nil
}

// respond renders a result, or an error, as a JSON text block. Failures are
// reported in the result with IsError set, as tool errors rather than
// protocol errors.
func (s *Server) respond(tool string, result any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		var (
			verr *llm.ValidationError
			perr *provider.Error
		)
		if errors.As(err, &verr) || errors.As(err, &perr) {
			s.logger.Error("tool call failed", zap.String("tool", tool), zap.Error(err))
		} else {
			s.logger.Error("unexpected tool error", zap.String("tool", tool), zap.Error(err), zap.Stack("stack"))
		}
		return textResult(llm.ErrorResponse{Error: err.Error()}, true)
	}
	return textResult(result, false)
}

func textResult(v any, isError bool) (*mcp.CallToolResult, any, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		IsError: isError,
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}, nil, nil
}
