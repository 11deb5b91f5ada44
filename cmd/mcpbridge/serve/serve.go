package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/bridge"
	"github.com/papercomputeco/mcpbridge/cmd/mcpbridge/options"
	"github.com/papercomputeco/mcpbridge/pkg/dispatch"
)

const serveLongDesc string = `Run the HTTP bridge in front of the configured providers.

Configuration is read from built-in defaults, an optional TOML file,
a .env file and the environment, in that order. --host, --port and
--provider override everything else.

Routes:
  GET  /health    liveness check
  GET  /config    configuration with API keys redacted
  POST /chat      relay a conversation
  POST /analyze   send a prompt and images in one request
  POST /batch     analyze each image separately

Examples:
  mcpbridge serve
  mcpbridge serve --port 9000 --provider ollama
  mcpbridge serve --config ~/.config/mcpbridge.toml --log-level debug`

const serveShortDesc string = "Run the HTTP bridge"

type serveCommander struct {
	opts *options.Options
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&options.Options{})
}

func newServeCmd(opts *options.Options) *cobra.Command {
	cmder := &serveCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	opts.AddFlags(cmd.Flags())

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.opts.Config(cmd.Flags())
	if err != nil {
		return err
	}

	log, err := c.opts.Logger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	d, err := dispatch.NewFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create providers: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bridge.New(d, log).WaitForever(ctx); err != nil {
		log.Error("bridge server failed", zap.Error(err))
		return err
	}
	return nil
}
