package mcpcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcpbridge/cmd/mcpbridge/options"
	"github.com/papercomputeco/mcpbridge/pkg/dispatch"
	"github.com/papercomputeco/mcpbridge/pkg/mcpserver"
)

const mcpLongDesc string = `Serve the bridge as a Model Context Protocol server over stdio.

The tools chat, analyze, batch and config behave like the HTTP routes
of the same name. Logs go to stderr so stdout carries only protocol
messages.

Examples:
  mcpbridge mcp
  mcpbridge mcp --provider ollama --log-file /tmp/mcpbridge.log`

const mcpShortDesc string = "Serve MCP tools over stdio"

type mcpCommander struct {
	opts    *options.Options
	version string
}

func NewMCPCmd(version string) *cobra.Command {
	return newMCPCmd(&options.Options{}, version)
}

func newMCPCmd(opts *options.Options, version string) *cobra.Command {
	cmder := &mcpCommander{opts: opts, version: version}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	opts.AddFlags(cmd.Flags())

	return cmd
}

func (c *mcpCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.opts.Config(cmd.Flags())
	if err != nil {
		return err
	}

	log, err := c.opts.Logger(true)
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

	err = mcpserver.New(d, log, c.version).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
