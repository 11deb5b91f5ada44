package main

import (
	"os"

	"github.com/spf13/cobra"

	mcpcmder "github.com/papercomputeco/mcpbridge/cmd/mcpbridge/mcp"
	servecmder "github.com/papercomputeco/mcpbridge/cmd/mcpbridge/serve"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const rootLongDesc string = `mcpbridge exposes one chat and vision API in front of several
language-model providers (OpenAI-compatible servers such as LM Studio,
and native chat servers such as Ollama).

Without a subcommand it runs the HTTP bridge, same as "mcpbridge serve".`

func newRootCmd() *cobra.Command {
	// The root runs serve directly so flags work without naming the subcommand.
	root := servecmder.NewServeCmd()
	root.Use = "mcpbridge"
	root.Short = "Uniform chat and vision bridge for local LLM providers"
	root.Long = rootLongDesc
	root.Version = version
	root.SilenceUsage = true

	root.AddCommand(servecmder.NewServeCmd())
	root.AddCommand(mcpcmder.NewMCPCmd(version))

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
