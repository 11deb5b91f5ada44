package servecmder

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcpbridge/cmd/mcpbridge/options"
)

func noEnv(string) (string, bool) { return "", false }

var _ = Describe("Serve Command", func() {
	It("returns cleanly when its context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cmd := newServeCmd(&options.Options{Lookup: noEnv})
		cmd.SetArgs([]string{"--env-file", "", "--port", "0", "--log-level", "error"})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
	})

	It("fails before binding when the configuration is invalid", func() {
		cmd := newServeCmd(&options.Options{Lookup: noEnv})
		cmd.SetArgs([]string{"--env-file", "", "--provider", "nope"})
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true

		err := cmd.ExecuteContext(context.Background())
		Expect(err).To(MatchError(ContainSubstring("invalid configuration")))
	})

	It("rejects positional arguments", func() {
		cmd := NewServeCmd()
		cmd.SetArgs([]string{"extra"})
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true

		Expect(cmd.Execute()).To(HaveOccurred())
	})
})
