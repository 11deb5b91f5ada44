package options_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/papercomputeco/mcpbridge/cmd/mcpbridge/options"
)

var _ = Describe("Options", func() {
	var (
		opts *options.Options
		fs   *pflag.FlagSet
		env  map[string]string
	)

	BeforeEach(func() {
		env = map[string]string{}
		opts = &options.Options{Lookup: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}}
		fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
		opts.AddFlags(fs)
	})

	It("keeps environment values when flags are left at their defaults", func() {
		env["DARKTABLE_MCP_PORT"] = "9100"
		env["DARKTABLE_MCP_PROVIDER"] = "ollama"
		Expect(fs.Parse([]string{"--env-file", ""})).To(Succeed())

		cfg, err := opts.Config(fs)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Port).To(Equal(9100))
		Expect(cfg.DefaultProvider).To(Equal("ollama"))
	})

	It("lets flags override the environment", func() {
		env["DARKTABLE_MCP_PORT"] = "9100"
		Expect(fs.Parse([]string{"--env-file", "", "--port", "9200", "--host", "0.0.0.0", "--provider", "OLLAMA"})).To(Succeed())

		cfg, err := opts.Config(fs)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Addr()).To(Equal("0.0.0.0:9200"))
		Expect(cfg.DefaultProvider).To(Equal("ollama"))
	})

	It("rejects an unknown default provider", func() {
		Expect(fs.Parse([]string{"--env-file", "", "--provider", "bogus"})).To(Succeed())

		_, err := opts.Config(fs)
		Expect(err).To(MatchError(ContainSubstring(`default provider "bogus" is not configured`)))
	})

	It("reads providers from a TOML file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "bridge.toml")
		Expect(os.WriteFile(path, []byte(`
default_provider = "remote"

[providers.remote]
kind = "openai"
base_url = "https://llm.example.com"
default_model = "gpt-vision"
timeout = "90s"
`), 0o600)).To(Succeed())
		Expect(fs.Parse([]string{"--env-file", "", "--config", path})).To(Succeed())

		cfg, err := opts.Config(fs)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.DefaultProvider).To(Equal("remote"))
		Expect(cfg.ProviderNames()).To(ContainElement("remote"))
	})

	It("ignores a missing .env file", func() {
		Expect(fs.Parse([]string{"--env-file", filepath.Join(GinkgoT().TempDir(), "missing.env")})).To(Succeed())

		_, err := opts.Config(fs)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an unknown log level", func() {
		Expect(fs.Parse([]string{"--log-level", "loud"})).To(Succeed())

		_, err := opts.Logger(false)
		Expect(err).To(MatchError(ContainSubstring("unknown log level")))
	})
})
