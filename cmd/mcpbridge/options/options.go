// Package options holds the flags shared by the mcpbridge subcommands and turns
// them into a validated configuration and a logger.
package options

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/pkg/config"
	"github.com/papercomputeco/mcpbridge/pkg/logger"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

type Options struct {
	Host       string
	Port       int
	Provider   string
	LogLevel   string
	LogFile    string
	ConfigFile string
	EnvFile    string

	// Lookup reads environment variables. Nil means the process environment.
	Lookup config.LookupFunc
}

// AddFlags registers the shared flags on fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Host, "host", config.DefaultHost, "Host interface to bind")
	fs.IntVarP(&o.Port, "port", "p", config.DefaultPort, "Port to bind")
	fs.StringVar(&o.Provider, "provider", config.DefaultProvider, "Default provider when requests name none")
	fs.StringVar(&o.LogLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	fs.StringVar(&o.LogFile, "log-file", "", "Also write logs to this rotating file")
	fs.StringVarP(&o.ConfigFile, "config", "c", "", "Path to a TOML configuration file")
	fs.StringVar(&o.EnvFile, "env-file", DefaultEnvFile, "Path to a .env file loaded before reading the environment")
}

// Config loads the configuration and applies the flags the user set. Flags
// left at their defaults do not override the file or the environment.
func (o *Options) Config(fs *pflag.FlagSet) (config.ServerConfig, error) {
	if o.EnvFile != "" {
		if err := config.LoadDotEnv(o.EnvFile); err != nil {
			return config.ServerConfig{}, err
		}
	}

	cfg, err := config.Load(config.LoadOptions{File: o.ConfigFile, Lookup: o.Lookup})
	if err != nil {
		return config.ServerConfig{}, err
	}

	var overrides []config.Option
	if fs.Changed("host") {
		overrides = append(overrides, config.WithHost(o.Host))
	}
	if fs.Changed("port") {
		overrides = append(overrides, config.WithPort(o.Port))
	}
	if fs.Changed("provider") {
		overrides = append(overrides, config.WithDefaultProvider(o.Provider))
	}
	cfg = cfg.With(overrides...)

	if err := cfg.Validate(); err != nil {
		return config.ServerConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger builds the process logger. stderr keeps stdout free for protocol traffic.
func (o *Options) Logger(stderr bool) (*zap.Logger, error) {
	log, err := logger.NewLogger(logger.Options{
		Level:  o.LogLevel,
		File:   o.LogFile,
		Stderr: stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("could not set up logging: %w", err)
	}
	return log, nil
}
