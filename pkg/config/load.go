package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Server-level environment variables.
const (
	EnvHost     = "DARKTABLE_MCP_HOST"
	EnvPort     = "DARKTABLE_MCP_PORT"
	EnvProvider = "DARKTABLE_MCP_PROVIDER"
)

// Per-provider environment variables are <PREFIX>_URL, <PREFIX>_API_KEY,
// <PREFIX>_MODEL and <PREFIX>_TIMEOUT (seconds). The built-in providers keep
// their historical prefixes; any other provider uses its upper-cased name.
var envPrefixes = map[string]string{
	"lmstudio": "LM_STUDIO",
	"ollama":   "OLLAMA",
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadOptions controls Load.
type LoadOptions struct {
	// File is an optional TOML file path. Empty skips the file layer.
	File string

	// Lookup reads environment variables. Nil means os.LookupEnv.
	Lookup LookupFunc
}

// Load builds a ServerConfig from defaults, the optional TOML file and the
// environment. The result is not validated; call Validate after applying any
// command line overrides.
func Load(opts LoadOptions) (ServerConfig, error) {
	cfg := Default()

	if opts.File != "" {
		if err := applyFile(&cfg, opts.File); err != nil {
			return ServerConfig{}, err
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return ServerConfig{}, err
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type fileConfig struct {
	Host            *string                 `toml:"host"`
	Port            *int                    `toml:"port"`
	DefaultProvider *string                 `toml:"default_provider"`
	MaxBodyBytes    *int                    `toml:"max_body_bytes"`
	Providers       map[string]fileProvider `toml:"providers"`
}

type fileProvider struct {
	Kind         *string   `toml:"kind"`
	BaseURL      *string   `toml:"base_url"`
	APIKey       *string   `toml:"api_key"`
	DefaultModel *string   `toml:"default_model"`
	Timeout      *duration `toml:"timeout"`
	Vision       *bool     `toml:"vision"`
	Transport    *string   `toml:"transport"`
}

// duration decodes Go duration strings such as "90s" or "2m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func applyFile(cfg *ServerConfig, path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
	}

	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.DefaultProvider != nil {
		cfg.DefaultProvider = strings.ToLower(*fc.DefaultProvider)
	}
	if fc.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *fc.MaxBodyBytes
	}

	for rawName, fp := range fc.Providers {
		name := strings.ToLower(rawName)
		p, ok := cfg.Providers[name]
		if !ok {
			p = ProviderConfig{
				Timeout:   DefaultTimeout,
				Vision:    true,
				Transport: TransportHTTP,
			}
		}
		if fp.Kind != nil {
			p.Kind = Kind(strings.ToLower(*fp.Kind))
		}
		if fp.BaseURL != nil {
			p.BaseURL = *fp.BaseURL
		}
		if fp.APIKey != nil {
			p.APIKey = *fp.APIKey
		}
		if fp.DefaultModel != nil {
			p.DefaultModel = *fp.DefaultModel
		}
		if fp.Timeout != nil {
			p.Timeout = fp.Timeout.Duration
		}
		if fp.Vision != nil {
			p.Vision = *fp.Vision
		}
		if fp.Transport != nil {
			p.Transport = Transport(strings.ToLower(*fp.Transport))
		}
		cfg.Providers[name] = p
	}

	return nil
}

func applyEnv(cfg *ServerConfig, lookup LookupFunc) error {
	if v, ok := lookup(EnvHost); ok && v != "" {
		cfg.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v, ok := lookup(EnvProvider); ok && v != "" {
		cfg.DefaultProvider = strings.ToLower(v)
	}

	for name, p := range cfg.Providers {
		prefix := EnvPrefix(name)
		if v, ok := lookup(prefix + "_URL"); ok && v != "" {
			p.BaseURL = v
		}
		if v, ok := lookup(prefix + "_API_KEY"); ok && v != "" {
			p.APIKey = v
		}
		if v, ok := lookup(prefix + "_MODEL"); ok && v != "" {
			p.DefaultModel = v
		}
		if v, ok := lookup(prefix + "_TIMEOUT"); ok && v != "" {
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s_TIMEOUT %q: %w", prefix, v, err)
			}
			p.Timeout = time.Duration(secs * float64(time.Second))
		}
		cfg.Providers[name] = p
	}

	return nil
}

// EnvPrefix returns the environment variable prefix for a provider name.
func EnvPrefix(name string) string {
	if prefix, ok := envPrefixes[name]; ok {
		return prefix
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
