package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the effective run configuration.
type Config struct {
	BaseURL     string        `koanf:"baseURL"`
	HeaderFile  string        `koanf:"headerFile"`
	CaseFile    string        `koanf:"caseFile"`
	OutputFile  string        `koanf:"outputFile"`
	MetricsFile string        `koanf:"metricsFile"`
	RateLimit   float64       `koanf:"rateLimit"`
	Timeout     time.Duration `koanf:"timeout"`
	Logging     LoggingConfig `koanf:"logging"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		RateLimit: 0,
		Timeout:   0,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c Config) Validate() error {
	if err := validateBaseURL(c.BaseURL); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rateLimit must not be negative, got %v", c.RateLimit)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.Timeout)
	}

	return nil
}

// FixtureOptions derives the fixture settings. Headers are loaded by the caller.
func (c Config) FixtureOptions(headers HeaderKV) FixtureOptions {
	return FixtureOptions{
		BaseURL:   c.BaseURL,
		Headers:   headers,
		RateLimit: c.RateLimit,
		Timeout:   c.Timeout,
	}
}

var canonicalKeys = map[string]string{
	"baseurl":        "baseURL",
	"headerfile":     "headerFile",
	"casefile":       "caseFile",
	"outputfile":     "outputFile",
	"metricsfile":    "metricsFile",
	"ratelimit":      "rateLimit",
	"timeout":        "timeout",
	"logging.level":  "logging.level",
	"logging.format": "logging.format",
}

// Loader assembles a Config with defaults < files < env < overrides precedence.
type Loader struct {
	envPrefix string
	files     []string
	overrides map[string]any
}

func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// WithOverrides sets values that win over every other source, typically
// flags the user passed explicitly. Keys use the koanf path, e.g. "logging.level".
func (l *Loader) WithOverrides(overrides map[string]any) *Loader {
	l.overrides = overrides

	return l
}

func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Config{}, err
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			// APICHECK_LOGGING__LEVEL -> logging.level, APICHECK_BASE_URL -> baseURL
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			key = strings.ToLower(strings.ReplaceAll(key, "_", ""))
			if mapped, ok := canonicalKeys[key]; ok {
				return mapped
			}
			return key
		}
		if err := k.Load(env.Provider(l.envPrefix+"_", ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	if len(l.overrides) > 0 {
		if err := k.Load(confmap.Provider(l.overrides, "."), nil); err != nil {
			return Config{}, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Parser()
	default:
		return yaml.Parser()
	}
}

func defaultsMap(cfg Config) map[string]any {
	return map[string]any{
		"baseURL":     cfg.BaseURL,
		"headerFile":  cfg.HeaderFile,
		"caseFile":    cfg.CaseFile,
		"outputFile":  cfg.OutputFile,
		"metricsFile": cfg.MetricsFile,
		"rateLimit":   cfg.RateLimit,
		"timeout":     cfg.Timeout.String(),
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
	}
}
