// Package config holds the settings for every provider and sink, loaded from
// a TOML file for the CLI or from the environment for Lambda.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dmorgan81/imagine/internal/midjourney"
	"github.com/samber/lo"
)

const (
	ProviderMidjourney = "midjourney"
	ProviderDalle      = "dalle"
	ProviderDezgo      = "dezgo"
)

type Config struct {
	Provider   string           `toml:"provider"`
	Midjourney MidjourneyConfig `toml:"midjourney"`
	Dalle      DalleConfig      `toml:"dalle"`
	Dezgo      DezgoConfig      `toml:"dezgo"`
	Output     OutputConfig     `toml:"output"`
	Logging    LoggingConfig    `toml:"logging"`
}

// MidjourneyConfig points at a midjourney-proxy server.
type MidjourneyConfig struct {
	ServerURL     string                `toml:"server_url"`
	PollInterval  time.Duration         `toml:"poll_interval"`
	Timeout       time.Duration         `toml:"timeout"`
	MaxPollErrors int                   `toml:"max_poll_errors"`
	RateLimit     float64               `toml:"rate_limit"`
	Modifiers     []midjourney.Modifier `toml:"modifiers"`
}

// DalleConfig controls the OpenAI images API.
type DalleConfig struct {
	Key     string `toml:"key"`
	Version int    `toml:"version"`
	Prefix  string `toml:"prefix"`
	Size    string `toml:"size"`
	Quality string `toml:"quality"`
	BaseURL string `toml:"base_url"`
}

type DezgoConfig struct {
	Key     string `toml:"key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// OutputConfig says where artifacts go: a local directory for the CLI, an
// S3 bucket fronted by CloudFront for Lambda.
type OutputConfig struct {
	Dir          string `toml:"dir"`
	Bucket       string `toml:"bucket"`
	Distribution string `toml:"distribution"`
	Site         string `toml:"site"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultDallePrefix asks DALL-E 3 not to rewrite the prompt.
const DefaultDallePrefix = "I NEED to test how the tool works with extremely simple prompts. " +
	"DO NOT add any detail, just use it AS-IS. Generate a realistic image with text_prompt: "

func DefaultConfig() Config {
	return Config{
		Provider: ProviderMidjourney,
		Midjourney: MidjourneyConfig{
			PollInterval:  20 * time.Second,
			Timeout:       15 * time.Minute,
			MaxPollErrors: 3,
		},
		Dalle: DalleConfig{
			Version: 3,
			Prefix:  DefaultDallePrefix,
			Size:    "1024x1024",
			Quality: "standard",
			BaseURL: "https://api.openai.com",
		},
		Dezgo: DezgoConfig{
			Model:   "epic_diffusion_1_1",
			BaseURL: "https://api.dezgo.com",
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

// FromEnv applies environment overrides to the defaults. Secrets are not
// read here; they come from the parameter store.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Provider, "DEFAULT_PROVIDER")
	set(&cfg.Midjourney.ServerURL, "MJ_SERVER_URL")
	set(&cfg.Output.Bucket, "BUCKET")
	set(&cfg.Output.Distribution, "DISTRIBUTION")
	set(&cfg.Output.Site, "SITE")
	set(&cfg.Logging.Level, "LOG_LEVEL")

	if v := getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		cfg.Midjourney.PollInterval = d
	}
	if v := getenv("MJ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("MJ_TIMEOUT: %w", err)
		}
		cfg.Midjourney.Timeout = d
	}
	if v := getenv("MJ_MODIFIERS"); v != "" {
		mods, err := ParseModifiers(strings.Split(v, ","))
		if err != nil {
			return cfg, fmt.Errorf("MJ_MODIFIERS: %w", err)
		}
		cfg.Midjourney.Modifiers = mods
	}
	if v := getenv("DALLE_VERSION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("DALLE_VERSION: %w", err)
		}
		cfg.Dalle.Version = n
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !lo.Contains([]string{ProviderMidjourney, ProviderDalle, ProviderDezgo}, c.Provider) {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Dalle.Version != 2 && c.Dalle.Version != 3 {
		return fmt.Errorf("dalle version must be 2 or 3, got %d", c.Dalle.Version)
	}
	if c.Midjourney.PollInterval <= 0 {
		return fmt.Errorf("midjourney poll interval must be positive, got %s", c.Midjourney.PollInterval)
	}
	return nil
}

// ParseModifiers parses "key=value" pairs, keeping their order.
func ParseModifiers(pairs []string) ([]midjourney.Modifier, error) {
	mods := make([]midjourney.Modifier, 0, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, ok := midjourney.ParseModifier(p)
		if !ok {
			return nil, fmt.Errorf("invalid modifier %q, want key=value", p)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// DefaultPath is ~/.config/imagine/config.toml, or $IMAGINE_CONFIG.
func DefaultPath() string {
	if env := os.Getenv("IMAGINE_CONFIG"); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "imagine", "config.toml")
}
