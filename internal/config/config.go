package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when RELAY_CONFIG is not set.
const DefaultPath = "configs/default.yaml"

// Config is read once at process start and never mutated afterwards.
type Config struct {
	Source        string
	WebhookURL    string
	WebhookSecret string
	Timeout       time.Duration
	HTTPPort      int
	GRPCPort      int
	RedisURL      string
	Channel       string
	LogLevel      string
}

type configFile struct {
	Service struct {
		Source   string `yaml:"source"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Webhook struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"webhook"`
	Publisher struct {
		RedisURL string `yaml:"redis_url"`
		Channel  string `yaml:"channel"`
	} `yaml:"publisher"`
}

// Path returns the config file location, honouring RELAY_CONFIG.
func Path() string {
	return envString("RELAY_CONFIG", DefaultPath)
}

// Load applies defaults, then the YAML file at path if it exists, then the
// environment. It never fails: an unreadable or malformed file is logged and
// skipped, and a missing webhook URL simply leaves the relay in no-op mode.
func Load(path string) Config {
	cfg := Config{
		Source:   "aspect-ai",
		Timeout:  20 * time.Second,
		HTTPPort: 8080,
		Channel:  "webhook-relay:events",
		LogLevel: "info",
	}
	if err := applyFile(path, &cfg); err != nil {
		slog.Default().Warn("ignoring config file", "path", path, "error", err)
	}

	cfg.WebhookURL = strings.TrimSpace(envString("PD_WEBHOOK_URL", cfg.WebhookURL))
	cfg.WebhookSecret = os.Getenv("PD_WEBHOOK_SECRET")
	cfg.HTTPPort = envInt("PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.Timeout = time.Duration(envInt("WEBHOOK_TIMEOUT_SECONDS", int(cfg.Timeout/time.Second))) * time.Second
	cfg.RedisURL = envString("REDIS_URL", cfg.RedisURL)
	cfg.Channel = envString("RELAY_CHANNEL", cfg.Channel)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	return cfg
}

// applyFile leaves cfg untouched unless the whole file parses.
func applyFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if f.Service.Source != "" {
		cfg.Source = f.Service.Source
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	cfg.WebhookURL = strings.TrimSpace(f.Webhook.URL)
	if f.Webhook.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(f.Webhook.TimeoutSeconds) * time.Second
	}
	cfg.RedisURL = f.Publisher.RedisURL
	if f.Publisher.Channel != "" {
		cfg.Channel = f.Publisher.Channel
	}
	return nil
}

// NoopMode reports whether relays should short-circuit without network I/O.
func (c Config) NoopMode() bool {
	return c.WebhookURL == ""
}

// envInt treats zero, negative and unparsable values as unset; a zero port
// would otherwise bind a random one.
func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func envString(name, fallback string) string {
	if raw := os.Getenv(name); raw != "" {
		return raw
	}
	return fallback
}
