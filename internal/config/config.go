// Package config loads settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"design-props-rag/internal/derivative"
	"design-props-rag/internal/extract"
	"design-props-rag/internal/table"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "designqa.yaml"

// Config holds every runtime setting.
type Config struct {
	APS     APS          `yaml:"aps"`
	Ollama  Ollama       `yaml:"ollama"`
	Table   table.Config `yaml:"table"`
	Extract Extract      `yaml:"extract"`
	Cache   Cache        `yaml:"cache"`
	Store   Store        `yaml:"store"`
	Log     Log          `yaml:"log"`
}

// APS configures access to the Model Derivative service.
type APS struct {
	BaseURL      string        `yaml:"base_url"`
	TokenURL     string        `yaml:"token_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	AccessToken  string        `yaml:"access_token"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Ollama selects the chat model server and model.
type Ollama struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// Extract tunes how property data is pulled from the service.
type Extract struct {
	Mode            string        `yaml:"mode"`
	PageSize        int           `yaml:"page_size"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
	MaxDepth        int           `yaml:"max_depth"`
}

// Cache configures the conversation session cache.
type Cache struct {
	// MaxSessions bounds the session cache. Zero keeps every session.
	MaxSessions int `yaml:"max_sessions"`
}

// Store locates the durable property table store.
type Store struct {
	// DSN is a postgres:// URL or a sqlite file path. Empty disables the store.
	DSN string `yaml:"dsn"`
}

// Log controls the level and encoding of log output.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		APS: APS{
			BaseURL: derivative.DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Ollama: Ollama{Model: "llama3"},
		Table:  table.DefaultConfig(),
		Extract: Extract{
			Mode:            string(extract.ModeHierarchy),
			PageSize:        extract.DefaultPageSize,
			PollInterval:    extract.DefaultPollInterval,
			MaxPollAttempts: 300,
			MaxDepth:        10000,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path reads DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("APS_CLIENT_ID", &c.APS.ClientID)
	set("APS_CLIENT_SECRET", &c.APS.ClientSecret)
	set("APS_ACCESS_TOKEN", &c.APS.AccessToken)
	set("APS_BASE_URL", &c.APS.BaseURL)
	set("OLLAMA_HOST", &c.Ollama.Host)
	set("OLLAMA_MODEL", &c.Ollama.Model)
	set("DESIGNQA_STORE", &c.Store.DSN)
	set("DESIGNQA_LOG_LEVEL", &c.Log.Level)
}

// Validate reports every setting out of range.
func (c *Config) Validate() error {
	var errs []error
	if c.APS.BaseURL == "" {
		errs = append(errs, errors.New("aps.base_url is required"))
	}
	if c.APS.Timeout < 0 {
		errs = append(errs, fmt.Errorf("aps.timeout must not be negative, got %s", c.APS.Timeout))
	}
	if c.Ollama.Model == "" {
		errs = append(errs, errors.New("ollama.model is required"))
	}
	if c.Table.Category == "" {
		errs = append(errs, errors.New("table.category is required"))
	}
	if len(c.Table.Attributes) == 0 {
		errs = append(errs, errors.New("table.attributes must name at least one attribute"))
	}
	if c.Table.MaxRows < 0 {
		errs = append(errs, fmt.Errorf("table.max_rows must not be negative, got %d", c.Table.MaxRows))
	}
	if _, err := extract.ParseMode(c.Extract.Mode); err != nil {
		errs = append(errs, fmt.Errorf("extract.mode: %w", err))
	}
	if c.Extract.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("extract.page_size must be positive, got %d", c.Extract.PageSize))
	}
	if c.Extract.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("extract.poll_interval must be positive, got %s", c.Extract.PollInterval))
	}
	if c.Extract.MaxPollAttempts < 0 {
		errs = append(errs, fmt.Errorf("extract.max_poll_attempts must not be negative, got %d", c.Extract.MaxPollAttempts))
	}
	if c.Extract.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("extract.max_depth must not be negative, got %d", c.Extract.MaxDepth))
	}
	if c.Cache.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("cache.max_sessions must not be negative, got %d", c.Cache.MaxSessions))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
