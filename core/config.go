package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the orchestration core needs, loaded in four
// layers of increasing priority: defaults, environment variables, then a
// YAML file (if present), then functional options passed by the caller
// (e.g. the CLI).
type Config struct {
	Name string `yaml:"name"`

	// Session / skills storage roots (see spec §6.2, §6.3).
	ContextRoot string `yaml:"context_root"`
	SkillsRoot  string `yaml:"skills_root"`
	VectorDBDir string `yaml:"vector_db_dir"`

	AI         AIConfig         `yaml:"ai"`
	Router     RouterConfig     `yaml:"router"`
	Session    SessionConfig    `yaml:"session"`
	Skills     SkillsConfig     `yaml:"skills"`
	RAOI       RAOIConfig       `yaml:"raoi"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Backend    BackendConfig    `yaml:"backend"`
}

// AIConfig configures the LLM gateway. Provider-specific credentials are
// read from the environment unless explicitly overridden here.
type AIConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RouterConfig configures the QA/technical classifier.
type RouterConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// SessionConfig configures per-conversation history and memory.
type SessionConfig struct {
	MaxHistory       int `yaml:"max_history"`
	SummaryWindow    int `yaml:"summary_window"`
	UsePostgresStore bool `yaml:"use_postgres_store"`
}

// SkillsConfig configures the skill store and injector.
type SkillsConfig struct {
	EmbeddingDimension int `yaml:"embedding_dimension"`
	MaxPayloadChars    int `yaml:"max_payload_chars"`
	TopK               int `yaml:"top_k"`
}

// RAOIConfig configures the reason-act-observe-iterate controller.
type RAOIConfig struct {
	MaxIterations      int `yaml:"max_iterations"`
	MaxStepRetries     int `yaml:"max_step_retries"`
	WarningRefineAfter int `yaml:"warning_refine_after"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig holds the connection settings for the optional Redis-backed
// event bus bridge. Nothing in this module uses Redis as a routing cache.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// PostgresConfig configures the optional durable session store.
type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// BackendConfig configures the timeout applied to backend calls (the
// simulation backend itself is out of scope; only its call contract is
// specified here).
type BackendConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Option is a functional option applied after env/file loading, giving
// callers (e.g. cobra flags) the final say.
type Option func(*Config)

// DefaultConfig returns the baseline configuration before env/file/option
// layering is applied.
func DefaultConfig() *Config {
	return &Config{
		Name:        "modelcore",
		ContextRoot: "./data/sessions",
		SkillsRoot:  "./skills",
		VectorDBDir: "./data",
		AI: AIConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxRetries:  3,
			Timeout:     120 * time.Second,
		},
		Router: RouterConfig{
			Model:       "",
			Temperature: 0,
		},
		Session: SessionConfig{
			MaxHistory:    100,
			SummaryWindow: 20,
		},
		Skills: SkillsConfig{
			EmbeddingDimension: 384,
			MaxPayloadChars:    32000,
			TopK:               5,
		},
		RAOI: RAOIConfig{
			MaxIterations:      10,
			MaxStepRetries:     3,
			WarningRefineAfter: 5,
		},
		Telemetry: TelemetryConfig{
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backend: BackendConfig{
			Timeout: 60 * time.Second,
		},
	}
}

// SaveYAML writes c to path as YAML, creating parent directories as
// needed. Used by the bridge's config_save command to persist operator
// overrides between process invocations.
func (c *Config) SaveYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return NewFrameworkError("config.SaveYAML", "config", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewFrameworkError("config.SaveYAML", "config", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewFrameworkError("config.SaveYAML", "config", err)
	}
	return nil
}

// LoadConfig builds a Config by layering defaults, environment variables,
// an optional YAML file, and functional options, in that order.
func LoadConfig(yamlPath string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.loadFromEnv()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, NewFrameworkError("config.LoadConfig", "config", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewFrameworkError("config.LoadConfig", "config", fmt.Errorf("parse %s: %w", yamlPath, err))
		}
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv(EnvContextRoot); v != "" {
		c.ContextRoot = v
	}
	if v := os.Getenv(EnvSkillsRoot); v != "" {
		c.SkillsRoot = v
	}
	if v := os.Getenv(EnvAIProvider); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv(EnvAIModel); v != "" {
		c.AI.Model = v
	}
	if v := firstNonEmpty(os.Getenv(EnvAIAPIKey), os.Getenv("OPENAI_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("GEMINI_API_KEY")); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv(EnvAIBaseURL); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("MODELCORE_AI_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AI.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv(EnvMaxIteration); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RAOI.MaxIterations = n
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Validate checks invariants that must hold before the config is used to
// construct components.
func (c *Config) Validate() error {
	if c.Session.MaxHistory <= 0 {
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: session.max_history must be positive", ErrInvalidConfiguration))
	}
	if c.RAOI.MaxIterations <= 0 {
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: raoi.max_iterations must be positive", ErrInvalidConfiguration))
	}
	if c.Skills.EmbeddingDimension <= 0 {
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: skills.embedding_dimension must be positive", ErrInvalidConfiguration))
	}
	switch strings.ToLower(c.AI.Provider) {
	case "openai", "anthropic", "gemini", "ollama", "":
	default:
		return NewFrameworkError("config.Validate", "config", fmt.Errorf("%w: unknown ai provider %q", ErrInvalidConfiguration, c.AI.Provider))
	}
	return nil
}

// WithAIProvider overrides the AI provider and model.
func WithAIProvider(provider, model string) Option {
	return func(c *Config) {
		c.AI.Provider = provider
		if model != "" {
			c.AI.Model = model
		}
	}
}

// WithContextRoot overrides the session storage root.
func WithContextRoot(path string) Option {
	return func(c *Config) { c.ContextRoot = path }
}

// WithSkillsRoot overrides the skill source tree root.
func WithSkillsRoot(path string) Option {
	return func(c *Config) { c.SkillsRoot = path }
}
