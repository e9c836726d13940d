package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is read from an optional YAML file and then from the
// environment; environment variables win.
type Config struct {
	HTTPAddr    string `yaml:"http_addr" env:"HTTP_ADDR"`
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
	AdminAPIKey string `yaml:"admin_api_key" env:"ADMIN_API_KEY"`

	ArtifactDir string        `yaml:"artifact_dir" env:"ARTIFACT_DIR"`
	SessionTTL  time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`

	TogetherAPIKey         string        `yaml:"together_api_key" env:"TOGETHER_API_KEY"`
	GenerationBaseURL      string        `yaml:"generation_base_url" env:"GENERATION_BASE_URL"`
	GenerationModel        string        `yaml:"generation_model" env:"GENERATION_MODEL"`
	GenerationPollInterval time.Duration `yaml:"generation_poll_interval" env:"GENERATION_POLL_INTERVAL"`
	GenerationTimeout      time.Duration `yaml:"generation_timeout" env:"GENERATION_TIMEOUT"`
	GenerationDefaultSteps int           `yaml:"generation_default_steps" env:"GENERATION_DEFAULT_STEPS"`
	GenerationDefaultSeed  int64         `yaml:"generation_default_seed" env:"GENERATION_DEFAULT_SEED"`

	PolicyBundlePath string `yaml:"policy_bundle_path" env:"POLICY_BUNDLE_PATH"`
	PolicyBundleID   string `yaml:"policy_bundle_id" env:"POLICY_BUNDLE_ID"`

	RateLimitRequests      int `yaml:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds" env:"RATE_LIMIT_WINDOW_SECONDS"`
	RateLimitMaxKeys       int `yaml:"rate_limit_max_keys" env:"RATE_LIMIT_MAX_KEYS"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`

	MetricsEnabled bool `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
}

const (
	DefaultHTTPAddr          = ":8080"
	DefaultLogLevel          = "info"
	DefaultArtifactDir       = "data/artifacts"
	DefaultSessionTTL        = 24 * time.Hour
	DefaultGenerationBaseURL = "https://api.together.xyz"
	DefaultGenerationModel   = "black-forest-labs/FLUX.1-schnell"
	DefaultPollInterval      = 500 * time.Millisecond
	DefaultGenerationTimeout = 2 * time.Minute
	DefaultGenerationSteps   = 8
	DefaultGenerationSeed    = 1234
	DefaultPolicyBundleID    = "generation"
	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 60
	DefaultRateLimitMaxKeys  = 10000
)

// Load reads path (when non-empty) and then applies environment overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads configuration from the environment only.
func FromEnv() (Config, error) {
	return Load(os.Getenv("SEALTRAIL_CONFIG"))
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = DefaultArtifactDir
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.GenerationBaseURL == "" {
		c.GenerationBaseURL = DefaultGenerationBaseURL
	}
	c.GenerationBaseURL = strings.TrimRight(c.GenerationBaseURL, "/")
	if c.GenerationModel == "" {
		c.GenerationModel = DefaultGenerationModel
	}
	if c.GenerationPollInterval == 0 {
		c.GenerationPollInterval = DefaultPollInterval
	}
	if c.GenerationTimeout == 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
	}
	if c.GenerationDefaultSteps == 0 {
		c.GenerationDefaultSteps = DefaultGenerationSteps
	}
	if c.GenerationDefaultSeed == 0 {
		c.GenerationDefaultSeed = DefaultGenerationSeed
	}
	if c.PolicyBundleID == "" {
		c.PolicyBundleID = DefaultPolicyBundleID
	}
	if c.RateLimitRequests == 0 {
		c.RateLimitRequests = DefaultRateLimitRequests
	}
	if c.RateLimitWindowSeconds == 0 {
		c.RateLimitWindowSeconds = DefaultRateLimitWindow
	}
	if c.RateLimitMaxKeys == 0 {
		c.RateLimitMaxKeys = DefaultRateLimitMaxKeys
	}
}

func (c Config) validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.GenerationPollInterval < 0 || c.GenerationTimeout < 0 {
		errs = append(errs, errors.New("generation intervals must be positive"))
	}
	if c.GenerationTimeout > 0 && c.GenerationPollInterval > c.GenerationTimeout {
		errs = append(errs, errors.New("GENERATION_POLL_INTERVAL exceeds GENERATION_TIMEOUT"))
	}
	if c.GenerationDefaultSteps < 0 {
		errs = append(errs, errors.New("GENERATION_DEFAULT_STEPS must be positive"))
	}
	if c.RateLimitRequests < 0 || c.RateLimitWindowSeconds < 0 || c.RateLimitMaxKeys < 0 {
		errs = append(errs, errors.New("rate limit settings must be positive"))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}
	return errors.Join(errs...)
}

// GenerationEnabled reports whether a generation API key is configured.
func (c Config) GenerationEnabled() bool {
	return c.TogetherAPIKey != ""
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
