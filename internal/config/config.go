// Package config loads runtime configuration from an optional YAML file
// overridden by SMSPARSER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Seoul must resolve on minimal images

	"github.com/dvloznov/card-sms-parser/internal/nlu"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from every environment variable before mapping.
	EnvPrefix = "SMSPARSER_"

	// EnvConfigFile names the environment variable holding the YAML config path.
	EnvConfigFile = "SMSPARSER_CONFIG_FILE"
)

// Config holds all application configuration
type Config struct {
	Gemini GeminiConfig `koanf:"gemini"`
	Parser ParserConfig `koanf:"parser"`
	Log    LogConfig    `koanf:"log"`
	Worker WorkerConfig `koanf:"worker"`
	GCS    GCSConfig    `koanf:"gcs"`
}

// GeminiConfig configures the fallback model. An empty APIKey with the gemini
// backend disables the fallback.
type GeminiConfig struct {
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
	Backend  string `koanf:"backend"`
	Project  string `koanf:"project"`
	Location string `koanf:"location"`

	// RequestsPerSecond and Burst throttle model calls across all workers.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// ParserConfig configures year inference.
type ParserConfig struct {
	Timezone string `koanf:"timezone"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// WorkerConfig configures the batch worker pool.
type WorkerConfig struct {
	Count      int `koanf:"count"`
	QueueSize  int `koanf:"queue_size"`
	MaxRetries int `koanf:"max_retries"`
}

// GCSConfig configures access to batch input stored in Cloud Storage.
type GCSConfig struct {
	CredentialsFile string `koanf:"credentials_file"`
}

// Load reads SMSPARSER_* variables, applies defaults and validates.
//
// Variables map as SECTION_FIELD, split on the first underscore:
//
//	SMSPARSER_GEMINI_API_KEY   -> gemini.api_key
//	SMSPARSER_WORKER_QUEUE_SIZE -> worker.queue_size
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv(EnvConfigFile))
}

// LoadWithFile loads configPath as YAML when it is not empty, then applies
// environment overrides, defaults and validation.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyToPath), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKeyToPath(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = nlu.DefaultModelName
	}
	if cfg.Gemini.Backend == "" {
		cfg.Gemini.Backend = nlu.BackendGemini
	}
	if cfg.Gemini.Location == "" {
		cfg.Gemini.Location = "asia-northeast3"
	}
	if cfg.Gemini.RequestsPerSecond == 0 {
		cfg.Gemini.RequestsPerSecond = 2
	}
	if cfg.Gemini.Burst == 0 {
		cfg.Gemini.Burst = 1
	}
	if cfg.Parser.Timezone == "" {
		cfg.Parser.Timezone = "Asia/Seoul"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 5
	}
	if cfg.Worker.QueueSize == 0 {
		cfg.Worker.QueueSize = 100
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Gemini.Backend {
	case nlu.BackendGemini:
	case nlu.BackendVertex:
		if c.Gemini.Project == "" {
			return fmt.Errorf("gemini.project is required for the vertex backend")
		}
	default:
		return fmt.Errorf("gemini.backend must be gemini or vertex, got %q", c.Gemini.Backend)
	}
	if c.Gemini.RequestsPerSecond <= 0 {
		return fmt.Errorf("gemini.requests_per_second must be positive, got %v", c.Gemini.RequestsPerSecond)
	}
	if c.Gemini.Burst < 1 {
		return fmt.Errorf("gemini.burst must be at least 1, got %d", c.Gemini.Burst)
	}
	if _, err := time.LoadLocation(c.Parser.Timezone); err != nil {
		return fmt.Errorf("parser.timezone %q: %w", c.Parser.Timezone, err)
	}
	if c.Worker.Count < 1 || c.Worker.Count > 256 {
		return fmt.Errorf("worker.count must be between 1 and 256, got %d", c.Worker.Count)
	}
	if c.Worker.QueueSize < 1 {
		return fmt.Errorf("worker.queue_size must be positive, got %d", c.Worker.QueueSize)
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must not be negative, got %d", c.Worker.MaxRetries)
	}
	return nil
}

// FallbackEnabled reports whether enough is configured to call the model.
func (c *Config) FallbackEnabled() bool {
	if c.Gemini.Backend == nlu.BackendVertex {
		return c.Gemini.Project != ""
	}
	return c.Gemini.APIKey != ""
}

// Clock returns a clock in the configured timezone, used for year inference.
func (c *Config) Clock() (func() time.Time, error) {
	loc, err := time.LoadLocation(c.Parser.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Parser.Timezone, err)
	}
	return func() time.Time { return time.Now().In(loc) }, nil
}
