package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/card-sms-parser/internal/nlu"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gemini.Model != nlu.DefaultModelName {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Gemini.Backend != nlu.BackendGemini {
		t.Errorf("Gemini.Backend = %q", cfg.Gemini.Backend)
	}
	if cfg.Parser.Timezone != "Asia/Seoul" {
		t.Errorf("Parser.Timezone = %q", cfg.Parser.Timezone)
	}
	if cfg.Worker.Count != 5 || cfg.Worker.QueueSize != 100 {
		t.Errorf("Worker = %+v", cfg.Worker)
	}
	if cfg.Gemini.RequestsPerSecond != 2 || cfg.Gemini.Burst != 1 {
		t.Errorf("Gemini rate limit = %v/%d", cfg.Gemini.RequestsPerSecond, cfg.Gemini.Burst)
	}
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `gemini:
  model: gemini-2.5-pro
  requests_per_second: 0.5
  burst: 3
parser:
  timezone: UTC
worker:
  count: 3
  max_retries: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Environment wins over the file.
	t.Setenv("SMSPARSER_WORKER_COUNT", "7")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Gemini.RequestsPerSecond != 0.5 || cfg.Gemini.Burst != 3 {
		t.Errorf("Gemini rate limit = %v/%d", cfg.Gemini.RequestsPerSecond, cfg.Gemini.Burst)
	}
	if cfg.Parser.Timezone != "UTC" {
		t.Errorf("Parser.Timezone = %q", cfg.Parser.Timezone)
	}
	if cfg.Worker.Count != 7 || cfg.Worker.MaxRetries != 1 {
		t.Errorf("Worker = %+v", cfg.Worker)
	}
	if cfg.Worker.QueueSize != 100 {
		t.Errorf("Worker.QueueSize = %d, want default", cfg.Worker.QueueSize)
	}
}

func TestLoadWithFile_Errors(t *testing.T) {
	if _, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadWithFile() with missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("gemini: [unclosed"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadWithFile(path); err == nil {
		t.Error("LoadWithFile() with invalid YAML should fail")
	}
}

func TestLoad_ReadsConfigFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  format: json\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SMSPARSER_GEMINI_API_KEY", "test-key")
	t.Setenv("SMSPARSER_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("SMSPARSER_PARSER_TIMEZONE", "UTC")
	t.Setenv("SMSPARSER_LOG_LEVEL", "debug")
	t.Setenv("SMSPARSER_WORKER_COUNT", "8")
	t.Setenv("SMSPARSER_WORKER_QUEUE_SIZE", "16")
	t.Setenv("SMSPARSER_WORKER_MAX_RETRIES", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gemini.APIKey != "test-key" || cfg.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("Gemini = %+v", cfg.Gemini)
	}
	if cfg.Parser.Timezone != "UTC" {
		t.Errorf("Parser.Timezone = %q", cfg.Parser.Timezone)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Worker.Count != 8 || cfg.Worker.QueueSize != 16 || cfg.Worker.MaxRetries != 2 {
		t.Errorf("Worker = %+v", cfg.Worker)
	}
	if !cfg.FallbackEnabled() {
		t.Error("FallbackEnabled() = false with an API key")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "bad backend", key: "SMSPARSER_GEMINI_BACKEND", value: "openai", wantErr: "gemini.backend"},
		{name: "vertex without project", key: "SMSPARSER_GEMINI_BACKEND", value: "vertex", wantErr: "gemini.project"},
		{name: "bad timezone", key: "SMSPARSER_PARSER_TIMEZONE", value: "Mars/Olympus", wantErr: "parser.timezone"},
		{name: "too many workers", key: "SMSPARSER_WORKER_COUNT", value: "1000", wantErr: "worker.count"},
		{name: "negative rate", key: "SMSPARSER_GEMINI_REQUESTS_PER_SECOND", value: "-1", wantErr: "gemini.requests_per_second"},
		{name: "negative retries", key: "SMSPARSER_WORKER_MAX_RETRIES", value: "-1", wantErr: "worker.max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvKeyToPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SMSPARSER_GEMINI_API_KEY", "gemini.api_key"},
		{"SMSPARSER_WORKER_QUEUE_SIZE", "worker.queue_size"},
		{"SMSPARSER_LOG_LEVEL", "log.level"},
		{"SMSPARSER_DEBUG", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envKeyToPath(tt.input); got != tt.want {
				t.Errorf("envKeyToPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfig_Clock(t *testing.T) {
	cfg := &Config{Parser: ParserConfig{Timezone: "Asia/Seoul"}}

	clock, err := cfg.Clock()
	if err != nil {
		t.Fatalf("Clock() error = %v", err)
	}
	if got := clock().Location().String(); got != "Asia/Seoul" {
		t.Errorf("clock location = %q, want Asia/Seoul", got)
	}
	if d := time.Since(clock()); d < 0 || d > time.Minute {
		t.Errorf("clock is off by %v", d)
	}
}

func TestConfig_FallbackEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  GeminiConfig
		want bool
	}{
		{name: "no key", cfg: GeminiConfig{Backend: "gemini"}, want: false},
		{name: "api key", cfg: GeminiConfig{Backend: "gemini", APIKey: "k"}, want: true},
		{name: "vertex project", cfg: GeminiConfig{Backend: nlu.BackendVertex, Project: "p"}, want: true},
		{name: "vertex without project", cfg: GeminiConfig{Backend: nlu.BackendVertex, APIKey: "k"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Gemini: tt.cfg}
			if got := c.FallbackEnabled(); got != tt.want {
				t.Errorf("FallbackEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
