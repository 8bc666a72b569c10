package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("FUSION_TOKEN", "usk-test")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if cfg.FusionToken != "usk-test" {
		t.Fatalf("unexpected fusion token: %q", cfg.FusionToken)
	}
	if cfg.FusionBaseURL != defaultFusionBaseURL {
		t.Fatalf("unexpected fusion base url default: %q", cfg.FusionBaseURL)
	}
	if cfg.FusionDatasheetID != "dstjpwCCYCubQ53M9M" || cfg.FusionViewID != "viw1vsFKMMcvp" {
		t.Fatalf("unexpected datasheet/view defaults: %q %q", cfg.FusionDatasheetID, cfg.FusionViewID)
	}
	if cfg.FusionFieldKey != "name" || cfg.FusionPageSize != 1000 {
		t.Fatalf("unexpected field key/page size defaults: %q %d", cfg.FusionFieldKey, cfg.FusionPageSize)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected listen address: %q", cfg.Addr())
	}
	if cfg.ProductLine() != "online" {
		t.Fatalf("unexpected default product line: %q", cfg.ProductLine())
	}
	if cfg.DefaultMinCount != 2 {
		t.Fatalf("unexpected default min count: %d", cfg.DefaultMinCount)
	}
	if cfg.DBPath != "./issueboard.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ReportOutputDir != "./reports" {
		t.Fatalf("unexpected report output dir default: %q", cfg.ReportOutputDir)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.DigestLookbackDays != 7 {
		t.Fatalf("unexpected digest lookback default: %d", cfg.DigestLookbackDays)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.SlackConfigured() || cfg.LLMConfigured() {
		t.Fatalf("expected slack and llm to be disabled by default")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fusion_token: "yaml-token"
fusion_datasheet_id: "dstYAML"
port: "9090"
default_min_count: 3
timezone: "Asia/Shanghai"
db_path: "/tmp/yaml.db"
report_output_dir: "/tmp/yaml-reports"
digest_schedule: "0 9 * * 1"
external_http_timeout_seconds: 75
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("FUSION_TOKEN", "env-token")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("EXTERNAL_HTTP_TIMEOUT_SECONDS", "120")
	t.Setenv("LLM_PROVIDER", " Anthropic ")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg := LoadConfig()

	if cfg.FusionToken != "env-token" {
		t.Fatalf("expected token from env override, got %q", cfg.FusionToken)
	}
	if cfg.FusionDatasheetID != "dstYAML" {
		t.Fatalf("expected datasheet from yaml, got %q", cfg.FusionDatasheetID)
	}
	if cfg.Port != "9090" || cfg.DefaultMinCount != 3 {
		t.Fatalf("expected port/min count from yaml, got %q %d", cfg.Port, cfg.DefaultMinCount)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.ReportOutputDir != "/tmp/yaml-reports" {
		t.Fatalf("expected report output dir from yaml, got %q", cfg.ReportOutputDir)
	}
	if cfg.ExternalHTTPTimeoutSeconds != 120 {
		t.Fatalf("expected external HTTP timeout from env override, got %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.DigestSchedule != "0 9 * * 1" {
		t.Fatalf("expected digest schedule from yaml, got %q", cfg.DigestSchedule)
	}
	if cfg.LLMProvider != "anthropic" || !cfg.LLMConfigured() {
		t.Fatalf("expected normalized llm provider, got %q", cfg.LLMProvider)
	}
	if cfg.Location.String() != "Asia/Shanghai" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestDefaultProductLineMayBeEmpty(t *testing.T) {
	setMinimalValidConfigEnv(t)
	t.Setenv("DEFAULT_PRODUCT_LINE", "")

	cfg := LoadConfig()

	if cfg.DefaultProductLine == nil || cfg.ProductLine() != "" {
		t.Fatalf("expected explicit empty product line, got %v", cfg.DefaultProductLine)
	}
}

func TestValidateRejects(t *testing.T) {
	valid := func() Config {
		cfg := Config{FusionToken: "tok", Timezone: "UTC"}
		applyDefaults(&cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.FusionToken = "" }, "fusion_token"},
		{"bad field key", func(c *Config) { c.FusionFieldKey = "title" }, "fusion_field_key"},
		{"page size too large", func(c *Config) { c.FusionPageSize = 1001 }, "fusion_page_size"},
		{"bad port", func(c *Config) { c.Port = "http" }, "invalid port"},
		{"short timeout", func(c *Config) { c.ExternalHTTPTimeoutSeconds = 4 }, "external_http_timeout_seconds"},
		{"zero min count", func(c *Config) { c.DefaultMinCount = -1 }, "default_min_count"},
		{"bad schedule", func(c *Config) { c.DigestSchedule = "every monday" }, "digest_schedule"},
		{"slack half configured", func(c *Config) { c.SlackBotToken = "xoxb" }, "set together"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "cohere" }, "llm_provider"},
		{"openai without key", func(c *Config) { c.LLMProvider = "openai" }, "openai_api_key"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Colony" }, "timezone"},
	}

	if cfg := valid(); validate(&cfg) != nil {
		t.Fatalf("baseline config should validate")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("30 9 * * 1")
	if err != nil {
		t.Fatalf("ParseSchedule returned error: %v", err)
	}
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) // Friday
	want := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	if got := sched.Next(from); !got.Equal(want) {
		t.Fatalf("next run = %v, want %v", got, want)
	}

	if _, err := ParseSchedule("0 0 9 * * 1"); err == nil {
		t.Fatal("expected six-field expression to be rejected")
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("IB_TEST_STR", "value")
	envOverride(&s, "IB_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	t.Setenv("IB_TEST_EMPTY", "")
	envOverride(&s, "IB_TEST_EMPTY")
	if s != "value" {
		t.Fatalf("envOverride should ignore empty values, got %q", s)
	}

	i := 1
	t.Setenv("IB_TEST_INT", "42")
	envOverrideInt(&i, "IB_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	var opt *string
	envOverrideOptional(&opt, "IB_TEST_UNSET_OPTIONAL")
	if opt != nil {
		t.Fatalf("envOverrideOptional should leave unset vars alone")
	}
	t.Setenv("IB_TEST_OPTIONAL", "  offline ")
	envOverrideOptional(&opt, "IB_TEST_OPTIONAL")
	if opt == nil || *opt != "offline" {
		t.Fatalf("envOverrideOptional failed, got %v", opt)
	}
}

func TestLoadConfigMissingTokenFatal(t *testing.T) {
	if os.Getenv("TEST_MISSING_TOKEN_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Unsetenv("FUSION_TOKEN")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigMissingTokenFatal")
	cmd.Env = append(os.Environ(), "TEST_MISSING_TOKEN_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
