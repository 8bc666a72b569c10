package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	defaultFusionBaseURL     = "https://yach-vika.zhiyinlou.com/fusion/v1"
	defaultFusionDatasheetID = "dstjpwCCYCubQ53M9M"
	defaultFusionViewID      = "viw1vsFKMMcvp"
	maxFusionPageSize        = 1000
)

type Config struct {
	FusionBaseURL     string `yaml:"fusion_base_url"`
	FusionToken       string `yaml:"fusion_token"`
	FusionDatasheetID string `yaml:"fusion_datasheet_id"`
	FusionViewID      string `yaml:"fusion_view_id"`
	FusionFieldKey    string `yaml:"fusion_field_key"`
	FusionPageSize    int    `yaml:"fusion_page_size"`

	Host                       string `yaml:"host"`
	Port                       string `yaml:"port"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`

	// Only the calling layer applies these; the analysis itself has no defaults.
	DefaultProductLine *string `yaml:"default_product_line"`
	DefaultMinCount    int     `yaml:"default_min_count"`

	DBPath             string `yaml:"db_path"`
	ReportOutputDir    string `yaml:"report_output_dir"`
	DigestSchedule     string `yaml:"digest_schedule"`
	DigestLookbackDays int    `yaml:"digest_lookback_days"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	Timezone  string `yaml:"timezone"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Infof("Loaded config from %s", configPath)
	}

	envOverride(&cfg.FusionBaseURL, "FUSION_BASE_URL")
	envOverride(&cfg.FusionToken, "FUSION_TOKEN")
	envOverride(&cfg.FusionDatasheetID, "FUSION_DATASHEET_ID")
	envOverride(&cfg.FusionViewID, "FUSION_VIEW_ID")
	envOverride(&cfg.FusionFieldKey, "FUSION_FIELD_KEY")
	envOverrideInt(&cfg.FusionPageSize, "FUSION_PAGE_SIZE")
	envOverride(&cfg.Host, "HOST")
	envOverride(&cfg.Port, "PORT")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideOptional(&cfg.DefaultProductLine, "DEFAULT_PRODUCT_LINE")
	envOverrideInt(&cfg.DefaultMinCount, "DEFAULT_MIN_COUNT")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverrideInt(&cfg.DigestLookbackDays, "DIGEST_LOOKBACK_DAYS")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.FusionBaseURL == "" {
		cfg.FusionBaseURL = defaultFusionBaseURL
	}
	if cfg.FusionDatasheetID == "" {
		cfg.FusionDatasheetID = defaultFusionDatasheetID
	}
	if cfg.FusionViewID == "" {
		cfg.FusionViewID = defaultFusionViewID
	}
	if cfg.FusionFieldKey == "" {
		cfg.FusionFieldKey = "name"
	}
	if cfg.FusionPageSize == 0 {
		cfg.FusionPageSize = maxFusionPageSize
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.DefaultProductLine == nil {
		online := "online"
		cfg.DefaultProductLine = &online
	}
	if cfg.DefaultMinCount == 0 {
		cfg.DefaultMinCount = 2
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./issueboard.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.DigestLookbackDays == 0 {
		cfg.DigestLookbackDays = 7
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
}

// validate resolves computed fields and reports the first invalid setting.
func validate(cfg *Config) error {
	if cfg.FusionToken == "" {
		return fmt.Errorf("Required config 'fusion_token' is not set (via config.yaml or FUSION_TOKEN)")
	}
	switch cfg.FusionFieldKey {
	case "name", "id":
	default:
		return fmt.Errorf("fusion_field_key must be 'name' or 'id', got '%s'", cfg.FusionFieldKey)
	}
	if cfg.FusionPageSize < 1 || cfg.FusionPageSize > maxFusionPageSize {
		return fmt.Errorf("invalid fusion_page_size '%d': must be between 1 and %d", cfg.FusionPageSize, maxFusionPageSize)
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("invalid port '%s': %v", cfg.Port, err)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.DefaultMinCount < 1 {
		return fmt.Errorf("invalid default_min_count '%d': must be >= 1", cfg.DefaultMinCount)
	}
	if cfg.DigestLookbackDays < 1 {
		return fmt.Errorf("invalid digest_lookback_days '%d': must be >= 1", cfg.DigestLookbackDays)
	}
	if schedule := strings.TrimSpace(cfg.DigestSchedule); schedule != "" {
		if _, err := ParseSchedule(schedule); err != nil {
			return fmt.Errorf("invalid digest_schedule '%s': %v", schedule, err)
		}
	}
	if (cfg.SlackBotToken == "") != (cfg.ReportChannelID == "") {
		return fmt.Errorf("slack_bot_token and report_channel_id must be set together")
	}

	switch cfg.LLMProvider {
	case "":
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
	default:
		return fmt.Errorf("llm_provider must be empty, 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level '%s': %v", cfg.LogLevel, err)
	}
	switch cfg.LogFormat {
	case "text", "json", "cli":
	default:
		return fmt.Errorf("log_format must be 'text', 'json' or 'cli', got '%s'", cfg.LogFormat)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}
	return nil
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// envOverrideOptional lets an env var set a value to the empty string.
func envOverrideOptional(field **string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		v := strings.TrimSpace(val)
		*field = &v
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// ProductLine returns the product filter applied when a request names none.
func (c Config) ProductLine() string {
	if c.DefaultProductLine == nil {
		return ""
	}
	return *c.DefaultProductLine
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.ReportChannelID != ""
}

func (c Config) LLMConfigured() bool {
	return c.LLMProvider != ""
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
