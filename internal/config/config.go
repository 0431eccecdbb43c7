package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for voicedesk
type Config struct {
	LLM           LLMConfig           `json:"llm" yaml:"llm"`
	Vendor        VendorConfig        `json:"vendor" yaml:"vendor"`
	Database      DatabaseConfig      `json:"database" yaml:"database"`
	Server        ServerConfig        `json:"server" yaml:"server"`
	Analysis      AnalysisConfig      `json:"analysis" yaml:"analysis"`
	ABTest        ABTestConfig        `json:"ab_test" yaml:"ab_test"`
	VendorSync    VendorSyncConfig    `json:"vendor_sync" yaml:"vendor_sync"`
	KnowledgeBase KnowledgeBaseConfig `json:"knowledge_base" yaml:"knowledge_base"`
	Log           LogConfig           `json:"log" yaml:"log"`
}

// LLMConfig holds the hosted model used for analysis and rewrites
type LLMConfig struct {
	Provider          string   `json:"provider" yaml:"provider"` // "anthropic" or "openai"
	APIKey            string   `json:"api_key" yaml:"api_key"`
	BaseURL           string   `json:"base_url" yaml:"base_url"`
	Model             string   `json:"model" yaml:"model"`
	AnalysisModel     string   `json:"analysis_model" yaml:"analysis_model"` // defaults to Model
	MaxTokens         int      `json:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int      `json:"requests_per_minute" yaml:"requests_per_minute"` // 0 disables the limiter
	Timeout           Duration `json:"timeout" yaml:"timeout"`
}

// VendorConfig holds the voice vendor (Retell) API configuration
type VendorConfig struct {
	BaseURL       string   `json:"base_url" yaml:"base_url"`
	APIKey        string   `json:"api_key" yaml:"api_key"`
	WebhookURL    string   `json:"webhook_url" yaml:"webhook_url"`
	WebhookSecret string   `json:"webhook_secret" yaml:"webhook_secret"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url" yaml:"postgres_url"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host        string   `json:"host" yaml:"host"`
	Port        int      `json:"port" yaml:"port"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// AnalysisConfig controls batch analysis defaults and the nightly job
type AnalysisConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Schedule        string `json:"schedule" yaml:"schedule"`
	CallCount       int    `json:"call_count" yaml:"call_count"`
	DaysSince       int    `json:"days_since" yaml:"days_since"`
	MinExchanges    int    `json:"min_exchanges" yaml:"min_exchanges"`
	ExtractPatterns bool   `json:"extract_patterns" yaml:"extract_patterns"`
}

// ABTestConfig is the split and length of new A/B tests
type ABTestConfig struct {
	ControlPercent int      `json:"control_percent" yaml:"control_percent"`
	TestPercent    int      `json:"test_percent" yaml:"test_percent"`
	Duration       Duration `json:"duration" yaml:"duration"`
	SweepSchedule  string   `json:"sweep_schedule" yaml:"sweep_schedule"`
}

// VendorSyncConfig controls the prompt delivery outbox
type VendorSyncConfig struct {
	Schedule    string `json:"schedule" yaml:"schedule"`
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts"`
	BatchSize   int    `json:"batch_size" yaml:"batch_size"`
}

// KnowledgeBaseConfig controls fetching knowledge base items from web pages
type KnowledgeBaseConfig struct {
	FetchTimeout      Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
	AllowPrivateHosts bool     `json:"allow_private_hosts" yaml:"allow_private_hosts"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn or error
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "anthropic",
			Model:             "claude-sonnet-4-5",
			MaxTokens:         8192,
			RequestsPerMinute: 50,
			Timeout:           Duration(2 * time.Minute),
		},
		Vendor: VendorConfig{
			BaseURL: "https://api.retellai.com",
			Timeout: Duration(15 * time.Second),
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Analysis: AnalysisConfig{
			Enabled:         true,
			Schedule:        "0 3 * * *",
			CallCount:       10,
			DaysSince:       7,
			MinExchanges:    2,
			ExtractPatterns: true,
		},
		ABTest: ABTestConfig{
			ControlPercent: 75,
			TestPercent:    25,
			Duration:       Duration(7 * 24 * time.Hour),
			SweepSchedule:  "@hourly",
		},
		VendorSync: VendorSyncConfig{
			Schedule:    "@every 1m",
			MaxAttempts: 8,
			BatchSize:   25,
		},
		KnowledgeBase: KnowledgeBaseConfig{
			FetchTimeout: Duration(20 * time.Second),
		},
		Log: LogConfig{Level: "info"},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func envDuration(key string, target *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = Duration(d)
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load reads the config file, applies environment overrides and validates the result
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := cfg.decode(configPath, data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
		slog.Debug("loaded config file", "path", configPath)
	} else if os.Getenv("VOICEDESK_CONFIG") != "" {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	default:
		return json.Unmarshal(data, c)
	}
}

func (c *Config) applyEnv() {
	envString("VOICEDESK_LLM_PROVIDER", &c.LLM.Provider)
	envString("VOICEDESK_LLM_API_KEY", &c.LLM.APIKey)
	envString("VOICEDESK_LLM_BASE_URL", &c.LLM.BaseURL)
	envString("VOICEDESK_LLM_MODEL", &c.LLM.Model)
	envString("VOICEDESK_LLM_ANALYSIS_MODEL", &c.LLM.AnalysisModel)
	envInt("VOICEDESK_LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	envInt("VOICEDESK_LLM_REQUESTS_PER_MINUTE", &c.LLM.RequestsPerMinute)
	envDuration("VOICEDESK_LLM_TIMEOUT", &c.LLM.Timeout)

	envString("VOICEDESK_RETELL_BASE_URL", &c.Vendor.BaseURL)
	envString("VOICEDESK_RETELL_API_KEY", &c.Vendor.APIKey)
	envString("VOICEDESK_WEBHOOK_URL", &c.Vendor.WebhookURL)
	envString("VOICEDESK_WEBHOOK_SECRET", &c.Vendor.WebhookSecret)
	envDuration("VOICEDESK_RETELL_TIMEOUT", &c.Vendor.Timeout)

	envString("VOICEDESK_POSTGRES_URL", &c.Database.PostgresURL)

	envString("VOICEDESK_SERVER_HOST", &c.Server.Host)
	envInt("VOICEDESK_SERVER_PORT", &c.Server.Port)
	envStringSlice("VOICEDESK_CORS_ORIGINS", &c.Server.CORSOrigins)

	envBool("VOICEDESK_ANALYSIS_ENABLED", &c.Analysis.Enabled)
	envString("VOICEDESK_ANALYSIS_SCHEDULE", &c.Analysis.Schedule)
	envInt("VOICEDESK_ANALYSIS_CALL_COUNT", &c.Analysis.CallCount)
	envInt("VOICEDESK_ANALYSIS_DAYS_SINCE", &c.Analysis.DaysSince)
	envInt("VOICEDESK_ANALYSIS_MIN_EXCHANGES", &c.Analysis.MinExchanges)

	envInt("VOICEDESK_AB_TEST_CONTROL_PERCENT", &c.ABTest.ControlPercent)
	envInt("VOICEDESK_AB_TEST_TEST_PERCENT", &c.ABTest.TestPercent)
	envDuration("VOICEDESK_AB_TEST_DURATION", &c.ABTest.Duration)

	envString("VOICEDESK_VENDOR_SYNC_SCHEDULE", &c.VendorSync.Schedule)
	envInt("VOICEDESK_VENDOR_SYNC_MAX_ATTEMPTS", &c.VendorSync.MaxAttempts)

	envBool("VOICEDESK_KB_ALLOW_PRIVATE_HOSTS", &c.KnowledgeBase.AllowPrivateHosts)

	envString("VOICEDESK_LOG_LEVEL", &c.Log.Level)
}

// IsLLMConfigured returns true if an API key for the LLM provider is set
func (c *Config) IsLLMConfigured() bool {
	return c.LLM.APIKey != ""
}

// IsVendorConfigured returns true if the Retell API can be called
func (c *Config) IsVendorConfigured() bool {
	return c.Vendor.APIKey != ""
}

// AnalysisModel returns the model used for batch analysis.
func (c *Config) AnalysisModel() string {
	if c.LLM.AnalysisModel != "" {
		return c.LLM.AnalysisModel
	}
	return c.LLM.Model
}

// SlogLevel maps the configured log level to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	copied := *c
	copied.LLM.APIKey = mask(c.LLM.APIKey)
	copied.Vendor.APIKey = mask(c.Vendor.APIKey)
	copied.Vendor.WebhookSecret = mask(c.Vendor.WebhookSecret)
	if u, err := url.Parse(c.Database.PostgresURL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			copied.Database.PostgresURL = u.String()
		}
	}
	return &copied
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func validSchedule(expr string) bool {
	_, err := cron.ParseStandard(expr)
	return err == nil
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	// LLM validation
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai":
	default:
		errs = append(errs, "LLM provider must be 'anthropic' or 'openai'")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, "LLM requests_per_minute cannot be negative")
	}
	if c.LLM.BaseURL != "" && !isValidURL(c.LLM.BaseURL) {
		errs = append(errs, "LLM base URL must be a valid URL")
	}

	// Vendor validation
	if !isValidURL(c.Vendor.BaseURL) {
		errs = append(errs, "Retell base URL must be a valid URL")
	}
	if c.Vendor.WebhookURL != "" && !isValidURL(c.Vendor.WebhookURL) {
		errs = append(errs, "webhook URL must be a valid URL")
	}

	// Database validation
	if c.Database.PostgresURL != "" && !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	// Analysis validation
	if c.Analysis.CallCount < 1 || c.Analysis.CallCount > 100 {
		errs = append(errs, "analysis call_count must be between 1 and 100")
	}
	if c.Analysis.DaysSince < 1 {
		errs = append(errs, "analysis days_since must be positive")
	}
	if c.Analysis.MinExchanges < 1 {
		errs = append(errs, "analysis min_exchanges must be at least 1")
	}
	if c.Analysis.Enabled && !validSchedule(c.Analysis.Schedule) {
		errs = append(errs, fmt.Sprintf("analysis schedule %q is not a valid cron expression", c.Analysis.Schedule))
	}

	// A/B test validation
	if c.ABTest.ControlPercent < 1 || c.ABTest.TestPercent < 1 || c.ABTest.ControlPercent+c.ABTest.TestPercent != 100 {
		errs = append(errs, "A/B test percentages must both be positive and add up to 100")
	}
	if c.ABTest.Duration <= 0 {
		errs = append(errs, "A/B test duration must be positive")
	}
	if c.ABTest.SweepSchedule != "" && !validSchedule(c.ABTest.SweepSchedule) {
		errs = append(errs, fmt.Sprintf("A/B test sweep schedule %q is not a valid cron expression", c.ABTest.SweepSchedule))
	}

	// Outbox validation
	if c.VendorSync.Schedule != "" && !validSchedule(c.VendorSync.Schedule) {
		errs = append(errs, fmt.Sprintf("vendor sync schedule %q is not a valid cron expression", c.VendorSync.Schedule))
	}
	if c.VendorSync.MaxAttempts < 1 {
		errs = append(errs, "vendor sync max_attempts must be at least 1")
	}
	if c.VendorSync.BatchSize < 1 {
		errs = append(errs, "vendor sync batch_size must be at least 1")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "log level must be debug, info, warn or error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("VOICEDESK_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configDir := filepath.Join(homeDir, ".config", "voicedesk")
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		configPath := filepath.Join(configDir, name)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return filepath.Join(configDir, "config.json")
}
