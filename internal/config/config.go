package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/FlowNice/job-application-agent/internal/secrets"
)

// EnvConfigPath names the environment variable consulted when --config is empty.
const EnvConfigPath = "TALENTFLOW_CONFIG"

const defaultConfigPath = "config.yaml"

// Config is the root configuration for the TalentFlow agent.
type Config struct {
	Agent        AgentConfig
	Database     DatabaseConfig
	Platforms    map[string]PlatformConfig
	Filters      FilterConfig
	AI           AIConfig
	Meeting      MeetingConfig
	Outreach     OutreachConfig
	Notification NotificationConfig
	API          APIConfig
	RateLimit    RateLimitConfig
}

// AgentConfig tunes the scan loop and the analysis retry policy.
type AgentConfig struct {
	ScanInterval        time.Duration
	MaxAnalysisAttempts int // 0 means unlimited
	AnalysisBackoff     time.Duration
	CacheTTL            time.Duration
}

// DatabaseConfig locates the lead store.
type DatabaseConfig struct {
	Path    string
	Timeout time.Duration
}

// PlatformConfig describes one discovery feed.
type PlatformConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FeedURL  string `yaml:"feed_url"`
	APIToken string `yaml:"api_token"`
}

// FilterConfig holds title keyword filters.
type FilterConfig struct {
	TitleKeywords        []string `yaml:"title_keywords"`
	TitleExcludeKeywords []string `yaml:"title_exclude_keywords"`
}

// AIConfig selects the LLM provider behind the analyzer.
type AIConfig struct {
	Provider string // "openai" or "gemini"
	BaseURL  string // openai only
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// MeetingConfig selects the meeting link issuer.
type MeetingConfig struct {
	Provider    string // "calendly", "static" or "none"
	APIToken    string
	EventTypeID string
	BaseURL     string
	Timeout     time.Duration
}

// OutreachConfig selects the outreach dispatcher.
type OutreachConfig struct {
	Type          string // "http" or "dry-run"
	Endpoint      string
	APIToken      string
	RatePerMinute int
	Timeout       time.Duration
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type              string // "log", "slack" or "email"
	WebhookURL        string
	OperatorEmail     string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	OnDispatchFailure bool
	Timeout           time.Duration
}

// APIConfig configures the operator HTTP API. An empty Listen disables it.
type APIConfig struct {
	Listen    string
	JWTSecret string
}

// RateLimitConfig limits discovery requests per platform.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SecretLookup returns the keychain value for account, or "" when absent.
type SecretLookup func(account string) (string, error)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultCalendlyBaseURL = "https://api.calendly.com"
	slackWebhookPrefix     = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Agent        rawAgentConfig            `yaml:"agent"`
	Database     rawDatabaseConfig         `yaml:"database"`
	Platforms    map[string]PlatformConfig `yaml:"platforms"`
	Filters      FilterConfig              `yaml:"filters"`
	AI           rawAIConfig               `yaml:"ai"`
	Meeting      rawMeetingConfig          `yaml:"meeting"`
	Outreach     rawOutreachConfig         `yaml:"outreach"`
	Notification rawNotificationConfig     `yaml:"notification"`
	API          rawAPIConfig              `yaml:"api"`
	RateLimit    rawRateLimitConfig        `yaml:"rate_limit"`
}

type rawAgentConfig struct {
	ScanInterval        string `yaml:"scan_interval"`
	MaxAnalysisAttempts *int   `yaml:"max_analysis_attempts"`
	AnalysisBackoff     string `yaml:"analysis_backoff"`
	CacheTTL            string `yaml:"cache_ttl"`
}

type rawDatabaseConfig struct {
	Path    string `yaml:"path"`
	Timeout string `yaml:"timeout"`
}

type rawAIConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

type rawMeetingConfig struct {
	Provider    string `yaml:"provider"`
	APIToken    string `yaml:"api_token"`
	EventTypeID string `yaml:"event_type_id"`
	BaseURL     string `yaml:"base_url"`
	Timeout     string `yaml:"timeout"`
}

type rawOutreachConfig struct {
	Type          string `yaml:"type"`
	Endpoint      string `yaml:"endpoint"`
	APIToken      string `yaml:"api_token"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Timeout       string `yaml:"timeout"`
}

type rawNotificationConfig struct {
	Type              string `yaml:"type"`
	WebhookURL        string `yaml:"webhook_url"`
	OperatorEmail     string `yaml:"operator_email"`
	SMTPHost          string `yaml:"smtp_host"`
	SMTPPort          int    `yaml:"smtp_port"`
	SMTPUsername      string `yaml:"smtp_username"`
	SMTPPassword      string `yaml:"smtp_password"`
	SMTPFrom          string `yaml:"smtp_from"`
	OnDispatchFailure *bool  `yaml:"on_dispatch_failure"`
	Timeout           string `yaml:"timeout"`
}

type rawAPIConfig struct {
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret"`
}

type rawRateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ResolvePath picks the config file: the flag value, then $TALENTFLOW_CONFIG,
// then ./config.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return defaultConfigPath
}

// Load reads and parses the YAML config file at path, fills empty credentials
// from lookup (may be nil), validates it, and returns Config.
//
// A .env file next to the config, and one in the working directory, are
// loaded into the environment first so ${VAR} references can use them.
// Variables already set in the environment win.
func Load(path string, lookup SecretLookup) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}

	if err := fillSecrets(cfg, lookup); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnabledPlatforms returns the names of enabled platforms in sorted order.
func (c *Config) EnabledPlatforms() []string {
	var names []string
	for name, p := range c.Platforms {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func loadDotEnv(configDir string) error {
	seen := make(map[string]bool)
	for _, dir := range []string{configDir, "."} {
		path, err := filepath.Abs(filepath.Join(dir, ".env"))
		if err != nil || seen[path] {
			continue
		}
		seen[path] = true
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	cfg := &Config{
		Database:  DatabaseConfig{Path: raw.Database.Path},
		Platforms: raw.Platforms,
		Filters:   raw.Filters,
		API:       APIConfig{Listen: raw.API.Listen, JWTSecret: raw.API.JWTSecret},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: raw.RateLimit.RequestsPerSecond,
			Burst:             raw.RateLimit.Burst,
		},
	}

	durations := []struct {
		key string
		raw string
		def time.Duration
		dst *time.Duration
	}{
		{"agent.scan_interval", raw.Agent.ScanInterval, 5 * time.Minute, &cfg.Agent.ScanInterval},
		{"agent.analysis_backoff", raw.Agent.AnalysisBackoff, 15 * time.Minute, &cfg.Agent.AnalysisBackoff},
		{"agent.cache_ttl", raw.Agent.CacheTTL, time.Hour, &cfg.Agent.CacheTTL},
		{"database.timeout", raw.Database.Timeout, 10 * time.Second, &cfg.Database.Timeout},
		{"ai.timeout", raw.AI.Timeout, 60 * time.Second, &cfg.AI.Timeout},
		{"meeting.timeout", raw.Meeting.Timeout, 15 * time.Second, &cfg.Meeting.Timeout},
		{"outreach.timeout", raw.Outreach.Timeout, 30 * time.Second, &cfg.Outreach.Timeout},
		{"notification.timeout", raw.Notification.Timeout, 15 * time.Second, &cfg.Notification.Timeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.raw, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cfg.Agent.MaxAnalysisAttempts = 3
	if raw.Agent.MaxAnalysisAttempts != nil {
		cfg.Agent.MaxAnalysisAttempts = *raw.Agent.MaxAnalysisAttempts
	}

	cfg.AI.Provider = strings.ToLower(orDefault(raw.AI.Provider, "openai"))
	cfg.AI.BaseURL = raw.AI.BaseURL
	cfg.AI.Model = raw.AI.Model
	cfg.AI.APIKey = raw.AI.APIKey
	switch cfg.AI.Provider {
	case "openai":
		cfg.AI.BaseURL = orDefault(cfg.AI.BaseURL, defaultOpenAIBaseURL)
		cfg.AI.Model = orDefault(cfg.AI.Model, defaultOpenAIModel)
	case "gemini":
		cfg.AI.Model = orDefault(cfg.AI.Model, defaultGeminiModel)
	}

	cfg.Meeting.Provider = strings.ToLower(orDefault(raw.Meeting.Provider, "none"))
	cfg.Meeting.APIToken = raw.Meeting.APIToken
	cfg.Meeting.EventTypeID = raw.Meeting.EventTypeID
	cfg.Meeting.BaseURL = raw.Meeting.BaseURL
	if cfg.Meeting.Provider == "calendly" {
		cfg.Meeting.BaseURL = orDefault(cfg.Meeting.BaseURL, defaultCalendlyBaseURL)
	}

	cfg.Outreach.Type = strings.ToLower(orDefault(raw.Outreach.Type, "dry-run"))
	cfg.Outreach.Endpoint = raw.Outreach.Endpoint
	cfg.Outreach.APIToken = raw.Outreach.APIToken
	cfg.Outreach.RatePerMinute = raw.Outreach.RatePerMinute
	if cfg.Outreach.RatePerMinute == 0 {
		cfg.Outreach.RatePerMinute = 10
	}

	n := raw.Notification
	cfg.Notification = NotificationConfig{
		Type:              strings.ToLower(orDefault(n.Type, "log")),
		WebhookURL:        n.WebhookURL,
		OperatorEmail:     n.OperatorEmail,
		SMTPHost:          n.SMTPHost,
		SMTPPort:          n.SMTPPort,
		SMTPUsername:      n.SMTPUsername,
		SMTPPassword:      n.SMTPPassword,
		SMTPFrom:          n.SMTPFrom,
		OnDispatchFailure: true,
		Timeout:           cfg.Notification.Timeout,
	}
	if n.OnDispatchFailure != nil {
		cfg.Notification.OnDispatchFailure = *n.OnDispatchFailure
	}
	if cfg.Notification.SMTPPort == 0 {
		cfg.Notification.SMTPPort = 587
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 1
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}

	return cfg, nil
}

// fillSecrets pulls credentials the file left empty from the keychain. Only
// credentials the selected components need are looked up.
func fillSecrets(cfg *Config, lookup SecretLookup) error {
	if lookup == nil {
		return nil
	}
	fields := []struct {
		needed  bool
		account string
		dst     *string
	}{
		{true, secrets.AIAPIKey, &cfg.AI.APIKey},
		{cfg.Meeting.Provider == "calendly", secrets.MeetingAPIToken, &cfg.Meeting.APIToken},
		{cfg.Outreach.Type == "http", secrets.OutreachAPIToken, &cfg.Outreach.APIToken},
		{cfg.Notification.Type == "slack", secrets.SlackWebhookURL, &cfg.Notification.WebhookURL},
		{cfg.Notification.Type == "email" && cfg.Notification.SMTPUsername != "", secrets.SMTPPassword, &cfg.Notification.SMTPPassword},
		{true, secrets.JWTSecret, &cfg.API.JWTSecret},
	}
	for _, f := range fields {
		if !f.needed || *f.dst != "" {
			continue
		}
		v, err := lookup(f.account)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.account, err)
		}
		*f.dst = v
	}
	return nil
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Agent.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("agent.scan_interval must be positive, got %v", cfg.Agent.ScanInterval))
	}
	if cfg.Agent.MaxAnalysisAttempts < 0 {
		errs = append(errs, fmt.Errorf("agent.max_analysis_attempts must not be negative, got %d", cfg.Agent.MaxAnalysisAttempts))
	}
	if cfg.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if len(cfg.EnabledPlatforms()) == 0 {
		errs = append(errs, errors.New("at least one platform must be enabled"))
	}
	for _, name := range cfg.EnabledPlatforms() {
		if cfg.Platforms[name].FeedURL == "" {
			errs = append(errs, fmt.Errorf("platforms.%s.feed_url is required when enabled", name))
		}
	}

	switch cfg.AI.Provider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("ai.provider must be \"openai\" or \"gemini\", got %q", cfg.AI.Provider))
	}
	if cfg.AI.APIKey == "" {
		errs = append(errs, errors.New("ai.api_key is required (config, env or keychain account ai_api_key)"))
	}

	switch cfg.Meeting.Provider {
	case "none":
	case "calendly":
		if cfg.Meeting.APIToken == "" {
			errs = append(errs, errors.New("meeting.api_token is required when provider is \"calendly\""))
		}
		if cfg.Meeting.EventTypeID == "" {
			errs = append(errs, errors.New("meeting.event_type_id is required when provider is \"calendly\""))
		}
	case "static":
		if cfg.Meeting.BaseURL == "" {
			errs = append(errs, errors.New("meeting.base_url is required when provider is \"static\""))
		}
	default:
		errs = append(errs, fmt.Errorf("meeting.provider must be \"calendly\", \"static\" or \"none\", got %q", cfg.Meeting.Provider))
	}

	switch cfg.Outreach.Type {
	case "dry-run":
	case "http":
		if cfg.Outreach.Endpoint == "" {
			errs = append(errs, errors.New("outreach.endpoint is required when type is \"http\""))
		}
	default:
		errs = append(errs, fmt.Errorf("outreach.type must be \"http\" or \"dry-run\", got %q", cfg.Outreach.Type))
	}
	if cfg.Outreach.RatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("outreach.rate_per_minute must not be negative, got %d", cfg.Outreach.RatePerMinute))
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			errs = append(errs, fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix))
		}
	case "email":
		if cfg.Notification.SMTPHost == "" || cfg.Notification.SMTPFrom == "" || cfg.Notification.OperatorEmail == "" {
			errs = append(errs, errors.New("notification.smtp_host, smtp_from and operator_email are required when type is \"email\""))
		}
	default:
		errs = append(errs, fmt.Errorf("notification.type must be \"log\", \"slack\" or \"email\", got %q", cfg.Notification.Type))
	}

	if cfg.API.Listen != "" && len(cfg.API.JWTSecret) < 32 {
		errs = append(errs, errors.New("api.jwt_secret must be at least 32 bytes when api.listen is set"))
	}

	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}

	return errors.Join(errs...)
}

func parseDuration(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, raw, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
