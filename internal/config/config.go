package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level videodesk configuration.
type Config struct {
	DataDir  string         `json:"data_dir"`
	API      APIConfig      `json:"api"`
	Zendesk  ZendeskConfig  `json:"zendesk"`
	Archives ArchivesConfig `json:"archives"`
	Slack    *SlackConfig   `json:"slack,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// ZendeskConfig holds ticketing API credentials and the round-robin
// assignment defaults.
type ZendeskConfig struct {
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	APIToken  string `json:"api_token"`

	ViewID   int64   `json:"view_id,omitempty"`
	FieldID  int64   `json:"field_id,omitempty"`
	AgentIDs []int64 `json:"agent_ids,omitempty"`

	// PaceMS is the delay before each bulk-update call, in milliseconds.
	// Zero means the default of 500.
	PaceMS int `json:"pace_ms,omitempty"`

	// Schedule is an optional cron expression for unattended assignment
	// runs, e.g. "0 7 * * 1-5" or "@every 4h".
	Schedule string `json:"schedule,omitempty"`

	// SubjectPrefix is prepended to escalation ticket subjects.
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// Configured reports whether ticketing credentials are present.
func (z ZendeskConfig) Configured() bool {
	return z.Subdomain != "" && z.Email != "" && z.APIToken != ""
}

// Pace returns the bulk-update pacing interval.
func (z ZendeskConfig) Pace() time.Duration {
	if z.PaceMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(z.PaceMS) * time.Millisecond
}

// ArchivesConfig holds the published CSV archive locations.
type ArchivesConfig struct {
	OfficialURL   string `json:"official_url,omitempty"`
	ThirdPartyURL string `json:"third_party_url,omitempty"`
}

// SlackConfig holds run-summary notification settings.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with the
// VIDEODESK_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DataDir: getenv("VIDEODESK_DATA_DIR", "/data"),
		API: APIConfig{
			Host: getenv("VIDEODESK_API_HOST", "0.0.0.0"),
			Port: getenvInt("VIDEODESK_API_PORT", 8080),
			Key:  os.Getenv("VIDEODESK_API_KEY"),
		},
		Zendesk: ZendeskConfig{
			Subdomain:     os.Getenv("VIDEODESK_ZENDESK_SUBDOMAIN"),
			Email:         os.Getenv("VIDEODESK_ZENDESK_EMAIL"),
			APIToken:      os.Getenv("VIDEODESK_ZENDESK_API_TOKEN"),
			ViewID:        getenvInt64("VIDEODESK_ZENDESK_VIEW_ID", 0),
			FieldID:       getenvInt64("VIDEODESK_ZENDESK_FIELD_ID", 0),
			PaceMS:        getenvInt("VIDEODESK_ZENDESK_PACE_MS", 0),
			Schedule:      os.Getenv("VIDEODESK_ZENDESK_SCHEDULE"),
			SubjectPrefix: getenv("VIDEODESK_ZENDESK_SUBJECT_PREFIX", "Video Review:"),
		},
		Archives: ArchivesConfig{
			OfficialURL:   os.Getenv("VIDEODESK_ARCHIVE_OFFICIAL_URL"),
			ThirdPartyURL: os.Getenv("VIDEODESK_ARCHIVE_THIRD_PARTY_URL"),
		},
	}

	if ids := os.Getenv("VIDEODESK_ZENDESK_AGENT_IDS"); ids != "" {
		parsed, err := parseInt64List(ids)
		if err != nil {
			return nil, fmt.Errorf("config: VIDEODESK_ZENDESK_AGENT_IDS: %w", err)
		}
		cfg.Zendesk.AgentIDs = parsed
	}

	if token := os.Getenv("VIDEODESK_SLACK_BOT_TOKEN"); token != "" {
		cfg.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("VIDEODESK_SLACK_CHANNEL"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required and inconsistent fields.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}

	z := c.Zendesk
	if (z.Subdomain != "" || z.Email != "" || z.APIToken != "") && !z.Configured() {
		errs = append(errs, "zendesk requires subdomain, email, and api_token together")
	}
	if z.Schedule != "" {
		if !z.Configured() {
			errs = append(errs, "zendesk.schedule requires zendesk credentials")
		}
		if z.ViewID == 0 || z.FieldID == 0 || len(z.AgentIDs) == 0 {
			errs = append(errs, "zendesk.schedule requires view_id, field_id, and agent_ids")
		}
	}
	if dup := duplicateInt64(z.AgentIDs); dup != 0 {
		errs = append(errs, fmt.Sprintf("zendesk.agent_ids contains duplicate %d", dup))
	}

	if c.Slack != nil {
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
		if c.Slack.Channel == "" {
			errs = append(errs, "slack.channel is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}

// duplicateInt64 returns the first repeated value, or 0 when all values
// are distinct.
func duplicateInt64(ids []int64) int64 {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return 0
}
