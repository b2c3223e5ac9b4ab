// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultJWTExpiresIn    = "24h"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "ninabot"
	DefaultPGSSLMode       = "disable"
	DefaultDebounceWindow  = 1500 * time.Millisecond
	DefaultReplyTimeout    = 8 * time.Second
	DefaultCRMTimeout      = 30 * time.Second
	DefaultCountryCode     = "+52"
	DefaultSendRatePerSec  = 5
	DefaultFollowupPattern = "@every 15m"
	DefaultFollowupAfter   = 12 * time.Hour
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Twilio   TwilioConfig   `toml:"twilio"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Mailgun  MailgunConfig  `toml:"mailgun"`
	Debounce DebounceConfig `toml:"debounce"`
	CRM      CRMConfig      `toml:"crm"`
	Followup FollowupConfig `toml:"followup"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds the JWT secret and token expiry for the operator API.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// TwilioConfig holds the messaging provider credentials and sender number.
type TwilioConfig struct {
	AccountSID        string `toml:"account_sid"`
	AuthToken         string `toml:"auth_token"`
	WhatsAppNumber    string `toml:"whatsapp_number"`
	SalesNumber       string `toml:"sales_number"`
	StatusCallbackURL string `toml:"status_callback_url"`
	SendRatePerSecond int    `toml:"send_rate_per_second"`
}

// OpenAIConfig holds the AI orchestrator credentials and reply deadline.
type OpenAIConfig struct {
	APIKey              string `toml:"api_key"`
	Model               string `toml:"model"`
	ReplyTimeoutSeconds int    `toml:"reply_timeout_seconds"`
}

// ReplyTimeout returns the hard deadline applied to AI reply generation.
func (c OpenAIConfig) ReplyTimeout() time.Duration {
	if c.ReplyTimeoutSeconds <= 0 {
		return DefaultReplyTimeout
	}
	return time.Duration(c.ReplyTimeoutSeconds) * time.Second
}

// MailgunConfig holds the email alert credentials and recipients.
type MailgunConfig struct {
	APIKey    string   `toml:"api_key"`
	Domain    string   `toml:"domain"`
	From      string   `toml:"from"`
	SalesTeam []string `toml:"sales_team"`
}

// DebounceConfig holds the message coalescing window.
type DebounceConfig struct {
	WindowMillis int `toml:"window_millis"`
}

// Window returns the coalescing window, falling back to the default when unset.
func (c DebounceConfig) Window() time.Duration {
	if c.WindowMillis <= 0 {
		return DefaultDebounceWindow
	}
	return time.Duration(c.WindowMillis) * time.Millisecond
}

// PropertyConfig describes one sales property (tenant) and its CRM credentials.
// APIKey may be empty: the property exists but injection is not provisioned yet.
type PropertyConfig struct {
	Key         string `toml:"key"`
	ProjectID   int    `toml:"project_id"`
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	APIKey      string `toml:"api_key"`
}

// CRMConfig holds the registrant API endpoint and the per-property table.
type CRMConfig struct {
	BaseURL          string           `toml:"base_url"`
	TimeoutSeconds   int              `toml:"timeout_seconds"`
	CountryCode      string           `toml:"country_code"`
	FallbackProperty string           `toml:"fallback_property"`
	Properties       []PropertyConfig `toml:"properties"`
}

// Timeout returns the network timeout for CRM calls.
func (c CRMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultCRMTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FollowupConfig holds the inactivity follow-up job settings.
type FollowupConfig struct {
	Enabled            bool   `toml:"enabled"`
	Pattern            string `toml:"pattern"`
	InactiveAfterHours int    `toml:"inactive_after_hours"`
	Message            string `toml:"message"`
}

// InactiveAfter returns how long a session must be idle before a follow-up is due.
func (c FollowupConfig) InactiveAfter() time.Duration {
	if c.InactiveAfterHours <= 0 {
		return DefaultFollowupAfter
	}
	return time.Duration(c.InactiveAfterHours) * time.Hour
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// Secrets may be supplied via environment instead of TOML.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Twilio: TwilioConfig{
			SendRatePerSecond: DefaultSendRatePerSec,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		CRM: CRMConfig{
			CountryCode:      DefaultCountryCode,
			FallbackProperty: "residencias",
		},
		Followup: FollowupConfig{
			Pattern: DefaultFollowupPattern,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Auth.JWTSecret, "NINABOT_JWT_SECRET")
	overrideString(&cfg.Postgres.Password, "NINABOT_PG_PASSWORD")
	overrideString(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	overrideString(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	overrideString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Mailgun.APIKey, "MAILGUN_API_KEY")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
