// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	WebhookAddr   string `mapstructure:"webhook_addr"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	VenueMode        string `mapstructure:"venue_mode"`
	GatewayURL       string `mapstructure:"gateway_url"`
	GatewayAPIKey    string `mapstructure:"gateway_api_key"`
	GatewayTimeoutMs int    `mapstructure:"gateway_timeout_ms"`
	GatewayRetries   int    `mapstructure:"gateway_retries"`

	InitialBalance float64 `mapstructure:"initial_balance"`
	SimSeed        int64   `mapstructure:"sim_seed"`

	MaxOpenPositions int    `mapstructure:"max_open_positions"`
	StartDate        string `mapstructure:"start_date"`

	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`

	LedgerPath  string `mapstructure:"ledger_path"`
	InboxPath   string `mapstructure:"inbox_path"`
	InboxPollMs int    `mapstructure:"inbox_poll_ms"`

	DebugLogging bool `mapstructure:"debug_logging"`
}

const (
	DefaultWebhookAddr      = ":8080"
	DefaultVenueMode        = "simulated"
	DefaultGatewayTimeoutMs = 10000
	DefaultGatewayRetries   = 3
	DefaultInitialBalance   = 1000.0
	DefaultMaxOpenPositions = 4
	DefaultLedgerPath       = "data/trades.csv"
	DefaultInboxPollMs      = 5000

	startDateLayout = "2006-01-02"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"webhook_addr":       DefaultWebhookAddr,
		"venue_mode":         DefaultVenueMode,
		"gateway_timeout_ms": DefaultGatewayTimeoutMs,
		"gateway_retries":    DefaultGatewayRetries,
		"initial_balance":    DefaultInitialBalance,
		"max_open_positions": DefaultMaxOpenPositions,
		"ledger_path":        DefaultLedgerPath,
		"inbox_poll_ms":      DefaultInboxPollMs,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.WebhookSecret == "" {
		return errors.New("missing webhook_secret in configuration")
	}

	switch cfg.VenueMode {
	case "simulated":
	case "live", "live-fallback":
		if cfg.GatewayURL == "" {
			return fmt.Errorf("venue_mode %q requires gateway_url", cfg.VenueMode)
		}
		if err := validateHTTPURL(cfg.GatewayURL); err != nil {
			return errors.New("invalid gateway URL")
		}
	default:
		return fmt.Errorf("invalid venue_mode %q", cfg.VenueMode)
	}

	if cfg.StartDate != "" {
		if _, err := time.Parse(startDateLayout, cfg.StartDate); err != nil {
			return fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", cfg.StartDate)
		}
	}

	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.InitialBalance < 0 {
		return errors.New("invalid initial_balance")
	}
	if cfg.MaxOpenPositions < 0 {
		return errors.New("invalid max_open_positions")
	}
	if cfg.GatewayTimeoutMs <= 0 {
		return errors.New("invalid gateway_timeout_ms")
	}
	if cfg.GatewayRetries < 0 {
		return errors.New("invalid gateway_retries")
	}
	if cfg.InboxPollMs <= 0 {
		return errors.New("invalid inbox_poll_ms")
	}
	return nil
}

func validateHTTPURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// StartTime returns the configured operating start date, defaulting to now
// for fresh deployments.
func (c *Config) StartTime() time.Time {
	if c.StartDate == "" {
		return time.Now()
	}
	t, _ := time.Parse(startDateLayout, c.StartDate)
	return t
}

// GatewayTimeout returns the gateway request timeout as a duration.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutMs) * time.Millisecond
}

// InboxPollInterval returns the signal inbox polling interval.
func (c *Config) InboxPollInterval() time.Duration {
	return time.Duration(c.InboxPollMs) * time.Millisecond
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("PERPS_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if secret := v.GetString("WEBHOOK_SECRET"); secret != "" {
		cfg.WebhookSecret = secret
	}
	if key := v.GetString("GATEWAY_API_KEY"); key != "" {
		cfg.GatewayAPIKey = key
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
}
