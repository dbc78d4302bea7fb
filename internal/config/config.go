package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/pkg/model"
	"github.com/quotawatch/quotawatch/pkg/notify"
)

// Config holds all quotawatch configuration.
type Config struct {
	Accounts []model.Account   `mapstructure:"accounts"`
	Browser  browser.Config    `mapstructure:"browser"`
	Portal   PortalConfig      `mapstructure:"portal"`
	Alerts   AlertsConfig      `mapstructure:"alerts"`
	Notify   NotifyConfig      `mapstructure:"notify"`
	Report   ReportConfig      `mapstructure:"report"`
	Mail     notify.SMTPConfig `mapstructure:"mail"`
	Storage  StorageConfig     `mapstructure:"storage"`
	Watch    WatchConfig       `mapstructure:"watch"`
	Logging  LoggingConfig     `mapstructure:"logging"`
}

// PortalConfig defines portal access settings.
type PortalConfig struct {
	// Profile points at an optional YAML selector overlay for the portal.
	Profile     string `mapstructure:"profile"`
	Concurrency int    `mapstructure:"concurrency"`
}

// AlertsConfig defines quota and renewal thresholds.
type AlertsConfig struct {
	YellowGB            float64 `mapstructure:"yellow_gb"`
	RedGB               float64 `mapstructure:"red_gb"`
	RenewalWindowDays   int     `mapstructure:"renewal_window_days"`
	SummaryHour         int     `mapstructure:"summary_hour"`
	SummaryToleranceMin int     `mapstructure:"summary_tolerance_min"`
}

// NotifyConfig defines notification integrations.
type NotifyConfig struct {
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Webhook      WebhookConfig  `mapstructure:"webhook"`
	MessageDelay string         `mapstructure:"message_delay"`
}

// TelegramConfig defines Telegram bot settings.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// ReportConfig defines xlsx report settings.
type ReportConfig struct {
	Path     string `mapstructure:"path"`
	Currency string `mapstructure:"currency"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// WatchConfig defines the scheduled-run settings.
type WatchConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".quotawatch"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".quotawatch", "quotawatch.db"))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("portal.concurrency", 2)
	v.SetDefault("alerts.yellow_gb", 80.0)
	v.SetDefault("alerts.red_gb", 20.0)
	v.SetDefault("alerts.renewal_window_days", 5)
	v.SetDefault("alerts.summary_hour", 9)
	v.SetDefault("alerts.summary_tolerance_min", 10)
	v.SetDefault("notify.message_delay", "1s")
	v.SetDefault("report.path", "usage_report.xlsx")
	v.SetDefault("report.currency", "EGP")
	v.SetDefault("mail.port", 587)
	v.SetDefault("watch.schedule", "0 9 * * *")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("QW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Accounts) == 0 {
		cfg.Accounts = accountsFromEnv()
	}

	return &cfg, nil
}

// accountsFromEnv enumerates ACCOUNT1_PHONE, ACCOUNT2_PHONE, ... until a
// number or password is missing. The first gap ends the enumeration.
func accountsFromEnv() []model.Account {
	var accounts []model.Account
	for i := 1; ; i++ {
		number := os.Getenv(fmt.Sprintf("ACCOUNT%d_PHONE", i))
		password := os.Getenv(fmt.Sprintf("ACCOUNT%d_PASS", i))
		if number == "" || password == "" {
			break
		}

		serviceType := os.Getenv(fmt.Sprintf("ACCOUNT%d_TYPE", i))
		if serviceType == "" {
			serviceType = "Internet"
		}

		accounts = append(accounts, model.Account{
			Number:      number,
			Password:    password,
			ServiceType: serviceType,
			Label:       os.Getenv(fmt.Sprintf("ACCOUNT%d_NAME", i)),
		})
	}
	return accounts
}
