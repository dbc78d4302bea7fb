package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/internal/config"
	"github.com/quotawatch/quotawatch/internal/portal"
	"github.com/quotawatch/quotawatch/internal/runner"
	"github.com/quotawatch/quotawatch/internal/scrape"
	"github.com/quotawatch/quotawatch/pkg/notify"
	"github.com/quotawatch/quotawatch/pkg/report"
	"github.com/quotawatch/quotawatch/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quotawatch",
	Short: "quotawatch - Unattended usage and balance monitoring for my.te.eg accounts",
	Long: `quotawatch logs into every configured my.te.eg account, scrapes quota and
balance figures from the dashboard, writes a styled xlsx report, and alerts
through Telegram, webhooks and mail when quota runs low or a renewal is at
risk. Runs once or on a schedule.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.quotawatch/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates notification channels from config.
func initNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token != "" {
		notifiers = append(notifiers, notify.NewTelegramNotifier(
			cfg.Notify.Telegram.Token,
			cfg.Notify.Telegram.ChatID,
		))
	}

	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(
			cfg.Notify.Webhook.URL,
			cfg.Notify.Webhook.Secret,
		))
	}

	return notifiers
}

// initRunner wires a fully assembled runner. The caller closes the
// returned storage when done.
func initRunner(cfg *config.Config, logger *slog.Logger) (*runner.Runner, storage.Storage, error) {
	profile := portal.Default()
	if cfg.Portal.Profile != "" {
		loaded, err := portal.Load(cfg.Portal.Profile)
		if err != nil {
			return nil, nil, err
		}
		profile = loaded
	}

	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	engine := browser.NewRodEngine(cfg.Browser)
	pipeline := scrape.NewPipeline(profile, logger)
	coordinator := scrape.NewCoordinator(engine, pipeline, cfg.Portal.Concurrency, logger)

	delay, _ := time.ParseDuration(cfg.Notify.MessageDelay)
	if delay == 0 {
		delay = time.Second
	}
	dispatcher := notify.NewDispatcher(initNotifiers(cfg), delay, logger)

	writer := report.NewWriter(report.Hints{
		Currency: cfg.Report.Currency,
		YellowGB: cfg.Alerts.YellowGB,
		RedGB:    cfg.Alerts.RedGB,
	})

	deps := runner.Deps{
		Engine:      engine,
		Scraper:     coordinator,
		Writer:      writer,
		Broadcaster: dispatcher,
		Store:       store,
	}
	if cfg.Mail.Configured() {
		deps.Mailer = notify.NewMailer(cfg.Mail, logger)
	}

	return runner.New(cfg, logger, deps), store, nil
}
