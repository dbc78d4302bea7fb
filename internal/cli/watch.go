package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check accounts on a schedule",
	Long: `Run the usage check immediately, then keep running it on the configured
cron schedule until interrupted. Overlapping runs are skipped.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("schedule", "s", "", "cron schedule (default from config)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if schedule, _ := cmd.Flags().GetString("schedule"); schedule != "" {
		cfg.Watch.Schedule = schedule
	}

	logger := newLogger(cfg)

	r, store, err := initRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	check := func() {
		if err := r.Execute(ctx); err != nil {
			logger.Error("scheduled check failed", "error", err)
		}
	}

	// One shared job so the immediate run and the scheduled runs go
	// through the same overlap guard.
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger})).Then(cron.FuncJob(check))

	c := cron.New()
	if _, err := c.AddJob(cfg.Watch.Schedule, job); err != nil {
		return fmt.Errorf("parse schedule %q: %w", cfg.Watch.Schedule, err)
	}

	logger.Info("watch started", "schedule", cfg.Watch.Schedule, "accounts", len(cfg.Accounts))

	// First check right away, the schedule covers the rest.
	go job.Run()
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	cancel()
	select {
	case <-c.Stop().Done():
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timed out with a check still running")
	}

	logger.Info("watch stopped")
	return nil
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
