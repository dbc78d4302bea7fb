// Package runner drives one complete monitoring pass end to end:
// scrape every account, normalize the records, decide what to report,
// then deliver the workbook and the notification messages.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/internal/config"
	"github.com/quotawatch/quotawatch/pkg/decision"
	"github.com/quotawatch/quotawatch/pkg/model"
	"github.com/quotawatch/quotawatch/pkg/normalize"
)

// Fixed texts for the report mail.
const (
	MailSubject = "📊 Usage & Balance Report"
	MailBody    = "Please find today's usage report attached."
)

// Scraper produces one raw record per account, preserving input order.
type Scraper interface {
	RunAll(ctx context.Context, accounts []model.Account) []model.RawUsage
}

// ReportWriter renders normalized records into the report artifact.
type ReportWriter interface {
	Write(records []model.Usage, path string) error
}

// Broadcaster fans messages out to the notification channels.
type Broadcaster interface {
	Broadcast(ctx context.Context, messages []string)
}

// Mailer sends the report artifact by mail.
type Mailer interface {
	SendReport(subject, body, attachmentPath string) error
}

// RunStore persists finished runs for the history command.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// Deps bundles the collaborators a Runner drives. Store and Mailer may
// be nil when history or mail delivery is not configured.
type Deps struct {
	Engine      browser.Engine
	Scraper     Scraper
	Writer      ReportWriter
	Broadcaster Broadcaster
	Mailer      Mailer
	Store       RunStore
	Now         func() time.Time
}

// Runner executes monitoring passes.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps
}

// New creates a Runner. A nil Now falls back to the wall clock.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{cfg: cfg, logger: logger, deps: deps}
}

// Execute runs one full pass. It returns an error only when the pass
// could not start at all; a pass that did run degrades into sentinel
// records and reports through the channels instead of failing.
func (r *Runner) Execute(ctx context.Context) error {
	if len(r.cfg.Accounts) == 0 {
		return errors.New("no accounts configured")
	}

	started := r.deps.Now().UTC()
	r.logger.Info("run started", "accounts", len(r.cfg.Accounts))

	if err := r.deps.Engine.Start(ctx); err != nil {
		r.logger.Error("start browser engine", "error", err)
		r.deps.Broadcaster.Broadcast(ctx, []string{decision.EngineFailureMessage(err)})
		return fmt.Errorf("start browser engine: %w", err)
	}
	defer func() {
		if err := r.deps.Engine.Stop(); err != nil {
			r.logger.Warn("stop browser engine", "error", err)
		}
	}()

	raws := r.deps.Scraper.RunAll(ctx, r.cfg.Accounts)
	run := model.Run{
		ID:         uuid.New().String(),
		StartedAt:  started,
		FinishedAt: r.deps.Now().UTC(),
		Records:    normalize.All(raws),
	}

	if run.AllFailed() {
		r.logger.Error("every account failed, skipping report", "accounts", len(run.Records))
		r.deps.Broadcaster.Broadcast(ctx, []string{decision.AbortMessage(len(run.Records))})
		return nil
	}

	reportPath := r.writeReport(run)
	messages, mode := r.compose(run)

	r.logger.Info("run finished",
		"run_id", run.ID,
		"mode", string(mode),
		"failed", run.FailedCount(),
		"messages", len(messages),
	)

	r.deps.Broadcaster.Broadcast(ctx, messages)
	r.mail(mode, run, reportPath)
	r.persist(ctx, &run)
	return nil
}

// writeReport renders the artifact and returns its path, or "" when the
// write failed. A broken workbook must not block the notifications.
func (r *Runner) writeReport(run model.Run) string {
	path := r.cfg.Report.Path
	if err := r.deps.Writer.Write(run.Records, path); err != nil {
		r.logger.Error("write report", "path", path, "error", err)
		return ""
	}
	r.logger.Info("report written", "path", path, "rows", len(run.Records))
	return path
}

// compose picks the reporting mode and builds the outgoing messages.
// The four modes are mutually exclusive: a summary run sends exactly
// one aggregate message and suppresses everything else.
func (r *Runner) compose(run model.Run) ([]string, decision.Mode) {
	now := r.deps.Now()
	th := decision.Thresholds{
		RedGB:             r.cfg.Alerts.RedGB,
		RenewalWindowDays: r.cfg.Alerts.RenewalWindowDays,
	}
	win := decision.SummaryWindow{
		Hour:      r.cfg.Alerts.SummaryHour,
		Tolerance: time.Duration(r.cfg.Alerts.SummaryToleranceMin) * time.Minute,
	}

	alerts := decision.Dedup(decision.EvaluateAll(run.Records, th, now))
	mode := decision.ResolveMode(now, win, len(alerts), run.FailedCount())

	switch mode {
	case decision.ModeSummary:
		return []string{decision.SummaryMessage(run.Records, alerts)}, mode
	case decision.ModeIndividual:
		msgs := make([]string, len(alerts))
		for i, a := range alerts {
			msgs[i] = a.Message
		}
		return msgs, mode
	case decision.ModeMixed:
		return []string{decision.MixedMessage(run.Records)}, mode
	default:
		return []string{decision.AllClearMessage(len(run.Records))}, mode
	}
}

// mail sends the workbook on summary runs and on partial failures, the
// two cases where the operator wants the full sheet without asking.
func (r *Runner) mail(mode decision.Mode, run model.Run, reportPath string) {
	if r.deps.Mailer == nil || reportPath == "" {
		return
	}
	if mode != decision.ModeSummary && !run.PartiallyFailed() {
		return
	}
	if err := r.deps.Mailer.SendReport(MailSubject, MailBody, reportPath); err != nil {
		r.logger.Error("mail report", "error", err)
	}
}

func (r *Runner) persist(ctx context.Context, run *model.Run) {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.SaveRun(ctx, run); err != nil {
		r.logger.Error("save run history", "error", err)
		return
	}
	r.logger.Debug("run recorded", "run_id", run.ID)
}
