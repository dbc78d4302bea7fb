package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/quotawatch/quotawatch/pkg/model"
)

// Thresholds configures when a record raises alerts.
type Thresholds struct {
	// RedGB is the remaining-quota floor. Strictly below it raises a
	// low-quota alert; sitting exactly on it does not.
	RedGB float64
	// RenewalWindowDays is how close a renewal date must be before the
	// balance is checked against the expected renewal cost.
	RenewalWindowDays int
}

// SummaryWindow is the daily window in which a run reports one aggregate
// message instead of individual alerts.
type SummaryWindow struct {
	Hour      int
	Tolerance time.Duration
}

// Contains reports whether now falls within the window, boundaries
// included.
func (w SummaryWindow) Contains(now time.Time) bool {
	anchor := time.Date(now.Year(), now.Month(), now.Day(), w.Hour, 0, 0, 0, now.Location())
	d := now.Sub(anchor)
	if d < 0 {
		d = -d
	}
	return d <= w.Tolerance
}

// Mode is how a run's findings get reported.
type Mode string

const (
	ModeSummary    Mode = "summary"
	ModeIndividual Mode = "individual"
	ModeAllClear   Mode = "all_clear"
	ModeMixed      Mode = "mixed"
)

// ResolveMode picks the reporting mode for a finished run. It is a pure
// function of the clock and the run's counts, so the choice is testable
// without running anything.
func ResolveMode(now time.Time, win SummaryWindow, alertCount, failedCount int) Mode {
	if win.Contains(now) {
		return ModeSummary
	}
	if alertCount > 0 {
		return ModeIndividual
	}
	if failedCount > 0 {
		return ModeMixed
	}
	return ModeAllClear
}

// DaysUntil returns whole calendar days from now until date, ignoring the
// time of day on both sides. Past dates come out negative.
func DaysUntil(now, date time.Time) int {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Evaluate inspects one normalized record and returns the alerts it
// raises. Failed records never alert: their zeros mean "unknown", not
// "empty".
func Evaluate(u model.Usage, th Thresholds, now time.Time) []model.Alert {
	if !u.Success {
		return nil
	}

	var out []model.Alert
	if u.Remaining < th.RedGB {
		out = append(out, model.Alert{
			Kind:    model.AlertLowQuota,
			Account: u.Account,
			Message: fmt.Sprintf("⚠️ %s: remaining quota %.2f GB is below %.0f GB",
				u.Account.DisplayName(), u.Remaining, th.RedGB),
		})
	}

	if u.RenewalDate != nil &&
		DaysUntil(now, *u.RenewalDate) <= th.RenewalWindowDays &&
		u.Balance < u.TotalCost {
		out = append(out, model.Alert{
			Kind:    model.AlertRenewalRisk,
			Account: u.Account,
			Message: fmt.Sprintf("💰 %s: renewal on %s needs %.0f EGP but balance is %.0f EGP",
				u.Account.DisplayName(), u.RenewalDate.Format("02-01-2006"), u.TotalCost, u.Balance),
		})
	}

	return out
}

// EvaluateAll evaluates every record of a run in order.
func EvaluateAll(records []model.Usage, th Thresholds, now time.Time) []model.Alert {
	var out []model.Alert
	for _, u := range records {
		out = append(out, Evaluate(u, th, now)...)
	}
	return out
}

// Dedup drops alerts whose message text already occurred, keeping the
// first occurrence's position. Two accounts in the same state produce
// distinct messages, so only true repeats collapse.
func Dedup(alerts []model.Alert) []model.Alert {
	seen := make(map[string]struct{}, len(alerts))
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if _, ok := seen[a.Message]; ok {
			continue
		}
		seen[a.Message] = struct{}{}
		out = append(out, a)
	}
	return out
}

// SummaryMessage builds the single aggregate message used in summary
// mode.
func SummaryMessage(records []model.Usage, alerts []model.Alert) string {
	lowQuota, renewal := 0, 0
	for _, a := range alerts {
		switch a.Kind {
		case model.AlertLowQuota:
			lowQuota++
		case model.AlertRenewalRisk:
			renewal++
		}
	}
	failed := 0
	for _, u := range records {
		if !u.Success {
			failed++
		}
	}
	return fmt.Sprintf("📊 Usage summary: %d accounts checked, %d low on quota, %d renewal at risk, %d unreadable",
		len(records), lowQuota, renewal, failed)
}

// AllClearMessage is sent when nothing needs attention.
func AllClearMessage(total int) string {
	return fmt.Sprintf("✅ All %d accounts look healthy. No action needed.", total)
}

// MixedMessage is sent when no thresholds tripped but some accounts could
// not be read.
func MixedMessage(records []model.Usage) string {
	var failed []string
	for _, u := range records {
		if !u.Success {
			failed = append(failed, u.Account.DisplayName())
		}
	}
	return fmt.Sprintf("🚨 Could not read %d of %d accounts: %s. Details in the attached report.",
		len(failed), len(records), strings.Join(failed, ", "))
}

// AbortMessage is sent instead of a report when every single account
// failed, which points at the portal or the login flow rather than the
// accounts.
func AbortMessage(total int) string {
	return fmt.Sprintf("🚨 Usage check aborted: all %d accounts failed to load. The portal may be down or the login flow may have changed.", total)
}

// EngineFailureMessage is sent when the browser engine itself would not
// start, before any account was attempted.
func EngineFailureMessage(err error) string {
	return fmt.Sprintf("🚨 Usage check could not start: %v. No accounts were checked.", err)
}
