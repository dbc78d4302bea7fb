package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/internal/portal"
	"github.com/quotawatch/quotawatch/pkg/model"
)

// State names one step of a scraping session, in the order sessions walk
// through them.
type State string

const (
	StateLogin          State = "login"
	StateDashboardReady State = "dashboard_ready"
	StateBalance        State = "balance"
	StateRemaining      State = "remaining"
	StateUsed           State = "used"
	StateDetailExpand   State = "detail_expand"
	StateAddons         State = "addons"
	StateRenewalCost    State = "renewal_cost"
	StateRenewalDate    State = "renewal_date"
	StateDone           State = "done"
)

// Pipeline turns one logged-in portal session into a raw usage record.
type Pipeline struct {
	profile portal.Profile
	logger  *slog.Logger
}

// NewPipeline creates a pipeline for the given portal profile.
func NewPipeline(profile portal.Profile, logger *slog.Logger) *Pipeline {
	return &Pipeline{profile: profile, logger: logger}
}

// Run walks one account from login to done and never fails: an error
// before the dashboard renders, or a panic anywhere, yields the
// all-sentinel failure record, and every later field failure degrades
// that field alone while the session keeps going.
func (p *Pipeline) Run(ctx context.Context, page browser.Page, acc model.Account) (rec model.RawUsage) {
	log := p.logger.With("account", acc.DisplayName())

	defer func() {
		if r := recover(); r != nil {
			log.Error("session panicked", "panic", r)
			rec = model.FailedUsage(acc)
		}
	}()

	rec = model.RawUsage{
		Account:         acc,
		BalanceText:     model.TextZero,
		RemainingText:   model.TextZero,
		UsedText:        model.TextZero,
		AddonNames:      model.TextNoDetails,
		AddonPricesText: model.TextNoDetails,
		RenewalCostText: model.TextNoDetails,
	}

	p.step(log, StateLogin)
	if err := p.login(ctx, page, acc); err != nil {
		log.Error("login failed", "error", err)
		return model.FailedUsage(acc)
	}

	p.step(log, StateDashboardReady)
	if err := page.WaitSettled(ctx, p.profile.NavTimeout(), p.profile.SettleDelay()); err != nil {
		log.Error("dashboard never settled", "error", err)
		return model.FailedUsage(acc)
	}

	p.step(log, StateBalance)
	if text, ok := p.retryText(ctx, p.fieldFetcher(page, p.profile.Fields.Balance)); ok {
		rec.BalanceText = firstToken(text)
	} else {
		log.Warn("field not scraped", "field", StateBalance)
	}

	p.step(log, StateRemaining)
	if text, ok := p.retryText(ctx, p.fieldFetcher(page, p.profile.Fields.Remaining)); ok {
		rec.RemainingText = text
	} else {
		log.Warn("field not scraped", "field", StateRemaining)
	}

	p.step(log, StateUsed)
	if text, ok := p.retryText(ctx, p.fieldFetcher(page, p.profile.Fields.Used)); ok {
		rec.UsedText = text
	} else {
		log.Warn("field not scraped", "field", StateUsed)
	}

	p.step(log, StateDetailExpand)
	if !p.expandDetails(ctx, page) {
		// Not critical: the dashboard numbers above are already in hand,
		// the detail fields keep their sentinels.
		log.Warn("more details not expanded")
		p.step(log, StateDone)
		return rec
	}

	p.step(log, StateAddons)
	rec.AddonNames, rec.AddonPricesText = p.scrapeAddons(ctx, page, log)

	p.step(log, StateRenewalCost)
	rec.RenewalCostText = model.TextZero
	if text, ok := p.retryText(ctx, p.fieldFetcher(page, p.profile.Fields.RenewalCost)); ok {
		rec.RenewalCostText = text
	} else {
		log.Warn("field not scraped", "field", StateRenewalCost)
	}

	p.step(log, StateRenewalDate)
	rec.RenewalDateText = p.scrapeDate(ctx, page)

	p.step(log, StateDone)
	return rec
}

func (p *Pipeline) step(log *slog.Logger, s State) {
	log.Debug("session state", "state", s)
}

func (p *Pipeline) login(ctx context.Context, page browser.Page, acc model.Account) error {
	pr := p.profile
	if err := page.Navigate(ctx, pr.LoginURL, pr.NavTimeout()); err != nil {
		return err
	}

	number, err := page.Find(ctx, pr.Login.ServiceNumber, pr.LocateTimeout())
	if err != nil {
		return fmt.Errorf("service number field: %w", err)
	}
	if err := number.Input(acc.Number); err != nil {
		return fmt.Errorf("type service number: %w", err)
	}

	dropdown, err := page.Find(ctx, pr.Login.TypeDropdown, pr.LocateTimeout())
	if err != nil {
		return fmt.Errorf("service type dropdown: %w", err)
	}
	if err := dropdown.Click(); err != nil {
		return fmt.Errorf("open service type dropdown: %w", err)
	}

	option, err := page.Find(ctx, pr.TypeOption(acc.ServiceType), pr.LocateTimeout())
	if err != nil {
		return fmt.Errorf("service type option %q: %w", acc.ServiceType, err)
	}
	if err := option.Click(); err != nil {
		return fmt.Errorf("pick service type: %w", err)
	}

	password, err := page.Find(ctx, pr.Login.Password, pr.LocateTimeout())
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := password.Input(acc.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}

	submit, err := page.Find(ctx, pr.Login.Submit, pr.LocateTimeout())
	if err != nil {
		return fmt.Errorf("login button: %w", err)
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("click login: %w", err)
	}
	return nil
}

// fieldFetcher adapts a locator chain into a retryable text fetch.
func (p *Pipeline) fieldFetcher(page browser.Page, chain []portal.Locator) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		el, err := p.findFirst(ctx, page, chain)
		if err != nil {
			return "", err
		}
		return el.Text()
	}
}

// retryText applies the per-field retry policy: up to Attempts rounds
// separated by the retry interval, accepting the first trimmed text that
// is neither empty nor the zero placeholder the portal renders before
// data arrives. The result travels back through the return values, never
// through shared state.
func (p *Pipeline) retryText(ctx context.Context, fetch func(context.Context) (string, error)) (string, bool) {
	attempts := p.profile.RetryAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && !sleep(ctx, p.profile.RetryInterval()) {
			return "", false
		}
		text, err := fetch(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" && text != model.TextZero {
			return text, true
		}
	}
	return "", false
}

// findFirst walks a fallback chain and returns the first locator that
// matches, each locator spending its own wait budget.
func (p *Pipeline) findFirst(ctx context.Context, page browser.Page, chain []portal.Locator) (browser.Element, error) {
	var lastErr error
	for _, loc := range chain {
		el, err := page.Find(ctx, loc.Selector, loc.Timeout(p.profile.LocateTimeout()))
		if err == nil {
			return el, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("empty locator chain")
	}
	return nil, lastErr
}

// expandDetails clicks through to the detail view. All alternatives
// failing is an expected portal state, not an error.
func (p *Pipeline) expandDetails(ctx context.Context, page browser.Page) bool {
	el, err := p.findFirst(ctx, page, p.profile.MoreDetails)
	if err != nil {
		return false
	}
	if err := el.Click(); err != nil {
		return false
	}
	if err := page.WaitSettled(ctx, p.profile.NavTimeout(), p.profile.SettleDelay()); err != nil {
		return false
	}
	return true
}

// scrapeAddons reads the bundle cards on the detail view. The "no active
// bundles" flag is checked first with a short budget so empty accounts
// do not burn the full locate timeout per card.
func (p *Pipeline) scrapeAddons(ctx context.Context, page browser.Page, log *slog.Logger) (names, prices string) {
	ad := p.profile.Addons

	if _, err := page.Find(ctx, ad.NoBundles.Selector, ad.NoBundles.Timeout(p.profile.LocateTimeout())); err == nil {
		return model.TextNoBundles, model.TextZero
	}

	cards, err := page.FindAll(ctx, ad.Cards)
	if err != nil {
		log.Warn("addon cards not scraped", "error", err)
		return "N/A", model.TextZero
	}

	var nameList, priceList []string
	for _, card := range cards {
		name, price, ok := addonFromCard(card, ad.CurrencyMarker)
		if !ok {
			continue
		}
		nameList = append(nameList, name)
		priceList = append(priceList, price)
	}
	if len(nameList) == 0 {
		return "N/A", model.TextZero
	}
	return strings.Join(nameList, "; "), strings.Join(priceList, "; ")
}

func (p *Pipeline) scrapeDate(ctx context.Context, page browser.Page) string {
	el, err := p.findFirst(ctx, page, p.profile.Fields.RenewalDate)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return dateFromLabel(text)
}

// addonFromCard reads one bundle card: the first line is the bundle
// name, the first line carrying the currency marker is its price. Cards
// without a price line are skipped.
func addonFromCard(card browser.Element, marker string) (name, price string, ok bool) {
	text, err := card.Text()
	if err != nil {
		return "", "", false
	}
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return "", "", false
	}
	name = lines[0]
	for _, line := range lines {
		if strings.Contains(line, marker) {
			price = line
			break
		}
	}
	if price == "" {
		return "", "", false
	}
	return stripPriceFromName(name, price), price, true
}

// stripPriceFromName removes the price's numeric part from a bundle
// name. Some cards render the price inside the title line, which would
// otherwise double up in the report.
func stripPriceFromName(name, price string) string {
	num := numericPart(price)
	if num == "" || !strings.Contains(name, num) {
		return name
	}
	cleaned := strings.ReplaceAll(name, num, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// dateFromLabel extracts the date from a label like
// "Renewal Date: 28-08-2025, 12:00 AM". Missing markers yield "".
func dateFromLabel(text string) string {
	_, after, found := strings.Cut(text, ":")
	if !found {
		return ""
	}
	date, _, _ := strings.Cut(after, ",")
	return strings.TrimSpace(date)
}

func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func numericPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
