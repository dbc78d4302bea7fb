package scrape_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/internal/portal"
	"github.com/quotawatch/quotawatch/internal/scrape"
	"github.com/quotawatch/quotawatch/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeElement struct {
	text    string
	textErr error
	clicks  int
	inputs  []string
}

func (f *fakeElement) Text() (string, error) { return f.text, f.textErr }

func (f *fakeElement) Input(s string) error {
	f.inputs = append(f.inputs, s)
	return nil
}

func (f *fakeElement) Click() error {
	f.clicks++
	return nil
}

// fakePage serves elements from a selector map. appearAt delays an
// element until the Nth lookup, which is how late rendering shows up to
// the pipeline.
type fakePage struct {
	elements   map[string]*fakeElement
	appearAt   map[string]int
	finds      map[string]int
	cards      []browser.Element
	navErr     error
	navigated  []string
	panicOnNav bool
	closed     bool
}

func selKey(sel browser.Selector) string {
	return string(sel.Kind) + "|" + sel.Expr + "|" + sel.Text
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: make(map[string]*fakeElement),
		appearAt: make(map[string]int),
		finds:    make(map[string]int),
	}
}

func (f *fakePage) set(sel browser.Selector, el *fakeElement) {
	f.elements[selKey(sel)] = el
}

func (f *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	if f.panicOnNav {
		panic("render process gone")
	}
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakePage) WaitSettled(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}

func (f *fakePage) Find(_ context.Context, sel browser.Selector, _ time.Duration) (browser.Element, error) {
	k := selKey(sel)
	f.finds[k]++
	if need, ok := f.appearAt[k]; ok && f.finds[k] < need {
		return nil, fmt.Errorf("not rendered yet: %s", k)
	}
	el, ok := f.elements[k]
	if !ok {
		return nil, fmt.Errorf("no such element: %s", k)
	}
	return el, nil
}

func (f *fakePage) FindAll(_ context.Context, _ browser.Selector) ([]browser.Element, error) {
	return f.cards, nil
}

func (f *fakePage) Close() error {
	f.closed = true
	return nil
}

func fastProfile(t *testing.T) portal.Profile {
	t.Helper()
	p := portal.Default()
	p.Timing = portal.Timing{
		NavTimeoutMs:    100,
		LocateTimeoutMs: 5,
		RetryIntervalMs: 1,
		SettleDelayMs:   1,
		Attempts:        3,
	}
	p.Addons.NoBundles.TimeoutMs = 5
	return p
}

func testAccount() model.Account {
	return model.Account{Number: "0101234567", Password: "hunter2", ServiceType: "Internet", Label: "Home"}
}

// newDashboardPage builds a page where login succeeds and the three
// dashboard numbers render.
func newDashboardPage(t *testing.T, prof portal.Profile) *fakePage {
	t.Helper()
	p := newFakePage()
	p.set(prof.Login.ServiceNumber, &fakeElement{})
	p.set(prof.Login.TypeDropdown, &fakeElement{})
	p.set(prof.TypeOption("Internet"), &fakeElement{})
	p.set(prof.Login.Password, &fakeElement{})
	p.set(prof.Login.Submit, &fakeElement{})
	p.set(prof.Fields.Balance[0].Selector, &fakeElement{text: "57 EGP"})
	p.set(prof.Fields.Remaining[0].Selector, &fakeElement{text: "93.09"})
	p.set(prof.Fields.Used[0].Selector, &fakeElement{text: "46.91"})
	return p
}

func TestPipeline_HappyPath(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.MoreDetails[0].Selector, &fakeElement{})
	page.set(prof.Fields.RenewalCost[0].Selector, &fakeElement{text: "120 EGP"})
	page.set(prof.Fields.RenewalDate[0].Selector, &fakeElement{text: "Renewal Date: 28-08-2025, 12:00 AM"})
	page.cards = []browser.Element{
		&fakeElement{text: "Extra Data\nValid for 30 days\n85 EGP"},
		&fakeElement{text: "Night Boost\n40 EGP"},
	}

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.False(t, rec.Failed)
	assert.Equal(t, "57", rec.BalanceText)
	assert.Equal(t, "93.09", rec.RemainingText)
	assert.Equal(t, "46.91", rec.UsedText)
	assert.Equal(t, "Extra Data; Night Boost", rec.AddonNames)
	assert.Equal(t, "85 EGP; 40 EGP", rec.AddonPricesText)
	assert.Equal(t, "120 EGP", rec.RenewalCostText)
	assert.Equal(t, "28-08-2025", rec.RenewalDateText)

	require.Len(t, page.navigated, 1)
	assert.Equal(t, prof.LoginURL, page.navigated[0])
	assert.Equal(t, []string{"0101234567"}, page.elements[selKey(prof.Login.ServiceNumber)].inputs)
	assert.Equal(t, []string{"hunter2"}, page.elements[selKey(prof.Login.Password)].inputs)
	assert.Equal(t, 1, page.elements[selKey(prof.Login.Submit)].clicks)
	assert.Equal(t, 1, page.elements[selKey(prof.TypeOption("Internet"))].clicks)
}

func TestPipeline_ServiceTypeSelected(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.TypeOption("Fixed Line"), &fakeElement{})

	acc := testAccount()
	acc.ServiceType = "Fixed Line"

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, acc)

	assert.False(t, rec.Failed)
	assert.Equal(t, 1, page.elements[selKey(prof.TypeOption("Fixed Line"))].clicks)
	assert.Zero(t, page.elements[selKey(prof.TypeOption("Internet"))].clicks)
}

func TestPipeline_NavigateFailureIsCritical(t *testing.T) {
	prof := fastProfile(t)
	page := newFakePage()
	page.navErr = fmt.Errorf("net::ERR_TIMED_OUT")

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.True(t, rec.Failed)
	assert.Equal(t, model.TextError, rec.BalanceText)
	assert.Equal(t, model.TextZero, rec.RemainingText)
}

func TestPipeline_LoginFieldMissingIsCritical(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	delete(page.elements, selKey(prof.Login.ServiceNumber))

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.True(t, rec.Failed)
	assert.Equal(t, model.FailedUsage(testAccount()), rec)
}

func TestPipeline_PanicRecovered(t *testing.T) {
	prof := fastProfile(t)
	page := newFakePage()
	page.panicOnNav = true

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.True(t, rec.Failed)
	assert.Equal(t, model.TextError, rec.BalanceText)
}

func TestPipeline_LateBalanceRetried(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	balKey := selKey(prof.Fields.Balance[0].Selector)
	page.appearAt[balKey] = 3

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.False(t, rec.Failed)
	assert.Equal(t, "57", rec.BalanceText)
	assert.Equal(t, 3, page.finds[balKey])
}

func TestPipeline_ZeroBalanceExhaustsRetries(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	balKey := selKey(prof.Fields.Balance[0].Selector)
	page.set(prof.Fields.Balance[0].Selector, &fakeElement{text: "0"})

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.False(t, rec.Failed, "an unreadable single field must not fail the session")
	assert.Equal(t, model.TextZero, rec.BalanceText)
	assert.Equal(t, 3, page.finds[balKey], "placeholder zero burns all attempts")
	assert.Equal(t, "93.09", rec.RemainingText, "later fields still scraped")
}

func TestPipeline_NoDetailsIsNotCritical(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.False(t, rec.Failed)
	assert.Equal(t, "57", rec.BalanceText)
	assert.Equal(t, model.TextNoDetails, rec.AddonNames)
	assert.Equal(t, model.TextNoDetails, rec.AddonPricesText)
	assert.Equal(t, model.TextNoDetails, rec.RenewalCostText)
	assert.Empty(t, rec.RenewalDateText)
}

func TestPipeline_DetailsFallbackLocator(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	// Only the second alternative exists.
	page.set(prof.MoreDetails[1].Selector, &fakeElement{})
	page.set(prof.Fields.RenewalCost[0].Selector, &fakeElement{text: "120 EGP"})

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.False(t, rec.Failed)
	assert.Equal(t, "120 EGP", rec.RenewalCostText)
	assert.Equal(t, 1, page.elements[selKey(prof.MoreDetails[1].Selector)].clicks)
}

func TestPipeline_ExpandedButCostMissing(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.MoreDetails[0].Selector, &fakeElement{})

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.False(t, rec.Failed)
	assert.Equal(t, model.TextZero, rec.RenewalCostText,
		"after a successful expand the cost falls back to zero, not to the no-details marker")
}

func TestPipeline_NoActiveBundles(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.MoreDetails[0].Selector, &fakeElement{})
	page.set(prof.Addons.NoBundles.Selector, &fakeElement{text: "No Active Bundles"})

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.Equal(t, model.TextNoBundles, rec.AddonNames)
	assert.Equal(t, model.TextZero, rec.AddonPricesText)
}

func TestPipeline_AddonPriceStrippedFromName(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.MoreDetails[0].Selector, &fakeElement{})
	page.cards = []browser.Element{
		&fakeElement{text: "Social 85\nMonthly bundle\n85 EGP"},
	}

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.Equal(t, "Social", rec.AddonNames)
	assert.Equal(t, "85 EGP", rec.AddonPricesText)
}

func TestPipeline_CardsWithoutPricesSkipped(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.MoreDetails[0].Selector, &fakeElement{})
	page.cards = []browser.Element{
		&fakeElement{text: "Some banner without a price"},
		&fakeElement{text: ""},
	}

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.Equal(t, "N/A", rec.AddonNames)
	assert.Equal(t, model.TextZero, rec.AddonPricesText)
}

func TestPipeline_DateLabelWithoutMarker(t *testing.T) {
	prof := fastProfile(t)
	page := newDashboardPage(t, prof)
	page.set(prof.MoreDetails[0].Selector, &fakeElement{})
	page.set(prof.Fields.RenewalDate[0].Selector, &fakeElement{text: "No renewal information"})

	rec := scrape.NewPipeline(prof, testLogger()).Run(context.Background(), page, testAccount())

	assert.Empty(t, rec.RenewalDateText)
}
