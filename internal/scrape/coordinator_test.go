package scrape_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/internal/scrape"
	"github.com/quotawatch/quotawatch/pkg/model"
)

type nopPage struct {
	mu     sync.Mutex
	closed bool
}

func (p *nopPage) Navigate(context.Context, string, time.Duration) error { return nil }

func (p *nopPage) WaitSettled(context.Context, time.Duration, time.Duration) error { return nil }

func (p *nopPage) Find(context.Context, browser.Selector, time.Duration) (browser.Element, error) {
	return nil, errors.New("empty page")
}

func (p *nopPage) FindAll(context.Context, browser.Selector) ([]browser.Element, error) {
	return nil, nil
}

func (p *nopPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *nopPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type stubEngine struct {
	mu       sync.Mutex
	pages    []*nopPage
	calls    int
	failCall int // 1-based NewPage call to fail, 0 never fails
}

func (e *stubEngine) Start(context.Context) error { return nil }

func (e *stubEngine) NewPage(context.Context) (browser.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failCall != 0 && e.calls == e.failCall {
		return nil, errors.New("browser context crashed")
	}
	p := &nopPage{}
	e.pages = append(e.pages, p)
	return p, nil
}

func (e *stubEngine) Stop() error { return nil }

// stubRunner answers with a marker record and tracks how many sessions
// overlap.
type stubRunner struct {
	mu     sync.Mutex
	cur    int
	peak   int
	delays map[string]time.Duration
	delay  time.Duration
}

func (r *stubRunner) Run(_ context.Context, _ browser.Page, acc model.Account) model.RawUsage {
	r.mu.Lock()
	r.cur++
	if r.cur > r.peak {
		r.peak = r.cur
	}
	r.mu.Unlock()

	d := r.delay
	if dd, ok := r.delays[acc.Number]; ok {
		d = dd
	}
	if d > 0 {
		time.Sleep(d)
	}

	r.mu.Lock()
	r.cur--
	r.mu.Unlock()

	return model.RawUsage{Account: acc, BalanceText: acc.Number}
}

func accountsN(n int) []model.Account {
	out := make([]model.Account, n)
	for i := range out {
		out[i] = model.Account{Number: string(rune('1' + i))}
	}
	return out
}

func TestRunAll_PreservesInputOrder(t *testing.T) {
	accounts := accountsN(4)
	runner := &stubRunner{delays: map[string]time.Duration{
		"1": 40 * time.Millisecond,
		"2": 30 * time.Millisecond,
		"3": 10 * time.Millisecond,
		"4": 0,
	}}
	coord := scrape.NewCoordinator(&stubEngine{}, runner, 4, testLogger())

	results := coord.RunAll(context.Background(), accounts)

	require.Len(t, results, 4)
	for i, acc := range accounts {
		assert.Equal(t, acc.Number, results[i].Account.Number,
			"slot %d must hold its own account even when it finished last", i)
	}
}

func TestRunAll_BoundsConcurrency(t *testing.T) {
	runner := &stubRunner{delay: 15 * time.Millisecond}
	coord := scrape.NewCoordinator(&stubEngine{}, runner, 2, testLogger())

	results := coord.RunAll(context.Background(), accountsN(6))

	require.Len(t, results, 6)
	assert.LessOrEqual(t, runner.peak, 2, "admission gate must cap overlapping sessions")
}

func TestRunAll_PageFailureIsolated(t *testing.T) {
	accounts := accountsN(3)
	engine := &stubEngine{failCall: 2}
	coord := scrape.NewCoordinator(engine, &stubRunner{}, 1, testLogger())

	results := coord.RunAll(context.Background(), accounts)

	require.Len(t, results, 3)
	assert.False(t, results[0].Failed)
	assert.True(t, results[1].Failed, "the account whose context crashed gets the failure record")
	assert.Equal(t, model.TextError, results[1].BalanceText)
	assert.False(t, results[2].Failed, "siblings keep running")
}

func TestRunAll_ClosesEveryPage(t *testing.T) {
	engine := &stubEngine{}
	coord := scrape.NewCoordinator(engine, &stubRunner{}, 3, testLogger())

	coord.RunAll(context.Background(), accountsN(5))

	require.Len(t, engine.pages, 5)
	for i, p := range engine.pages {
		assert.True(t, p.isClosed(), "page %d left open", i)
	}
}

func TestRunAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coord := scrape.NewCoordinator(&stubEngine{}, &stubRunner{}, 2, testLogger())

	results := coord.RunAll(ctx, accountsN(3))

	require.Len(t, results, 3)
	for i, rec := range results {
		assert.True(t, rec.Failed, "slot %d", i)
	}
}

func TestRunAll_NoAccounts(t *testing.T) {
	coord := scrape.NewCoordinator(&stubEngine{}, &stubRunner{}, 2, testLogger())

	assert.Empty(t, coord.RunAll(context.Background(), nil))
}
