package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// requestIdleQuiet is how long the network must stay quiet before a page
// counts as idle.
const requestIdleQuiet = 300 * time.Millisecond

// RodEngine drives a single headless Chrome through go-rod. Pages come
// from separate incognito contexts, so sessions never share cookies.
type RodEngine struct {
	cfg Config

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodEngine creates an engine with the given settings.
func NewRodEngine(cfg Config) *RodEngine {
	return &RodEngine{cfg: cfg}
}

// Start launches Chrome and connects to it. Idempotent.
func (e *RodEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return nil
	}

	l := launcher.New().Headless(e.cfg.Headless)
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	if e.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("connect browser: %w", err)
	}

	e.launcher = l
	e.browser = b
	return nil
}

// NewPage opens a page inside a fresh incognito context.
func (e *RodEngine) NewPage(ctx context.Context) (Page, error) {
	e.mu.Lock()
	b := e.browser
	e.mu.Unlock()
	if b == nil {
		return nil, errors.New("engine not started")
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	// Viewport is cosmetic, a failure here must not cost us the session.
	_ = proto.EmulationSetDeviceMetricsOverride{
		Width:             e.cfg.viewportWidth(),
		Height:            e.cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}.Call(page)

	return &rodPage{page: page.Context(ctx)}, nil
}

// Stop closes the browser and cleans up the launcher's temp profile.
func (e *RodEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}

	err := e.browser.Close()
	if e.launcher != nil {
		e.launcher.Cleanup()
	}
	e.browser = nil
	e.launcher = nil
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) WaitSettled(ctx context.Context, idleTimeout, settle time.Duration) error {
	page := p.page.Context(ctx).Timeout(idleTimeout)
	wait := page.WaitRequestIdle(requestIdleQuiet, nil, nil, nil)
	wait()

	// The portal keeps rendering after the network goes quiet.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settle):
		return nil
	}
}

func (p *rodPage) Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	page := p.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	switch sel.Kind {
	case XPath:
		el, err = page.ElementX(sel.Expr)
	case ByText:
		el, err = page.ElementR(sel.Expr, exactTextRegex(sel.Text))
	default:
		el, err = page.Element(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", sel.Kind, sel.Expr, err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

func (p *rodPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	page := p.page.Context(ctx)

	var (
		els rod.Elements
		err error
	)
	if sel.Kind == XPath {
		els, err = page.ElementsX(sel.Expr)
	} else {
		els, err = page.Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("find all %s %q: %w", sel.Kind, sel.Expr, err)
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		if sel.Kind == ByText {
			txt, terr := el.Text()
			if terr != nil || strings.TrimSpace(txt) != sel.Text {
				continue
			}
		}
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Input(text string) error {
	return e.el.Input(text)
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func exactTextRegex(text string) string {
	return "/^" + regexp.QuoteMeta(strings.TrimSpace(text)) + "$/"
}
