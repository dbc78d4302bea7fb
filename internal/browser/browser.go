package browser

import (
	"context"
	"time"
)

// SelectorKind picks the lookup strategy for a Selector.
type SelectorKind string

const (
	// CSS matches by CSS selector.
	CSS SelectorKind = "css"
	// XPath matches by XPath expression.
	XPath SelectorKind = "xpath"
	// ByText matches the first element under a CSS selector whose text
	// matches Text exactly.
	ByText SelectorKind = "text"
)

// Selector describes one way to locate an element on a page.
type Selector struct {
	Kind SelectorKind `yaml:"kind"`
	Expr string       `yaml:"expr"`
	Text string       `yaml:"text,omitempty"`
}

// Css builds a CSS selector.
func Css(expr string) Selector { return Selector{Kind: CSS, Expr: expr} }

// Xpath builds an XPath selector.
func Xpath(expr string) Selector { return Selector{Kind: XPath, Expr: expr} }

// Texts builds a text-match selector scoped to a CSS expression.
func Texts(expr, text string) Selector { return Selector{Kind: ByText, Expr: expr, Text: text} }

// Element is a located page element.
type Element interface {
	// Text returns the element's visible text.
	Text() (string, error)
	// Input focuses the element and types text into it.
	Input(text string) error
	// Click performs a single left click.
	Click() error
}

// Page is one isolated browsing session. Implementations must not share
// cookies or storage between pages.
type Page interface {
	// Navigate opens the URL and waits for the load event.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitSettled waits for network traffic to go idle, then for a fixed
	// settle delay, whichever data the page still renders afterwards is
	// all the caller gets.
	WaitSettled(ctx context.Context, idleTimeout, settle time.Duration) error
	// Find waits up to timeout for the selector to match, returning the
	// first match.
	Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	// FindAll returns every current match without waiting.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	// Close tears down the session and its browsing context.
	Close() error
}

// Engine owns a shared browser process and hands out isolated pages.
type Engine interface {
	// Start launches or connects the browser. Calling Start on a running
	// engine is a no-op.
	Start(ctx context.Context) error
	// NewPage opens a fresh isolated session.
	NewPage(ctx context.Context) (Page, error)
	// Stop closes all pages and the browser.
	Stop() error
}

// Config holds engine settings.
type Config struct {
	Headless       bool   `mapstructure:"headless"`
	Bin            string `mapstructure:"bin"`
	NoSandbox      bool   `mapstructure:"no_sandbox"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1366,
		ViewportHeight: 900,
	}
}

func (c Config) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1366
	}
	return c.ViewportWidth
}

func (c Config) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 900
	}
	return c.ViewportHeight
}
