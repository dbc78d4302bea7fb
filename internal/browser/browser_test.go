package browser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quotawatch/quotawatch/internal/browser"
)

func TestSelectorConstructors(t *testing.T) {
	css := browser.Css(".ant-select-selector")
	assert.Equal(t, browser.CSS, css.Kind)
	assert.Equal(t, ".ant-select-selector", css.Expr)

	xp := browser.Xpath(`//span[text()="More Details"]`)
	assert.Equal(t, browser.XPath, xp.Kind)

	txt := browser.Texts(".ant-select-item-option", "Internet")
	assert.Equal(t, browser.ByText, txt.Kind)
	assert.Equal(t, "Internet", txt.Text)
}

func TestDefaultConfig(t *testing.T) {
	cfg := browser.DefaultConfig()

	assert.True(t, cfg.Headless)
	assert.NotZero(t, cfg.ViewportWidth)
	assert.NotZero(t, cfg.ViewportHeight)
}
