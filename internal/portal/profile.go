package portal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quotawatch/quotawatch/internal/browser"
)

// Locator pairs a selector with its own wait budget. A zero timeout
// means the profile's default locate timeout.
type Locator struct {
	Selector  browser.Selector `yaml:"selector"`
	TimeoutMs int              `yaml:"timeout_ms,omitempty"`
}

// Timeout resolves the locator's wait budget against the profile default.
func (l Locator) Timeout(def time.Duration) time.Duration {
	if l.TimeoutMs <= 0 {
		return def
	}
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

// LoginSelectors covers the login form.
type LoginSelectors struct {
	ServiceNumber  browser.Selector `yaml:"service_number"`
	TypeDropdown   browser.Selector `yaml:"type_dropdown"`
	TypeOptionExpr string           `yaml:"type_option_expr"`
	Password       browser.Selector `yaml:"password"`
	Submit         browser.Selector `yaml:"submit"`
}

// FieldChains holds the ordered fallback locators per scraped field.
// Within a chain the first locator that matches wins.
type FieldChains struct {
	Balance     []Locator `yaml:"balance"`
	Remaining   []Locator `yaml:"remaining"`
	Used        []Locator `yaml:"used"`
	RenewalCost []Locator `yaml:"renewal_cost"`
	RenewalDate []Locator `yaml:"renewal_date"`
}

// AddonSelectors covers the add-on bundle section behind "More Details".
type AddonSelectors struct {
	NoBundles      Locator          `yaml:"no_bundles"`
	Cards          browser.Selector `yaml:"cards"`
	CurrencyMarker string           `yaml:"currency_marker"`
}

// Timing groups the wait budgets of one scraping session.
type Timing struct {
	NavTimeoutMs    int `yaml:"nav_timeout_ms"`
	LocateTimeoutMs int `yaml:"locate_timeout_ms"`
	RetryIntervalMs int `yaml:"retry_interval_ms"`
	SettleDelayMs   int `yaml:"settle_delay_ms"`
	Attempts        int `yaml:"attempts"`
}

// Profile describes where everything lives on the portal. The defaults
// match the portal's current markup; a YAML file can override any part
// of it when the UI drifts, without a rebuild.
type Profile struct {
	LoginURL    string         `yaml:"login_url"`
	Login       LoginSelectors `yaml:"login"`
	Fields      FieldChains    `yaml:"fields"`
	MoreDetails []Locator      `yaml:"more_details"`
	Addons      AddonSelectors `yaml:"addons"`
	Timing      Timing         `yaml:"timing"`
}

// Default returns the built-in profile for the portal.
func Default() Profile {
	return Profile{
		LoginURL: "https://my.te.eg/echannel/#/login",
		Login: LoginSelectors{
			ServiceNumber:  browser.Css(`input[placeholder="Service number"]`),
			TypeDropdown:   browser.Css(".ant-select-selector"),
			TypeOptionExpr: ".ant-select-item-option",
			Password:       browser.Css(`input[placeholder="Password"]`),
			Submit:         browser.Texts("button", "Login"),
		},
		Fields: FieldChains{
			Balance: []Locator{
				{Selector: browser.Xpath(`//span[normalize-space(text())="Current Balance"]/parent::div//div[contains(@style,"font-size")]`)},
			},
			Remaining: []Locator{
				{Selector: browser.Xpath(`//span[contains(.,"Remaining")]/preceding-sibling::span[1]`)},
			},
			Used: []Locator{
				{Selector: browser.Xpath(`//span[contains(.,"Used")]/preceding-sibling::span[1]`)},
			},
			RenewalCost: []Locator{
				{Selector: browser.Xpath(`//span[contains(text(),"Renewal Cost")]/following-sibling::span//div[1]`)},
			},
			RenewalDate: []Locator{
				{Selector: browser.Xpath(`//span[contains(.,"Renewal Date")]`)},
			},
		},
		MoreDetails: []Locator{
			{Selector: browser.Xpath(`//span[text()="More Details"]`)},
			{Selector: browser.Texts("button", "More Details")},
			{Selector: browser.Xpath(`//span[contains(.,"More Details")]`)},
		},
		Addons: AddonSelectors{
			NoBundles:      Locator{Selector: browser.Xpath(`//*[contains(text(),"No Active Bundles")]`), TimeoutMs: 3000},
			Cards:          browser.Css(".ant-card"),
			CurrencyMarker: "EGP",
		},
		Timing: Timing{
			NavTimeoutMs:    60000,
			LocateTimeoutMs: 5000,
			RetryIntervalMs: 1000,
			SettleDelayMs:   2000,
			Attempts:        3,
		},
	}
}

// Load reads a YAML override file on top of the built-in defaults.
// Fields absent from the file keep their default values; present
// sequences replace the default chains entirely.
func Load(path string) (Profile, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read portal profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse portal profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("portal profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the profile can drive a session at all.
func (p Profile) Validate() error {
	if p.LoginURL == "" {
		return errors.New("missing login_url")
	}
	if p.Login.ServiceNumber.Expr == "" || p.Login.Password.Expr == "" {
		return errors.New("incomplete login selectors")
	}
	if len(p.Fields.Balance) == 0 || len(p.Fields.Remaining) == 0 || len(p.Fields.Used) == 0 {
		return errors.New("missing dashboard field locators")
	}
	return nil
}

// TypeOption builds the selector for the service-type dropdown entry
// matching an account's configured type.
func (p Profile) TypeOption(serviceType string) browser.Selector {
	return browser.Texts(p.Login.TypeOptionExpr, serviceType)
}

func (p Profile) NavTimeout() time.Duration {
	if p.Timing.NavTimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.Timing.NavTimeoutMs) * time.Millisecond
}

func (p Profile) LocateTimeout() time.Duration {
	if p.Timing.LocateTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.Timing.LocateTimeoutMs) * time.Millisecond
}

func (p Profile) RetryInterval() time.Duration {
	if p.Timing.RetryIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(p.Timing.RetryIntervalMs) * time.Millisecond
}

func (p Profile) SettleDelay() time.Duration {
	if p.Timing.SettleDelayMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.Timing.SettleDelayMs) * time.Millisecond
}

func (p Profile) RetryAttempts() int {
	if p.Timing.Attempts <= 0 {
		return 3
	}
	return p.Timing.Attempts
}
