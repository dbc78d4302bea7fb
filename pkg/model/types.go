package model

import "time"

// Account identifies a single portal login.
type Account struct {
	Number      string `json:"number" yaml:"number" mapstructure:"number"`
	Password    string `json:"-" yaml:"password" mapstructure:"password"`
	ServiceType string `json:"service_type" yaml:"service_type" mapstructure:"service_type"`
	Label       string `json:"label" yaml:"label" mapstructure:"label"`
}

// DisplayName returns the label if set, otherwise the service number.
func (a Account) DisplayName() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Number
}

// Sentinel texts written into raw fields when the portal gives nothing usable.
const (
	TextZero      = "0"
	TextError     = "Error"
	TextNoDetails = "No Details"
	TextNoBundles = "No Active Bundles"
)

// RawUsage holds the field texts exactly as scraped from the dashboard,
// before any numeric interpretation. Failed marks a login or navigation
// failure that prevented scraping entirely.
type RawUsage struct {
	Account         Account `json:"account"`
	BalanceText     string  `json:"balance_text"`
	RemainingText   string  `json:"remaining_text"`
	UsedText        string  `json:"used_text"`
	AddonNames      string  `json:"addon_names"`
	AddonPricesText string  `json:"addon_prices_text"`
	RenewalCostText string  `json:"renewal_cost_text"`
	RenewalDateText string  `json:"renewal_date_text"`
	Failed          bool    `json:"failed"`
}

// FailedUsage builds the all-sentinel record for an account whose session
// never reached the dashboard.
func FailedUsage(acc Account) RawUsage {
	return RawUsage{
		Account:         acc,
		BalanceText:     TextError,
		RemainingText:   TextZero,
		UsedText:        TextZero,
		AddonNames:      TextError,
		AddonPricesText: TextZero,
		RenewalCostText: TextZero,
		RenewalDateText: "",
		Failed:          true,
	}
}

// Usage is a normalized usage record, ready for alert evaluation,
// reporting and persistence. MainQuota is always Remaining+Used and
// TotalCost is always RenewalCost+AddonsPrice.
type Usage struct {
	Account     Account    `json:"account"`
	Balance     float64    `json:"balance" db:"balance"`
	Remaining   float64    `json:"remaining_gb" db:"remaining_gb"`
	Used        float64    `json:"used_gb" db:"used_gb"`
	MainQuota   float64    `json:"main_quota_gb" db:"main_quota_gb"`
	AddonNames  string     `json:"addon_names" db:"addon_names"`
	AddonsPrice float64    `json:"addons_price" db:"addons_price"`
	RenewalCost float64    `json:"renewal_cost" db:"renewal_cost"`
	TotalCost   float64    `json:"total_cost" db:"total_cost"`
	RenewalDate *time.Time `json:"renewal_date,omitempty" db:"renewal_date"`
	Success     bool       `json:"success" db:"success"`
}

// AlertKind classifies a per-account alert.
type AlertKind string

const (
	AlertLowQuota    AlertKind = "low_quota"
	AlertRenewalRisk AlertKind = "renewal_risk"
)

// Alert is a single actionable finding for one account.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Account Account   `json:"account"`
	Message string    `json:"message"`
}

// Run is one complete monitoring pass over all configured accounts.
// Record order matches the configured account order.
type Run struct {
	ID         string    `json:"id" db:"id"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Records    []Usage   `json:"records"`
}

// RunSummary is the run-level view used by history listings, without the
// per-account records.
type RunSummary struct {
	ID         string    `json:"id" db:"id"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Total      int       `json:"total" db:"total"`
	Failed     int       `json:"failed" db:"failed"`
}

// FailedCount returns how many records come from failed sessions.
func (r Run) FailedCount() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.Success {
			n++
		}
	}
	return n
}

// AllFailed reports whether every account failed. An empty run does not
// count as failed.
func (r Run) AllFailed() bool {
	return len(r.Records) > 0 && r.FailedCount() == len(r.Records)
}

// PartiallyFailed reports whether some but not all accounts failed.
func (r Run) PartiallyFailed() bool {
	n := r.FailedCount()
	return n > 0 && n < len(r.Records)
}
