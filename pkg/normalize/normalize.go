package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/quotawatch/quotawatch/pkg/model"
)

// DateLayout is the day-first layout the portal renders renewal dates in.
const DateLayout = "02-01-2006"

// failureMarkers flag scraped texts that carry no numeric value. Matched
// case-insensitively anywhere in the text.
var failureMarkers = []string{"error", "n/a", "not found", "no details"}

// Record converts a scraped record into its normalized form. It is pure:
// the same input always yields the same output. Failed records come out
// zeroed with Success unset, so they can never trip a threshold.
func Record(raw model.RawUsage) model.Usage {
	u := model.Usage{
		Account:    raw.Account,
		AddonNames: raw.AddonNames,
		Success:    !raw.Failed,
	}
	if raw.Failed {
		return u
	}

	u.Balance = Currency(raw.BalanceText)
	u.Remaining = Quantity(raw.RemainingText)
	u.Used = Quantity(raw.UsedText)
	u.AddonsPrice = Currency(raw.AddonPricesText)
	u.RenewalCost = Currency(raw.RenewalCostText)
	u.MainQuota = u.Remaining + u.Used
	u.TotalCost = u.RenewalCost + u.AddonsPrice
	u.RenewalDate = Date(raw.RenewalDateText)
	return u
}

// All normalizes a batch of scraped records, preserving order.
func All(raws []model.RawUsage) []model.Usage {
	out := make([]model.Usage, len(raws))
	for i, raw := range raws {
		out[i] = Record(raw)
	}
	return out
}

// Currency parses a money text like "120 EGP" into its amount. Texts
// holding several ";"-separated amounts, as produced by add-on scraping,
// are summed. Failure markers yield 0.
func Currency(text string) float64 {
	if hasFailureMarker(text) {
		return 0
	}
	total := 0.0
	for _, seg := range strings.Split(text, ";") {
		total += parseNumber(seg)
	}
	return total
}

// Quantity parses a single data amount like "93.09 GB". Failure markers
// yield 0.
func Quantity(text string) float64 {
	if hasFailureMarker(text) {
		return 0
	}
	return parseNumber(text)
}

// Date parses the portal's day-first renewal date. Anything unparseable,
// including the empty string, is reported as absent rather than as an
// error.
func Date(text string) *time.Time {
	t, err := time.Parse(DateLayout, strings.TrimSpace(text))
	if err != nil {
		return nil
	}
	return &t
}

func hasFailureMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range failureMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// parseNumber strips everything except ASCII digits and the dot, then
// parses the rest. Unparseable leftovers count as 0.
func parseNumber(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
