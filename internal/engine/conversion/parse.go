package conversion

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultCloseHorizon is used when the timeline text yields no usable date.
const defaultCloseHorizon = 30 * 24 * time.Hour

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// currency multipliers recognized in budget text, matched case-insensitively.
var budgetMultipliers = []struct {
	keyword string
	factor  float64
}{
	{"crore", 1e7},
	{"cr", 1e7},
	{"lakh", 1e5},
	{"lac", 1e5},
	{"million", 1e6},
	{"m", 1e6},
	{"k", 1e3},
}

// parseBudgetValue extracts a deal value from free-form budget text such as
// "₹5-7 Lakh" or "10k-15k". Ranges resolve to the upper bound. Returns 0
// when nothing numeric is found.
func parseBudgetValue(budget *string) float64 {
	if budget == nil {
		return 0
	}
	text := strings.ToLower(strings.TrimSpace(*budget))
	if text == "" {
		return 0
	}

	numbers := numberPattern.FindAllString(text, -1)
	if len(numbers) == 0 {
		return 0
	}

	max := 0.0
	for _, raw := range numbers {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > max {
			max = v
		}
	}

	factor := 1.0
	for _, m := range budgetMultipliers {
		if strings.Contains(text, m.keyword) {
			factor = m.factor
			break
		}
	}
	return max * factor
}

// timeline units recognized in close-date text.
var timelineUnits = []struct {
	keyword string
	unit    time.Duration
}{
	{"day", 24 * time.Hour},
	{"week", 7 * 24 * time.Hour},
	{"month", 30 * 24 * time.Hour},
	{"quarter", 90 * 24 * time.Hour},
	{"year", 365 * 24 * time.Hour},
}

// parseCloseDate derives an expected close date from timeline text such as
// "30 Days" or "2 months". Unparseable text falls back to a default horizon.
func parseCloseDate(timeline *string, now time.Time) time.Time {
	fallback := now.Add(defaultCloseHorizon)
	if timeline == nil {
		return fallback
	}
	text := strings.ToLower(strings.TrimSpace(*timeline))
	if text == "" {
		return fallback
	}
	if strings.Contains(text, "immediate") || strings.Contains(text, "asap") {
		return now.Add(7 * 24 * time.Hour)
	}

	raw := numberPattern.FindString(text)
	if raw == "" {
		return fallback
	}
	count, err := strconv.ParseFloat(raw, 64)
	if err != nil || count <= 0 {
		return fallback
	}

	for _, u := range timelineUnits {
		if strings.Contains(text, u.keyword) {
			return now.Add(time.Duration(count * float64(u.unit)))
		}
	}
	return fallback
}
