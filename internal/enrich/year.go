package enrich

import (
	"regexp"
	"strconv"
	"time"
)

// EarliestYear is the lower bound for years inferred from document text.
const EarliestYear = 1950

var yearTokenRe = regexp.MustCompile(`\b\d{4}\b`)

// InferYear returns the first four-digit token in text that falls within
// [EarliestYear, now.Year()]. When nothing qualifies it returns fallback,
// which may be nil.
func InferYear(text string, fallback *int, now time.Time) *int {
	if y, ok := FirstYearBetween(text, EarliestYear, now.Year()); ok {
		return &y
	}
	if fallback == nil {
		return nil
	}
	y := *fallback
	return &y
}

// FirstYearBetween scans text in order for a four-digit token within [lo, hi].
func FirstYearBetween(text string, lo, hi int) (int, bool) {
	for _, tok := range yearTokenRe.FindAllString(text, -1) {
		y, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if y >= lo && y <= hi {
			return y, true
		}
	}
	return 0, false
}
