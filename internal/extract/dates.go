// Package extract pulls structured fields out of free-text ledger
// descriptions: a calendar date range and a candidate location string
// (or a recognized service-type token). Description fields interleave
// location, date, pay type, and vendor with no fixed schema, so both
// extractors are ordered cascades of patterns evaluated top to bottom,
// first success wins.
package extract

import (
	"regexp"
	"strconv"
	"time"

	"ledger-location-reconciler/internal/models"
)

// DateConfig holds the empirically-chosen bounds of the date extractor.
type DateConfig struct {
	// MaxRangeDays is the sanity bound on end-start. Ranges outside
	// 0..MaxRangeDays collapse to a single day (the start) so a
	// malformed match cannot fan out across months of lookup keys.
	MaxRangeDays int
}

// DefaultDateConfig returns the production bound of 60 days.
func DefaultDateConfig() *DateConfig {
	return &DateConfig{MaxRangeDays: 60}
}

var (
	// MM/DD/YY : prefix, the payroll form. Year comes from the token.
	payrollPrefixRe = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{2,4})\s*:`)

	// MM/DD-MM/DD explicit full range.
	fullRangeRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})\s*-\s*(\d{1,2})/(\d{1,2})`)

	// MM/DD-DD same-month range.
	sameMonthRangeRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})\s*-\s*(\d{1,2})(?:\D|$)`)

	// MM/DD,MM/DD comma-separated two-date range.
	commaRangeRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})\s*,\s*(\d{1,2})/(\d{1,2})`)

	// Leading MM/DD alone, a single-day range.
	leadingDateRe = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})(?:\D|$)`)
)

// DateExtractor parses date tokens out of transaction descriptions.
type DateExtractor struct {
	config *DateConfig
}

// NewDateExtractor creates a date extractor; a nil config uses defaults.
func NewDateExtractor(config *DateConfig) *DateExtractor {
	if config == nil {
		config = DefaultDateConfig()
	}
	return &DateExtractor{config: config}
}

// Extract parses the description into a date range using the reference
// year derived from the source file's report date. Returns nil when no
// pattern matches or the matched tokens are not valid calendar dates;
// the caller continues with the field unset, never aborting the run.
func (de *DateExtractor) Extract(description string, referenceYear int) *models.DateRange {
	if m := payrollPrefixRe.FindStringSubmatch(description); m != nil {
		month, day := atoi(m[1]), atoi(m[2])
		year := normalizeYear(atoi(m[3]))
		if d, ok := makeDate(year, month, day); ok {
			return &models.DateRange{Start: d, End: d, IsPayroll: true}
		}
		return nil
	}

	if m := fullRangeRe.FindStringSubmatch(description); m != nil {
		return de.boundedRange(referenceYear, atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]))
	}

	if m := sameMonthRangeRe.FindStringSubmatch(description); m != nil {
		return de.boundedRange(referenceYear, atoi(m[1]), atoi(m[2]), atoi(m[1]), atoi(m[3]))
	}

	if m := commaRangeRe.FindStringSubmatch(description); m != nil {
		return de.boundedRange(referenceYear, atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]))
	}

	if m := leadingDateRe.FindStringSubmatch(description); m != nil {
		if d, ok := makeDate(referenceYear, atoi(m[1]), atoi(m[2])); ok {
			return &models.DateRange{Start: d, End: d}
		}
		return nil
	}

	return nil
}

// boundedRange builds a range from month/day pairs, resolving year
// wrap-around and applying the span bound.
func (de *DateExtractor) boundedRange(year, startMonth, startDay, endMonth, endDay int) *models.DateRange {
	start, ok := makeDate(year, startMonth, startDay)
	if !ok {
		return nil
	}
	end, ok := makeDate(year, endMonth, endDay)
	if !ok {
		return &models.DateRange{Start: start, End: start}
	}

	// A December-to-January range crosses the year boundary.
	if end.Before(start) {
		end = end.AddDate(1, 0, 0)
	}

	r := &models.DateRange{Start: start, End: end}
	if span := r.SpanDays(); span < 0 || span > de.config.MaxRangeDays {
		r.End = r.Start
	}
	return r
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 31); reject those.
	if int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func normalizeYear(y int) int {
	if y < 100 {
		return 2000 + y
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
