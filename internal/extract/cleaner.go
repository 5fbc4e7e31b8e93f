package extract

import (
	"regexp"
	"strings"
)

var (
	episodeSuffixRe = regexp.MustCompile(`\s*\(\s*\d+\s*\)\s*$`)

	// Trailing network-name parentheticals appended by some accounting
	// exports, e.g. "KELLER RESIDENCE (NETFLIX)".
	networkSuffixRe = regexp.MustCompile(`(?i)\s*\(\s*(?:NETFLIX|HBO|HBO\s*MAX|HULU|AMAZON|APPLE|ABC|NBC|CBS|FOX|FX|AMC|CW|SHOWTIME|STARZ|PEACOCK|PARAMOUNT\+?)\s*\)\s*$`)

	// Pay-type phrases that masquerade as locations in payroll lines.
	payTypeRe = regexp.MustCompile(`(?i)\b(?:REGULAR|OVERTIME|O\.?T\.?|DOUBLE\s*TIME|DOUBLETIME|GOLDEN\s+TIME|MEAL\s+PENALT(?:Y|IES)|MILEAGE|PER\s*DIEM|KIT\s+RENTAL|BOX\s+RENTAL|CAR\s+ALLOWANCE|ALLOWANCE|HOLIDAY\s+PAY|VACATION\s+PAY|FRINGE|NON\s*-?\s*UNION|SAT(?:URDAY)?\s+PAY|NIGHT\s+PREMIUM)\b`)

	// Payroll-service companies that show up in description text.
	payrollVendorRe = regexp.MustCompile(`(?i)\b(?:ENTERTAINMENT\s+PARTNERS|CAST\s*&\s*CREW|MEDIA\s+SERVICES|GREENSLATE|EXTREME\s+REACH|WRAPBOOK|ADP|PAYCHEX)\b`)
)

// Bare category labels that are budget vocabulary, not places.
var bareCategoryLabels = map[string]bool{
	"LOCATION SECURITY": true,
	"LOCATION FEE":      true,
	"LOCATION FEES":     true,
	"LOC FEE":           true,
	"LOC FEES":          true,
	"SITE FEE":          true,
	"SITE FEES":         true,
	"LOCATION":          true,
	"LOCATIONS":         true,
	"FEE":               true,
	"FEES":              true,
	"SECURITY":          true,
	"RENTAL":            true,
	"RENTALS":           true,
	"DEPOSIT":           true,
	"INVOICE":           true,
}

// CleanCandidate normalizes a raw candidate: strips surrounding quotes,
// a trailing (episode-number) suffix, and a trailing network
// parenthetical, then trims stray punctuation.
func CleanCandidate(candidate string) string {
	s := strings.TrimSpace(candidate)
	s = strings.Trim(s, `"'`)
	s = episodeSuffixRe.ReplaceAllString(s, "")
	s = networkSuffixRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t-–,.:;")
	return strings.TrimSpace(s)
}

// IsRejectedCandidate reports whether a cleaned candidate is not a real
// location: a pay-type phrase, a payroll-service vendor, a bare
// category label, or too short to be meaningful.
func IsRejectedCandidate(candidate string) bool {
	s := strings.TrimSpace(candidate)
	if len(s) < 3 {
		return true
	}
	if payTypeRe.MatchString(s) {
		return true
	}
	if payrollVendorRe.MatchString(s) {
		return true
	}
	upper := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	return bareCategoryLabels[upper]
}

// glCategorySegments are trailing ledger segments that name a general
// ledger category rather than a place.
var glCategorySegments = map[string]bool{
	"FIRE":     true,
	"POLICE":   true,
	"SECURITY": true,
	"GUARDS":   true,
	"PERMITS":  true,
	"PERMIT":   true,
	"FEES":     true,
	"FEE":      true,
	"LABOR":    true,
	"RENTALS":  true,
	"SUPPLIES": true,
}

// ReExtractKeyword is the narrower keyword extractor the matcher uses
// when first-pass matching fails and the full description is available.
// It handles multi-colon-segment descriptions such as
// "PERMITS:MELROSE AVE:FIRE" by picking the middle segment, skipping
// the trailing GL-category segment and any leading service prefix.
func ReExtractKeyword(description string) string {
	segments := strings.Split(description, ":")
	if len(segments) < 2 {
		return ""
	}

	// Walk segments back to front, skipping GL-category tails.
	for i := len(segments) - 1; i >= 1; i-- {
		seg := CleanCandidate(segments[i])
		if seg == "" {
			continue
		}
		upper := strings.ToUpper(seg)
		if glCategorySegments[upper] || serviceWordToken(seg) != "" {
			continue
		}
		if IsRejectedCandidate(seg) {
			continue
		}
		return seg
	}
	return ""
}
