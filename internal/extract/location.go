package extract

import (
	"regexp"
	"strings"
)

// Service-type tokens: recognized non-location keywords extracted in
// place of a location. They represent a production-wide service charge
// rather than a place.
const (
	TokenFire     = "FIRE"
	TokenPolice   = "POLICE"
	TokenGuards   = "GUARDS"
	TokenPermits  = "PERMITS"
	TokenParking  = "PARKING"
	TokenBasecamp = "BASECAMP"
	TokenDriving  = "DRIVING"
)

// ServiceTokens is the fixed set of recognized service-type tokens.
var ServiceTokens = map[string]bool{
	TokenFire:     true,
	TokenPolice:   true,
	TokenGuards:   true,
	TokenPermits:  true,
	TokenParking:  true,
	TokenBasecamp: true,
	TokenDriving:  true,
}

// Result is the outcome of candidate extraction: a candidate location
// string, or a service-type token, or neither (both empty).
type Result struct {
	Candidate    string
	ServiceToken string
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool {
	return r.Candidate == "" && r.ServiceToken == ""
}

// candidatePattern is one strategy in the extraction cascade. Patterns
// are pure: same input, same output, no shared state, so each can be
// unit-tested and reordered independently.
type candidatePattern struct {
	name  string
	apply func(desc string) (Result, bool)
}

// LocationExtractor applies the ordered pattern cascade to a
// description, narrowest and most reliable extraction first.
type LocationExtractor struct {
	patterns []candidatePattern
}

// NewLocationExtractor builds the extractor with the production cascade.
func NewLocationExtractor() *LocationExtractor {
	return &LocationExtractor{patterns: buildCascade()}
}

// Extract runs the cascade top to bottom, first success wins. The
// winning candidate is cleaned and then rejected outright (empty
// result) when it is a pay-type phrase, a payroll-service vendor, or a
// bare category label.
func (le *LocationExtractor) Extract(description string) Result {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return Result{}
	}

	for _, p := range le.patterns {
		result, ok := p.apply(desc)
		if !ok {
			continue
		}
		if result.ServiceToken != "" {
			return result
		}
		cleaned := CleanCandidate(result.Candidate)
		if cleaned == "" || IsRejectedCandidate(cleaned) {
			return Result{}
		}
		return Result{Candidate: cleaned}
	}

	return Result{}
}

var (
	quotedRe           = regexp.MustCompile(`"([^"]{3,})"`)
	locationFeeRe      = regexp.MustCompile(`(?i)^(.*?)\s+(?:LOCATION|LOC\.?)\s+FEES?\b`)
	cleaningRe         = regexp.MustCompile(`(?i)^(.*?)\s+(?:DEEP\s+CLEAN(?:ING)?|CLEANING)\b`)
	inconvenienceRe    = regexp.MustCompile(`(?i)INCONVENIENCE\s+FEE\s*:\s*(.+)$`)
	compoundPrefixRe   = regexp.MustCompile(`(?i)^(?:SITE\s+REP[^:]*|PREP\s+DAY|WRAP\s+DAY|SHOOT\s+DAY)\s*:\s*(.+)$`)
	parkingBasecampRe  = regexp.MustCompile(`(?i)\b(?:PARKING|BASECAMP|BASE\s+CAMP)\s*:\s*(.+)$`)
	crewPrefixRe       = regexp.MustCompile(`(?i)^(?:CREW|SCOUT|SURVEY|TECH\s+SCOUT)[^:]*:\s*(.+)$`)
	trailingColonRe    = regexp.MustCompile(`:\s*([^:]+)$`)
	securitySuffixRe   = regexp.MustCompile(`(?i)^(.*?)\s+(?:SECURITY|GUARDS?|PERMITS?)\s*$`)
	dashKeywordRe      = regexp.MustCompile(`(?i)\b(?:FEE|RENTAL|PERMIT|HOLD)\s*-\s*(.+)$`)
	atLocationRe       = regexp.MustCompile(`(?i)(?:@|\bat\s)\s*([A-Za-z][^,:]+)`)
	bgHoldRe           = regexp.MustCompile(`(?i)\d{1,2}/\d{1,2}(?:\s*-\s*\d{1,2}(?:/\d{1,2})?)?\s+(?:BG\s*-?\s*HOLD|BLOCK\s*-?\s*DRIVEWAY)\s*:\s*(.+)$`)
	permitsColonRe     = regexp.MustCompile(`(?i)\bPERMITS?\s*:\s*([^:]+)`)
	amenityColonRe     = regexp.MustCompile(`(?i)\b(?:AMBASSADORS?|TENTS?|TABLES?|CHAIRS?|DUMPSTERS?)[^:]*:\s*(.+)$`)
	invoiceSuffixRe    = regexp.MustCompile(`(?i)^(.*?)\s+INVOICE\b`)
	dateBareServiceRe  = regexp.MustCompile(`(?i)^\s*\d{1,2}/\d{1,2}(?:/\d{2,4})?(?:\s*[-,]\s*\d{1,2}(?:/\d{1,2})?)?\s*:?\s*(BASECAMP|BASE\s+CAMP|PARKING|DRIVING|FIRE|POLICE|GUARDS?|SECURITY|PERMITS?)\s*$`)
	serviceEpisodeRe   = regexp.MustCompile(`(?i)\b(FIRE|POLICE|GUARDS?|SECURITY|PERMITS?|PARKING|BASECAMP|DRIVING)\s*\(\s*\d+\s*\)\s*"([^"]+)"`)
	dateEquipPhraseRe  = regexp.MustCompile(`(?i)^\s*\d{1,2}/\d{1,2}(?:/\d{2,4})?(?:\s*[-,]\s*\d{1,2}(?:/\d{1,2})?)?\s+((?:WATER|ICE|FUEL|GENERATOR|EQUIPMENT|RENTALS?|SUPPLIES)\b.*)$`)
	bareFireRe         = regexp.MustCompile(`(?i)^\s*FIRE\s*$`)
)

func buildCascade() []candidatePattern {
	return []candidatePattern{
		{"quoted", func(desc string) (Result, bool) {
			if m := quotedRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"location-fee-suffix", func(desc string) (Result, bool) {
			if m := locationFeeRe.FindStringSubmatch(desc); m != nil && strings.TrimSpace(m[1]) != "" {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"cleaning-suffix", func(desc string) (Result, bool) {
			if m := cleaningRe.FindStringSubmatch(desc); m != nil && strings.TrimSpace(m[1]) != "" {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"inconvenience-fee", func(desc string) (Result, bool) {
			if m := inconvenienceRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: firstColonSegment(m[1])}, true
			}
			return Result{}, false
		}},
		{"compound-prefix", func(desc string) (Result, bool) {
			if m := compoundPrefixRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: firstColonSegment(m[1])}, true
			}
			return Result{}, false
		}},
		{"parking-basecamp", func(desc string) (Result, bool) {
			if m := parkingBasecampRe.FindStringSubmatch(desc); m != nil {
				seg := firstColonSegment(m[1])
				if serviceWordToken(seg) == "" {
					return Result{Candidate: seg}, true
				}
			}
			return Result{}, false
		}},
		{"crew-prefix", func(desc string) (Result, bool) {
			if m := crewPrefixRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: firstColonSegment(m[1])}, true
			}
			return Result{}, false
		}},
		{"trailing-colon", func(desc string) (Result, bool) {
			m := trailingColonRe.FindStringSubmatch(desc)
			if m == nil {
				return Result{}, false
			}
			seg := strings.TrimSpace(m[1])
			// A bare service word after the final colon is not a
			// location; later patterns own those shapes.
			if serviceWordToken(seg) != "" || seg == "" {
				return Result{}, false
			}
			return Result{Candidate: seg}, true
		}},
		{"security-suffix", func(desc string) (Result, bool) {
			if m := securitySuffixRe.FindStringSubmatch(desc); m != nil && strings.TrimSpace(m[1]) != "" {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"dash-keyword", func(desc string) (Result, bool) {
			if m := dashKeywordRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"at-location", func(desc string) (Result, bool) {
			if m := atLocationRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"bg-hold", func(desc string) (Result, bool) {
			if m := bgHoldRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: firstColonSegment(m[1])}, true
			}
			return Result{}, false
		}},
		{"permits-colon", func(desc string) (Result, bool) {
			m := permitsColonRe.FindStringSubmatch(desc)
			if m == nil {
				return Result{}, false
			}
			seg := strings.TrimSpace(m[1])
			// PERMITS:FIRE is a service charge, not a place.
			if bareFireRe.MatchString(seg) || serviceWordToken(seg) != "" {
				return Result{ServiceToken: TokenPermits}, true
			}
			return Result{Candidate: seg}, true
		}},
		{"amenity-colon", func(desc string) (Result, bool) {
			if m := amenityColonRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: firstColonSegment(m[1])}, true
			}
			return Result{}, false
		}},
		{"invoice-suffix", func(desc string) (Result, bool) {
			if m := invoiceSuffixRe.FindStringSubmatch(desc); m != nil && strings.TrimSpace(m[1]) != "" {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"date-bare-service", func(desc string) (Result, bool) {
			if m := dateBareServiceRe.FindStringSubmatch(desc); m != nil {
				if token := serviceWordToken(m[1]); token != "" {
					return Result{ServiceToken: token}, true
				}
			}
			return Result{}, false
		}},
		{"service-episode-quoted", func(desc string) (Result, bool) {
			if m := serviceEpisodeRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: m[2]}, true
			}
			return Result{}, false
		}},
		{"date-equipment-phrase", func(desc string) (Result, bool) {
			if m := dateEquipPhraseRe.FindStringSubmatch(desc); m != nil {
				return Result{Candidate: m[1]}, true
			}
			return Result{}, false
		}},
		{"bare-service-word", func(desc string) (Result, bool) {
			if token := serviceWordToken(desc); token != "" {
				return Result{ServiceToken: token}, true
			}
			return Result{}, false
		}},
	}
}

// firstColonSegment returns text up to the next colon, trimmed. Used
// where a captured tail may still carry a trailing GL-category segment.
func firstColonSegment(s string) string {
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

var serviceWordForms = map[string]string{
	"FIRE":           TokenFire,
	"FIRE DEPT":      TokenFire,
	"FIRE MARSHAL":   TokenFire,
	"POLICE":         TokenPolice,
	"PD":             TokenPolice,
	"GUARD":          TokenGuards,
	"GUARDS":         TokenGuards,
	"SECURITY":       TokenGuards,
	"SECURITY GUARD": TokenGuards,
	"PERMIT":         TokenPermits,
	"PERMITS":        TokenPermits,
	"PARKING":        TokenParking,
	"BASECAMP":       TokenBasecamp,
	"BASE CAMP":      TokenBasecamp,
	"DRIVING":        TokenDriving,
	"DRIVER":         TokenDriving,
}

// serviceWordToken maps a bare service word/phrase to its token, or ""
// when the string is not a recognized service word.
func serviceWordToken(s string) string {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.Join(strings.Fields(key), " ")
	return serviceWordForms[key]
}
