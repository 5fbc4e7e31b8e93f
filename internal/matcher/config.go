package matcher

import "fmt"

// Fixed per-stage confidence values. These are categorical, not
// computed; only the fuzzy stage carries its raw similarity score.
const (
	ConfidenceAliasTable      = 0.98
	ConfidenceAliasTableFuzzy = 0.95
	ConfidenceExact           = 1.0
	ConfidenceTypoAlias       = 0.95
	ConfidenceSubstring       = 0.9
	ConfidenceFirstWord       = 0.85
	ConfidenceFirstWordLoose  = 0.8
	ConfidenceFirstWordTypo   = 0.8
	ConfidenceSharedKeyword   = 0.75
	ConfidenceReExtract       = 0.82
	ConfidenceReExtractLoose  = 0.78
)

// Match type labels reported alongside a match.
const (
	MatchTypeAliasTable  = "alias_table"
	MatchTypeExact       = "exact"
	MatchTypeAlias       = "alias"
	MatchTypeSubstring   = "substring"
	MatchTypeFirstWord   = "first_word"
	MatchTypeKeyword     = "keyword"
	MatchTypeDescription = "description"
	MatchTypeFuzzy       = "fuzzy"
)

// Config holds the matcher's tunable thresholds. The defaults are the
// empirically-chosen production values; they are configuration fields
// rather than literals so operators can adjust them per show.
type Config struct {
	// AliasRetrySimilarity is the minimum Dice similarity accepted when
	// an alias-table target does not exactly equal a canonical name.
	AliasRetrySimilarity float64 `json:"alias_retry_similarity" yaml:"alias_retry_similarity"`

	// FuzzyThreshold is the minimum Dice score the fuzzy fallback
	// stage accepts.
	FuzzyThreshold float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`

	// MinMeaningfulWordLen is the minimum first-word length for the
	// first-word equality stage.
	MinMeaningfulWordLen int `json:"min_meaningful_word_len" yaml:"min_meaningful_word_len"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() *Config {
	return &Config{
		AliasRetrySimilarity: 0.8,
		FuzzyThreshold:       0.5,
		MinMeaningfulWordLen: 4,
	}
}

// Validate checks threshold sanity.
func (c *Config) Validate() error {
	if c.AliasRetrySimilarity < 0 || c.AliasRetrySimilarity > 1 {
		return fmt.Errorf("alias retry similarity must be in [0,1], got %v", c.AliasRetrySimilarity)
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be in [0,1], got %v", c.FuzzyThreshold)
	}
	if c.MinMeaningfulWordLen < 1 {
		return fmt.Errorf("min meaningful word length must be positive, got %d", c.MinMeaningfulWordLen)
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// typoAliases is the small hard-coded typo-correction table applied to
// both sides in the typo-alias stages. Keys and values are lower case.
var typoAliases = map[string]string{
	"kellner":   "keller",
	"bucklee":   "buckley",
	"melrse":    "melrose",
	"melrosse":  "melrose",
	"lachford":  "latchford",
	"latchfrd":  "latchford",
	"resedence": "residence",
	"residance": "residence",
	"warehse":   "warehouse",
	"stdio":     "studio",
}

// sharedKeywords is the fixed list of proper-noun fragments used by the
// shared-keyword stage: if one of these appears in both the candidate
// and a canonical name, the two refer to the same place.
var sharedKeywords = []string{
	"keller",
	"buckley",
	"melrose",
	"latchford",
	"sunset",
	"ventura",
	"cahuenga",
	"griffith",
	"lankershim",
	"tujunga",
	"magnolia",
	"whitsett",
}

// serviceChargePatterns are ledger strings the unmapped classifier
// treats as service charges even without an alias-table sentinel.
var serviceChargePatterns = []string{
	"SERVICE CHARGE",
	"SVC CHARGE",
	"FINANCE CHARGE",
	"PROCESSING FEE",
	"ADMIN FEE",
	"WIRE FEE",
	"BANK FEE",
}
