// Package matcher matches candidate location strings extracted from
// ledger descriptions against the canonical budget location set. The
// match is a cascade of increasingly permissive strategies, evaluated
// in order with fixed per-stage confidences; the operator-curated alias
// table is authoritative above every automatic strategy.
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"ledger-location-reconciler/internal/extract"
	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// Match is a successful resolution of a candidate to a canonical
// budget location.
type Match struct {
	Location   string
	Budget     decimal.Decimal
	Confidence float64
	MatchType  string
}

// Matcher holds the canonical location set and alias table for one sync
// run. Both are read-only once the matcher is built.
type Matcher struct {
	config    *Config
	canonical map[string]*models.CanonicalLocation // normalized name -> location
	names     []string                             // display names, stable order
	aliases   *models.AliasTable
	log       logger.Logger

	strategies []matchStrategy
}

// candidateInfo is the pre-computed input shape every strategy receives.
type candidateInfo struct {
	raw         string
	normalized  string
	typoFolded  string
	description string
}

// matchStrategy is one stage of the cascade: a pure function returning
// a match or nil. Stages are held in a declarative ordered list and
// evaluated with short-circuiting iteration.
type matchStrategy struct {
	name  string
	apply func(c candidateInfo) *Match
}

// New builds a matcher over the canonical locations and alias table.
// A nil alias table degrades to an empty one, a nil config to defaults.
func New(canonical map[string]*models.CanonicalLocation, aliases *models.AliasTable, config *Config) *Matcher {
	if config == nil {
		config = DefaultConfig()
	}
	if aliases == nil {
		aliases = models.EmptyAliasTable()
	}

	m := &Matcher{
		config:    config,
		canonical: make(map[string]*models.CanonicalLocation, len(canonical)),
		aliases:   aliases,
		log:       logger.WithComponent("matcher"),
	}
	for name, cl := range canonical {
		m.canonical[normalizeName(name)] = cl
		m.names = append(m.names, cl.Name)
	}
	// Strategies scan m.names first-hit-wins, so ties between canonical
	// names must not depend on map iteration order.
	sort.Strings(m.names)

	m.strategies = []matchStrategy{
		{"alias-table", m.matchAliasTable},
		{"exact", m.matchExact},
		{"typo-alias", m.matchTypoAlias},
		{"substring", m.matchSubstring},
		{"first-word", m.matchFirstWord},
		{"first-word-typo", m.matchFirstWordTypo},
		{"shared-keyword", m.matchSharedKeyword},
		{"description-reextract", m.matchDescription},
		{"fuzzy", m.matchFuzzy},
	}

	return m
}

// Match resolves a candidate against the canonical set. Strategies run
// in order, first success wins; nil means the candidate is unmapped.
// Matching is deterministic: the same candidate against the same
// canonical set and alias table always yields the same match.
func (m *Matcher) Match(candidate string) *Match {
	return m.MatchWithDescription(candidate, "")
}

// MatchWithDescription additionally supplies the originating
// transaction's full description, enabling the description-keyword
// re-extraction stage for multi-colon-segment descriptions.
func (m *Matcher) MatchWithDescription(candidate, description string) *Match {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(m.canonical) == 0 {
		return nil
	}

	info := candidateInfo{
		raw:         candidate,
		normalized:  normalizeName(candidate),
		typoFolded:  applyTypoAliases(candidate),
		description: description,
	}

	for _, s := range m.strategies {
		if match := s.apply(info); match != nil {
			m.log.WithFields(logger.Fields{
				"candidate":  candidate,
				"location":   match.Location,
				"strategy":   s.name,
				"confidence": match.Confidence,
			}).Debug("location matched")
			return match
		}
	}

	return nil
}

// ClassifyUnmapped buckets a candidate that matched nothing: a
// service-charge alias or pattern, a pending-location alias, or plain
// no budget match.
func (m *Matcher) ClassifyUnmapped(candidate string) models.UnmappedReason {
	if m.aliases.IsServiceCharge(candidate) {
		return models.UnmappedServiceCharge
	}
	if _, ok := m.aliases.PendingName(candidate); ok {
		return models.UnmappedPendingLocation
	}

	upper := strings.ToUpper(candidate)
	for _, pattern := range serviceChargePatterns {
		if strings.Contains(upper, pattern) {
			return models.UnmappedServiceCharge
		}
	}

	return models.UnmappedNoBudgetMatch
}

// Stage 1: alias-table hit. An exact canonical target scores 0.98; a
// target that is not verbatim canonical retries with Dice similarity
// against the canonical names at 0.95.
func (m *Matcher) matchAliasTable(c candidateInfo) *Match {
	target, ok := m.aliases.Lookup(c.raw)
	if !ok || target == models.ServiceChargeSentinel || strings.HasPrefix(target, models.PendingPrefix) {
		return nil
	}

	if cl, ok := m.canonical[normalizeName(target)]; ok {
		return m.result(cl, ConfidenceAliasTable, MatchTypeAliasTable)
	}

	if name, score := bestFuzzyMatch(target, m.names); score >= m.config.AliasRetrySimilarity {
		if cl, ok := m.canonical[normalizeName(name)]; ok {
			return m.result(cl, ConfidenceAliasTableFuzzy, MatchTypeAliasTable)
		}
	}

	return nil
}

// Stage 2: exact case-insensitive equality.
func (m *Matcher) matchExact(c candidateInfo) *Match {
	if cl, ok := m.canonical[c.normalized]; ok {
		return m.result(cl, ConfidenceExact, MatchTypeExact)
	}
	return nil
}

// Stage 3: equality after folding both sides through the typo table.
// Fires only when the typo table actually changed the candidate, so a
// clean miss falls through to the weaker stages.
func (m *Matcher) matchTypoAlias(c candidateInfo) *Match {
	if c.typoFolded == strings.ToLower(c.normalized) {
		return nil
	}

	candWord := firstMeaningfulWord(c.typoFolded, m.config.MinMeaningfulWordLen)
	for _, name := range m.names {
		folded := applyTypoAliases(name)
		if folded == c.typoFolded ||
			strings.Contains(folded, c.typoFolded) || strings.Contains(c.typoFolded, folded) ||
			(candWord != "" && candWord == firstMeaningfulWord(folded, m.config.MinMeaningfulWordLen)) {
			return m.result(m.canonical[normalizeName(name)], ConfidenceTypoAlias, MatchTypeAlias)
		}
	}
	return nil
}

// Stage 4: substring containment in either direction.
func (m *Matcher) matchSubstring(c candidateInfo) *Match {
	cand := strings.ToLower(c.normalized)
	for _, name := range m.names {
		canon := strings.ToLower(normalizeName(name))
		if strings.Contains(canon, cand) || strings.Contains(cand, canon) {
			return m.result(m.canonical[normalizeName(name)], ConfidenceSubstring, MatchTypeSubstring)
		}
	}
	return nil
}

// Stage 5: first-meaningful-word equality at 0.85, or first-word
// containment at 0.8.
func (m *Matcher) matchFirstWord(c candidateInfo) *Match {
	candWord := firstMeaningfulWord(strings.ToLower(c.normalized), m.config.MinMeaningfulWordLen)
	if candWord == "" {
		return nil
	}

	for _, name := range m.names {
		canonWord := firstMeaningfulWord(strings.ToLower(normalizeName(name)), m.config.MinMeaningfulWordLen)
		if canonWord == "" {
			continue
		}
		if candWord == canonWord {
			return m.result(m.canonical[normalizeName(name)], ConfidenceFirstWord, MatchTypeFirstWord)
		}
		if strings.Contains(canonWord, candWord) || strings.Contains(candWord, canonWord) {
			return m.result(m.canonical[normalizeName(name)], ConfidenceFirstWordLoose, MatchTypeFirstWord)
		}
	}
	return nil
}

// Stage 6: first-word equality after typo-alias normalization.
func (m *Matcher) matchFirstWordTypo(c candidateInfo) *Match {
	candWord := firstMeaningfulWord(c.typoFolded, m.config.MinMeaningfulWordLen)
	if candWord == "" {
		return nil
	}

	for _, name := range m.names {
		canonWord := firstMeaningfulWord(applyTypoAliases(name), m.config.MinMeaningfulWordLen)
		if canonWord != "" && candWord == canonWord {
			return m.result(m.canonical[normalizeName(name)], ConfidenceFirstWordTypo, MatchTypeFirstWord)
		}
	}
	return nil
}

// Stage 7: shared-keyword membership over the fixed proper-noun list.
func (m *Matcher) matchSharedKeyword(c candidateInfo) *Match {
	cand := strings.ToLower(c.raw)
	for _, keyword := range sharedKeywords {
		if !strings.Contains(cand, keyword) {
			continue
		}
		for _, name := range m.names {
			if strings.Contains(strings.ToLower(name), keyword) {
				return m.result(m.canonical[normalizeName(name)], ConfidenceSharedKeyword, MatchTypeKeyword)
			}
		}
	}
	return nil
}

// Stage 8: re-extract a narrower keyword from the full description and
// retry the strong stages at 0.82 / 0.78.
func (m *Matcher) matchDescription(c candidateInfo) *Match {
	if c.description == "" {
		return nil
	}
	keyword := extract.ReExtractKeyword(c.description)
	if keyword == "" || strings.EqualFold(keyword, c.raw) {
		return nil
	}

	normalized := normalizeName(keyword)
	if cl, ok := m.canonical[normalized]; ok {
		return m.result(cl, ConfidenceReExtract, MatchTypeDescription)
	}

	lower := strings.ToLower(normalized)
	for _, name := range m.names {
		canon := strings.ToLower(normalizeName(name))
		if strings.Contains(canon, lower) || strings.Contains(lower, canon) {
			return m.result(m.canonical[normalizeName(name)], ConfidenceReExtract, MatchTypeDescription)
		}
	}

	keyWord := firstMeaningfulWord(lower, m.config.MinMeaningfulWordLen)
	if keyWord == "" {
		return nil
	}
	for _, name := range m.names {
		canonWord := firstMeaningfulWord(strings.ToLower(normalizeName(name)), m.config.MinMeaningfulWordLen)
		if canonWord != "" && keyWord == canonWord {
			return m.result(m.canonical[normalizeName(name)], ConfidenceReExtractLoose, MatchTypeDescription)
		}
	}
	return nil
}

// Stage 9: bigram Dice fuzzy fallback. Accepts the highest-scoring
// canonical name only above the configured threshold; the confidence is
// the raw score, the one non-constant confidence in the cascade.
func (m *Matcher) matchFuzzy(c candidateInfo) *Match {
	name, score := bestFuzzyMatch(c.raw, m.names)
	if score <= m.config.FuzzyThreshold {
		return nil
	}
	return m.result(m.canonical[normalizeName(name)], score, MatchTypeFuzzy)
}

func (m *Matcher) result(cl *models.CanonicalLocation, confidence float64, matchType string) *Match {
	if cl == nil {
		return nil
	}
	return &Match{
		Location:   cl.Name,
		Budget:     cl.TotalBudget,
		Confidence: confidence,
		MatchType:  matchType,
	}
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.TrimSpace(s)), " "))
}

// applyTypoAliases lower-cases the string and folds every known typo
// fragment to its correction.
func applyTypoAliases(s string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(s)), " "))
	for typo, fix := range typoAliases {
		folded = strings.ReplaceAll(folded, typo, fix)
	}
	return folded
}

var wordCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// firstMeaningfulWord returns the first word of at least minLen letters
// after stripping possessives and punctuation, or "" when none.
func firstMeaningfulWord(lower string, minLen int) string {
	for _, word := range strings.Fields(lower) {
		word = strings.TrimSuffix(word, "'s")
		word = wordCleanRe.ReplaceAllString(word, "")
		if len(word) >= minLen {
			return word
		}
	}
	return ""
}
