// Package inference assigns locations to transactions that text
// matching could not resolve, using temporal and vendor co-occurrence
// within the current batch. All lookup structures are per-run derived
// indices built once from already-located transactions and passed
// explicitly into the passes; nothing persists between runs.
package inference

import (
	"regexp"
	"strings"
	"time"

	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds the engine's tunable constants. Defaults are the
// production values.
type Config struct {
	// MaxRangeDays bounds date-range expansion when building and
	// querying the date indices, mirroring the extraction bound.
	MaxRangeDays int `json:"max_range_days" yaml:"max_range_days"`

	// VendorMinHighCount is the occurrence floor for a single-location
	// vendor to be high tier.
	VendorMinHighCount int `json:"vendor_min_high_count" yaml:"vendor_min_high_count"`

	// VendorMediumRatio and VendorLowRatio are the concentration floors
	// for the medium and low vendor tiers (each also needs at least two
	// occurrences of the dominant location).
	VendorMediumRatio float64 `json:"vendor_medium_ratio" yaml:"vendor_medium_ratio"`
	VendorLowRatio    float64 `json:"vendor_low_ratio" yaml:"vendor_low_ratio"`

	// MinPropagatedLocationLen is the minimum length of a location the
	// date-vendor pass will propagate to siblings.
	MinPropagatedLocationLen int `json:"min_propagated_location_len" yaml:"min_propagated_location_len"`
}

// DefaultConfig returns the production constants.
func DefaultConfig() *Config {
	return &Config{
		MaxRangeDays:             60,
		VendorMinHighCount:       3,
		VendorMediumRatio:        0.8,
		VendorLowRatio:           0.6,
		MinPropagatedLocationLen: 3,
	}
}

// Stats counts what each pass resolved, for run diagnostics.
type Stats struct {
	Eligible         int `json:"eligible"`
	DateEpisode      int `json:"date_episode"`
	DateGlobal       int `json:"date_global"`
	PrimaryPreferred int `json:"primary_preferred"`
	PrimaryFallback  int `json:"primary_fallback"`
	VendorHistory    int `json:"vendor_history"`
	DateVendor       int `json:"date_vendor"`
	NeedsReview      int `json:"needs_review"`
	Unresolved       int `json:"unresolved"`
}

// Engine runs the three ordered inference passes. Passes never revisit
// a transaction an earlier pass resolved.
type Engine struct {
	config *Config
	log    logger.Logger
}

// NewEngine creates an engine; a nil config uses defaults.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config, log: logger.WithComponent("inference")}
}

type dateLocations map[string]map[string]bool // date key -> location set

type indices struct {
	episodeDates   map[string]dateLocations // episode -> date -> locations
	globalDates    dateLocations
	episodePrimary map[string]string // episode -> highest-spend location
	vendorProfiles map[string]*models.VendorLocationProfile
}

const dateKeyLayout = "2006-01-02"

// Run applies the passes to every eligible transaction: one with no
// resolved location, no unmapped bucket assignment, and either no
// candidate at all or only a service-type token.
func (e *Engine) Run(transactions []*models.Transaction) *Stats {
	stats := &Stats{}
	idx := e.buildIndices(transactions)

	var eligible []*models.Transaction
	for _, tx := range transactions {
		if e.isEligible(tx) {
			eligible = append(eligible, tx)
		}
	}
	stats.Eligible = len(eligible)

	remaining := e.passDateCooccurrence(eligible, idx, stats)
	remaining = e.passVendorHistory(remaining, idx, stats)
	remaining = e.passDateVendor(remaining, transactions, stats)
	stats.Unresolved = len(remaining)

	e.log.WithFields(logger.Fields{
		"eligible":     stats.Eligible,
		"date_episode": stats.DateEpisode,
		"date_global":  stats.DateGlobal,
		"vendor":       stats.VendorHistory,
		"date_vendor":  stats.DateVendor,
		"needs_review": stats.NeedsReview,
		"unresolved":   stats.Unresolved,
	}).Info("inference complete")

	return stats
}

func (e *Engine) isEligible(tx *models.Transaction) bool {
	if tx.HasLocation() || tx.UnmappedReason != "" {
		return false
	}
	return tx.CandidateLocation == ""
}

// buildIndices derives the date maps, the per-episode primary location,
// and the vendor histograms from transactions that already carry a
// confident non-service location.
func (e *Engine) buildIndices(transactions []*models.Transaction) *indices {
	idx := &indices{
		episodeDates:   make(map[string]dateLocations),
		globalDates:    make(dateLocations),
		episodePrimary: make(map[string]string),
		vendorProfiles: make(map[string]*models.VendorLocationProfile),
	}

	episodeSpend := make(map[string]map[string]decimal.Decimal)

	for _, tx := range transactions {
		location := tx.MatchedLocation
		if location == "" || tx.ServiceToken != "" {
			continue
		}

		if tx.DateRange != nil {
			for _, day := range tx.DateRange.ExpandDays(e.config.MaxRangeDays) {
				key := day.Format(dateKeyLayout)
				addDateLocation(idx.globalDates, key, location)
				if tx.Episode != models.EpisodeUnknown {
					if idx.episodeDates[tx.Episode] == nil {
						idx.episodeDates[tx.Episode] = make(dateLocations)
					}
					addDateLocation(idx.episodeDates[tx.Episode], key, location)
				}
			}
		}

		if episodeSpend[tx.Episode] == nil {
			episodeSpend[tx.Episode] = make(map[string]decimal.Decimal)
		}
		episodeSpend[tx.Episode][location] = episodeSpend[tx.Episode][location].Add(tx.Amount.Abs())

		vendor := normalizeVendor(tx.Vendor)
		if vendor != "" {
			profile, ok := idx.vendorProfiles[vendor]
			if !ok {
				profile = &models.VendorLocationProfile{
					Vendor:         vendor,
					LocationCounts: make(map[string]int),
				}
				idx.vendorProfiles[vendor] = profile
			}
			profile.LocationCounts[location]++
			profile.Total++
		}
	}

	for episode, spend := range episodeSpend {
		best, bestAmount := "", decimal.Zero
		for location, amount := range spend {
			if amount.GreaterThan(bestAmount) || (amount.Equal(bestAmount) && location < best) {
				best, bestAmount = location, amount
			}
		}
		idx.episodePrimary[episode] = best
	}

	for _, profile := range idx.vendorProfiles {
		profile.Classify(e.config.VendorMinHighCount, e.config.VendorMediumRatio, e.config.VendorLowRatio)
	}

	return idx
}

// passDateCooccurrence infers from locations seen on the same calendar
// dates: own episode first, then the global map, then the episode's
// primary-location preference, then the primary fallback. Ambiguity the
// primary cannot break is flagged for review, never guessed.
func (e *Engine) passDateCooccurrence(txs []*models.Transaction, idx *indices, stats *Stats) []*models.Transaction {
	var remaining []*models.Transaction

	for _, tx := range txs {
		if tx.DateRange == nil {
			remaining = append(remaining, tx)
			continue
		}

		days := tx.DateRange.ExpandDays(e.config.MaxRangeDays)
		candidates := lookupDates(idx.episodeDates[tx.Episode], days)

		if len(candidates) == 1 {
			tx.ApplyInference(models.InferencePatch{
				Location:   soleMember(candidates),
				Source:     models.SourceDateEpisode,
				Confidence: models.ConfidenceHigh,
			})
			stats.DateEpisode++
			continue
		}

		if len(candidates) == 0 {
			global := lookupDates(idx.globalDates, days)
			if len(global) == 1 {
				tx.ApplyInference(models.InferencePatch{
					Location:   soleMember(global),
					Source:     models.SourceDateGlobal,
					Confidence: models.ConfidenceMedium,
				})
				stats.DateGlobal++
				continue
			}
			if len(global) == 0 {
				if primary := idx.episodePrimary[tx.Episode]; primary != "" {
					tx.ApplyInference(models.InferencePatch{
						Location:   primary,
						Source:     models.SourcePrimaryFallback,
						Confidence: models.ConfidenceLow,
					})
					stats.PrimaryFallback++
					continue
				}
				remaining = append(remaining, tx)
				continue
			}
			candidates = global
		}

		// Multiple candidates: prefer the episode's single highest-spend
		// location when it is among them; otherwise flag for review.
		if primary := idx.episodePrimary[tx.Episode]; primary != "" && candidates[primary] {
			tx.ApplyInference(models.InferencePatch{
				Location:   primary,
				Source:     models.SourceDateEpisode,
				Confidence: models.ConfidenceMedium,
			})
			stats.PrimaryPreferred++
			continue
		}

		tx.NeedsReview = true
		stats.NeedsReview++
		remaining = append(remaining, tx)
	}

	return remaining
}

// passVendorHistory infers the dominant location of vendors whose
// batch-local histogram classifies as a usable tier.
func (e *Engine) passVendorHistory(txs []*models.Transaction, idx *indices, stats *Stats) []*models.Transaction {
	var remaining []*models.Transaction

	for _, tx := range txs {
		profile, ok := idx.vendorProfiles[normalizeVendor(tx.Vendor)]
		if !ok || profile.Tier == models.VendorTierUnusable {
			remaining = append(remaining, tx)
			continue
		}

		confidence := models.ConfidenceLow
		switch profile.Tier {
		case models.VendorTierHigh:
			confidence = models.ConfidenceHigh
		case models.VendorTierMedium:
			confidence = models.ConfidenceMedium
		}

		tx.ApplyInference(models.InferencePatch{
			Location:   profile.DominantLocation,
			Source:     models.SourceVendorHistory,
			Confidence: confidence,
		})
		tx.NeedsReview = false
		stats.VendorHistory++
	}

	return remaining
}

var shortDateTokenRe = regexp.MustCompile(`\d{1,2}/\d{1,2}`)

// passDateVendor groups the whole batch by vendor plus a short date
// token pulled from the description text itself, and propagates a valid
// sibling location to group members still lacking one.
func (e *Engine) passDateVendor(txs []*models.Transaction, all []*models.Transaction, stats *Stats) []*models.Transaction {
	groupLocation := make(map[string]string)

	for _, tx := range all {
		key := e.dateVendorKey(tx)
		if key == "" {
			continue
		}
		location := tx.ResolvedLocation()
		if !e.isPropagatable(location) {
			continue
		}
		if _, ok := groupLocation[key]; !ok {
			groupLocation[key] = location
		}
	}

	var remaining []*models.Transaction
	for _, tx := range txs {
		key := e.dateVendorKey(tx)
		location, ok := groupLocation[key]
		if key == "" || !ok {
			remaining = append(remaining, tx)
			continue
		}

		tx.ApplyInference(models.InferencePatch{
			Location:   location,
			Source:     models.SourceDateVendor,
			Confidence: models.ConfidenceMedium,
		})
		tx.NeedsReview = false
		stats.DateVendor++
	}

	return remaining
}

func (e *Engine) dateVendorKey(tx *models.Transaction) string {
	vendor := normalizeVendor(tx.Vendor)
	if vendor == "" {
		return ""
	}
	token := shortDateTokenRe.FindString(tx.Description)
	if token == "" {
		return ""
	}
	return vendor + "|" + token
}

// isPropagatable rejects generic or too-short locations the date-vendor
// pass must not spread.
func (e *Engine) isPropagatable(location string) bool {
	if len(location) <= e.config.MinPropagatedLocationLen {
		return false
	}
	switch strings.ToUpper(location) {
	case "TBD", "MISC", "VARIOUS", "N/A":
		return false
	}
	return true
}

func addDateLocation(dl dateLocations, key, location string) {
	if dl[key] == nil {
		dl[key] = make(map[string]bool)
	}
	dl[key][location] = true
}

func lookupDates(dl dateLocations, days []time.Time) map[string]bool {
	union := make(map[string]bool)
	if dl == nil {
		return union
	}
	for _, day := range days {
		for location := range dl[day.Format(dateKeyLayout)] {
			union[location] = true
		}
	}
	return union
}

func soleMember(set map[string]bool) string {
	for member := range set {
		return member
	}
	return ""
}

func normalizeVendor(vendor string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.TrimSpace(vendor)), " "))
}
