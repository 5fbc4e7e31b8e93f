// Package budget normalizes raw budget line items and aggregates them
// into the per-location, per-episode, and per-category views the
// matching and reporting stages reconcile against. The aggregates are
// built once per sync run and are read-only afterwards.
package budget

import (
	"strings"

	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// categorySynonyms maps lower-cased raw category labels to canonical
// ones. Looked up case-insensitively before falling back to title case.
var categorySynonyms = map[string]string{
	"location fees":     "Loc Fees",
	"location fee":      "Loc Fees",
	"site fees":         "Loc Fees",
	"site fee":          "Loc Fees",
	"loc fees":          "Loc Fees",
	"loc fee":           "Loc Fees",
	"location security": "Security",
	"security":          "Security",
	"guards":            "Security",
	"permit fees":       "Permits",
	"permits":           "Permits",
	"permit":            "Permits",
	"police & fire":     "Police & Fire",
	"police and fire":   "Police & Fire",
	"police":            "Police & Fire",
	"fire":              "Police & Fire",
	"parking":           "Parking",
	"parking & basecamp": "Parking",
	"basecamp":          "Parking",
	"cleaning":          "Cleaning",
	"janitorial":        "Cleaning",
	"restoration":       "Cleaning",
	"equipment rental":  "Rentals",
	"equipment rentals": "Rentals",
	"rentals":           "Rentals",
	"location labor":    "Loc Labor",
	"loc labor":         "Loc Labor",
}

var titleCaser = cases.Title(language.AmericanEnglish)

// NormalizeCategory maps a raw category label through the synonym table,
// falling back to title-casing the raw label.
func NormalizeCategory(raw string) string {
	key := strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(raw)), " "))
	if key == "" {
		return "Uncategorized"
	}
	if canonical, ok := categorySynonyms[key]; ok {
		return canonical
	}
	return titleCaser.String(key)
}

// ReferenceData carries the reference chains used to resolve a line
// item's episode: location name -> budget header, header -> episode.
type ReferenceData struct {
	LocationHeader map[string]string
	HeaderEpisode  map[string]string
}

// EmptyReferenceData returns usable empty reference chains.
func EmptyReferenceData() *ReferenceData {
	return &ReferenceData{
		LocationHeader: map[string]string{},
		HeaderEpisode:  map[string]string{},
	}
}

// Record registers one line item's reference links. First sighting
// wins; budget exports repeat the header on every row under it.
func (r *ReferenceData) Record(location, header, episode string) {
	location = strings.TrimSpace(location)
	header = strings.TrimSpace(header)
	episode = strings.TrimSpace(episode)

	if location != "" && header != "" {
		if _, ok := r.LocationHeader[location]; !ok {
			r.LocationHeader[location] = header
		}
	}
	if header != "" && episode != "" {
		if _, ok := r.HeaderEpisode[header]; !ok {
			r.HeaderEpisode[header] = episode
		}
	}
}

// LocationEpisodeKey keys the (location, episode) budget view.
type LocationEpisodeKey struct {
	Location string
	Episode  string
}

// EpisodeCategoryKey keys the (episode, category) budget view.
type EpisodeCategoryKey struct {
	Episode  string
	Category string
}

// CategoryLocationEpisodeKey keys the finest-grained budget view.
type CategoryLocationEpisodeKey struct {
	Category string
	Location string
	Episode  string
}

// Aggregates holds the budget views for one sync run.
type Aggregates struct {
	ByLocationEpisode         map[LocationEpisodeKey]decimal.Decimal
	ByEpisodeCategory         map[EpisodeCategoryKey]decimal.Decimal
	ByCategoryLocationEpisode map[CategoryLocationEpisodeKey]decimal.Decimal
	EpisodeTotals             map[string]decimal.Decimal
	CanonicalLocations        map[string]*models.CanonicalLocation

	// SkippedLineItems counts items dropped for a zero or unparseable
	// rate or a missing location reference. Diagnostic, not an error.
	SkippedLineItems int

	redistributed bool
}

// Aggregator builds budget aggregates from raw line items.
type Aggregator struct {
	refs *ReferenceData
	log  logger.Logger
}

// NewAggregator creates an aggregator; nil refs degrade to empty chains.
func NewAggregator(refs *ReferenceData) *Aggregator {
	if refs == nil {
		refs = EmptyReferenceData()
	}
	return &Aggregator{
		refs: refs,
		log:  logger.WithComponent("budget"),
	}
}

// ResolveEpisode resolves a line item's episode through the reference
// chain: direct episode reference, then the location's header chain,
// then the item's own header reference, else "all".
func (a *Aggregator) ResolveEpisode(li *models.BudgetLineItem) string {
	if ep := strings.TrimSpace(li.EpisodeRef); ep != "" {
		return ep
	}

	if header, ok := a.refs.LocationHeader[strings.TrimSpace(li.LocationRef)]; ok {
		if ep, ok := a.refs.HeaderEpisode[header]; ok && ep != "" {
			return ep
		}
	}

	if ep, ok := a.refs.HeaderEpisode[strings.TrimSpace(li.HeaderRef)]; ok && ep != "" {
		return ep
	}

	return models.EpisodeAll
}

// Aggregate builds the three budget views, the per-episode totals, and
// the canonical location set from the raw line items. Items with a zero
// rate or no location reference are counted as skipped, not errored.
func (a *Aggregator) Aggregate(items []*models.BudgetLineItem) *Aggregates {
	agg := &Aggregates{
		ByLocationEpisode:         make(map[LocationEpisodeKey]decimal.Decimal),
		ByEpisodeCategory:         make(map[EpisodeCategoryKey]decimal.Decimal),
		ByCategoryLocationEpisode: make(map[CategoryLocationEpisodeKey]decimal.Decimal),
		EpisodeTotals:             make(map[string]decimal.Decimal),
		CanonicalLocations:        make(map[string]*models.CanonicalLocation),
	}

	for _, li := range items {
		if !li.Usable() {
			agg.SkippedLineItems++
			continue
		}

		location := strings.TrimSpace(li.LocationRef)
		episode := a.ResolveEpisode(li)
		category := NormalizeCategory(li.Category)
		subtotal := li.Subtotal()

		addTo(agg.ByLocationEpisode, LocationEpisodeKey{location, episode}, subtotal)
		addTo(agg.ByEpisodeCategory, EpisodeCategoryKey{episode, category}, subtotal)
		addTo(agg.ByCategoryLocationEpisode, CategoryLocationEpisodeKey{category, location, episode}, subtotal)
		addTo(agg.EpisodeTotals, episode, subtotal)

		cl, ok := agg.CanonicalLocations[location]
		if !ok {
			cl = &models.CanonicalLocation{
				Name:        location,
				TotalBudget: decimal.Zero,
				Episodes:    make(map[string]bool),
			}
			agg.CanonicalLocations[location] = cl
		}
		cl.TotalBudget = cl.TotalBudget.Add(subtotal)
		cl.Episodes[episode] = true
	}

	a.log.WithFields(logger.Fields{
		"line_items": len(items),
		"skipped":    agg.SkippedLineItems,
		"locations":  len(agg.CanonicalLocations),
	}).Info("budget aggregated")

	return agg
}

// RedistributeAll spreads "all"-tagged budget evenly across the episodes
// that have actual ledger activity in the current batch. It must run
// before matching because it changes the per-episode denominators used
// in variance percentages. Calling it twice is a no-op.
func (agg *Aggregates) RedistributeAll(activeEpisodes []string) {
	if agg.redistributed {
		return
	}
	agg.redistributed = true

	seen := make(map[string]bool, len(activeEpisodes))
	episodes := make([]string, 0, len(activeEpisodes))
	for _, ep := range activeEpisodes {
		if ep == "" || ep == models.EpisodeAll || ep == models.EpisodeUnknown || seen[ep] {
			continue
		}
		seen[ep] = true
		episodes = append(episodes, ep)
	}
	if len(episodes) == 0 {
		return
	}
	n := decimal.NewFromInt(int64(len(episodes)))

	for key, amount := range agg.ByLocationEpisode {
		if key.Episode != models.EpisodeAll {
			continue
		}
		delete(agg.ByLocationEpisode, key)
		share := amount.Div(n)
		for _, ep := range episodes {
			addTo(agg.ByLocationEpisode, LocationEpisodeKey{key.Location, ep}, share)
		}
		if cl, ok := agg.CanonicalLocations[key.Location]; ok {
			delete(cl.Episodes, models.EpisodeAll)
			for _, ep := range episodes {
				cl.Episodes[ep] = true
			}
		}
	}

	for key, amount := range agg.ByEpisodeCategory {
		if key.Episode != models.EpisodeAll {
			continue
		}
		delete(agg.ByEpisodeCategory, key)
		share := amount.Div(n)
		for _, ep := range episodes {
			addTo(agg.ByEpisodeCategory, EpisodeCategoryKey{ep, key.Category}, share)
		}
	}

	for key, amount := range agg.ByCategoryLocationEpisode {
		if key.Episode != models.EpisodeAll {
			continue
		}
		delete(agg.ByCategoryLocationEpisode, key)
		share := amount.Div(n)
		for _, ep := range episodes {
			addTo(agg.ByCategoryLocationEpisode, CategoryLocationEpisodeKey{key.Category, key.Location, ep}, share)
		}
	}

	if allTotal, ok := agg.EpisodeTotals[models.EpisodeAll]; ok {
		delete(agg.EpisodeTotals, models.EpisodeAll)
		share := allTotal.Div(n)
		for _, ep := range episodes {
			addTo(agg.EpisodeTotals, ep, share)
		}
	}
}

// LocationBudget returns the total budget for a canonical location.
func (agg *Aggregates) LocationBudget(location string) decimal.Decimal {
	if cl, ok := agg.CanonicalLocations[location]; ok {
		return cl.TotalBudget
	}
	return decimal.Zero
}

func addTo[K comparable](m map[K]decimal.Decimal, key K, amount decimal.Decimal) {
	m[key] = m[key].Add(amount)
}
