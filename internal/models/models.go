// Package models defines the record types that flow through the
// reconciliation pipeline: ledger transactions, budget line items, the
// canonical location set, the operator-curated alias table, and the
// per-run vendor profiles.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InferenceSource identifies which pipeline pass assigned a location to
// a transaction that lacked an explicit one.
type InferenceSource string

const (
	SourceExplicit        InferenceSource = "explicit"
	SourceDateEpisode     InferenceSource = "date-episode"
	SourceDateGlobal      InferenceSource = "date-global"
	SourceVendorHistory   InferenceSource = "vendor-history"
	SourceDateVendor      InferenceSource = "date-vendor"
	SourcePrimaryFallback InferenceSource = "episode-primary-fallback"
	SourceNone            InferenceSource = "none"
)

// ConfidenceTier is the categorical confidence attached to an inference.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
	ConfidenceNone   ConfidenceTier = ""
)

// UnmappedReason classifies a transaction whose extracted location
// matched no canonical budget entry.
type UnmappedReason string

const (
	UnmappedServiceCharge   UnmappedReason = "service_charge"
	UnmappedPendingLocation UnmappedReason = "pending_location"
	UnmappedNoBudgetMatch   UnmappedReason = "no_budget_match"
)

// OverheadKind classifies a transaction swept into production overhead.
type OverheadKind string

const (
	OverheadPayroll OverheadKind = "payroll"
	OverheadGeneral OverheadKind = "general"
	OverheadNone    OverheadKind = ""
)

// EpisodeUnknown tags transactions whose source file carries no episode.
const EpisodeUnknown = "unknown"

// EpisodeAll tags budget spread across every episode with activity.
const EpisodeAll = "all"

// DateRange is a calendar date span extracted from a transaction
// description. IsPayroll marks the payroll single-date form, whose year
// comes from the date token itself rather than the report date.
type DateRange struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	IsPayroll bool      `json:"isPayroll"`
}

// SpanDays returns the inclusive day count difference End - Start.
func (dr *DateRange) SpanDays() int {
	return int(dr.End.Sub(dr.Start).Hours() / 24)
}

// ExpandDays returns the individual calendar dates the range covers.
// A range spanning more than maxSpanDays collapses to the start day so
// a malformed token cannot fan out across months of lookup keys.
func (dr *DateRange) ExpandDays(maxSpanDays int) []time.Time {
	span := dr.SpanDays()
	if span < 0 || span > maxSpanDays {
		return []time.Time{dr.Start}
	}

	days := make([]time.Time, 0, span+1)
	for d := dr.Start; !d.After(dr.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// String returns a compact representation of the range.
func (dr *DateRange) String() string {
	const layout = "2006-01-02"
	if dr.Start.Equal(dr.End) {
		return dr.Start.Format(layout)
	}
	return fmt.Sprintf("%s..%s", dr.Start.Format(layout), dr.End.Format(layout))
}

// Transaction is one ledger entry. It is created by extraction and
// enriched by each pipeline stage through the Apply* patch methods;
// the description is never re-parsed once the record exists.
type Transaction struct {
	ID          string          `json:"id"`
	SourceFile  string          `json:"sourceFile,omitempty"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor"`
	Amount      decimal.Decimal `json:"amount"`
	AccountCode string          `json:"accountCode"`
	Episode     string          `json:"episode"`
	ReportDate  time.Time       `json:"reportDate"`

	// Set by the extraction stage.
	CandidateLocation string     `json:"candidateLocation,omitempty"`
	ServiceToken      string     `json:"serviceToken,omitempty"`
	DateRange         *DateRange `json:"dateRange,omitempty"`

	// Set by the matching stage.
	MatchedLocation string  `json:"matchedLocation,omitempty"`
	MatchConfidence float64 `json:"matchConfidence,omitempty"`
	MatchType       string  `json:"matchType,omitempty"`

	// Set by the matching stage when no strategy succeeded.
	UnmappedReason UnmappedReason `json:"unmappedReason,omitempty"`

	// Set by the inference stage.
	InferredLocation    string          `json:"inferredLocation,omitempty"`
	InferenceSource     InferenceSource `json:"inferenceSource,omitempty"`
	InferenceConfidence ConfidenceTier  `json:"inferenceConfidence,omitempty"`
	NeedsReview         bool            `json:"needsReview,omitempty"`

	// Set by the overhead stage.
	Overhead OverheadKind `json:"overhead,omitempty"`

	// Derived from the account code by the reporter.
	Category string `json:"category,omitempty"`
}

// Validate performs basic validation on the Transaction.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}
	if t.Episode == "" {
		return fmt.Errorf("transaction episode cannot be empty (use %q)", EpisodeUnknown)
	}
	return nil
}

// String returns a short representation for logs.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Vendor: %s, Amount: %s, Episode: %s}",
		t.ID, t.Vendor, t.Amount.String(), t.Episode)
}

// MatchPatch carries the fields the matching stage is allowed to set.
type MatchPatch struct {
	Location   string
	Confidence float64
	MatchType  string
}

// ApplyMatch records a successful location match. A transaction already
// matched keeps its original match; matching is single-owner.
func (t *Transaction) ApplyMatch(p MatchPatch) {
	if t.MatchedLocation != "" {
		return
	}
	t.MatchedLocation = p.Location
	t.MatchConfidence = p.Confidence
	t.MatchType = p.MatchType
	t.UnmappedReason = ""
}

// ApplyUnmapped records that no matching strategy succeeded.
func (t *Transaction) ApplyUnmapped(reason UnmappedReason) {
	if t.MatchedLocation != "" {
		return
	}
	t.UnmappedReason = reason
}

// InferencePatch carries the fields an inference pass is allowed to set.
type InferencePatch struct {
	Location   string
	Source     InferenceSource
	Confidence ConfidenceTier
}

// ApplyInference records an inferred location. Passes run in descending
// confidence order, so an already-inferred transaction is never revisited.
func (t *Transaction) ApplyInference(p InferencePatch) {
	if t.InferredLocation != "" || t.MatchedLocation != "" {
		return
	}
	t.InferredLocation = p.Location
	t.InferenceSource = p.Source
	t.InferenceConfidence = p.Confidence
}

// ClearInference removes an inference made before an overhead correction.
func (t *Transaction) ClearInference() {
	t.InferredLocation = ""
	t.InferenceSource = SourceNone
	t.InferenceConfidence = ConfidenceNone
}

// ApplyOverhead records an overhead classification.
func (t *Transaction) ApplyOverhead(kind OverheadKind) {
	t.Overhead = kind
}

// ResolvedLocation returns the location the transaction reconciles to:
// the matched location when present, otherwise the inferred one.
func (t *Transaction) ResolvedLocation() string {
	if t.MatchedLocation != "" {
		return t.MatchedLocation
	}
	return t.InferredLocation
}

// HasLocation reports whether any stage assigned a location.
func (t *Transaction) HasLocation() bool {
	return t.ResolvedLocation() != ""
}

// BudgetLineItem is one raw budget row. Quantity and Duration are
// pointers so an explicitly-zero field is distinguishable from an
// absent one: absent defaults to 1, explicit zero multiplies to zero.
type BudgetLineItem struct {
	Category    string           `json:"category"`
	LocationRef string           `json:"locationRef"`
	EpisodeRef  string           `json:"episodeRef,omitempty"`
	HeaderRef   string           `json:"headerRef,omitempty"`
	Rate        decimal.Decimal  `json:"rate"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Duration    *decimal.Decimal `json:"duration,omitempty"`
}

// Subtotal computes rate x quantity x duration with the explicit-zero
// semantics above.
func (li *BudgetLineItem) Subtotal() decimal.Decimal {
	qty := decimal.NewFromInt(1)
	if li.Quantity != nil {
		qty = *li.Quantity
	}
	dur := decimal.NewFromInt(1)
	if li.Duration != nil {
		dur = *li.Duration
	}
	return li.Rate.Mul(qty).Mul(dur)
}

// Usable reports whether the line item participates in aggregation.
// Zero-rate items are skipped and counted, not treated as errors.
func (li *BudgetLineItem) Usable() bool {
	return !li.Rate.IsZero() && strings.TrimSpace(li.LocationRef) != ""
}

// CanonicalLocation is a location as it exists in the budget, the
// reconciliation target. Built once per sync run and read-only during
// matching.
type CanonicalLocation struct {
	Name        string          `json:"name"`
	TotalBudget decimal.Decimal `json:"totalBudget"`
	Episodes    map[string]bool `json:"-"`
}

// EpisodeList returns the episodes the location appears in, sorted.
func (cl *CanonicalLocation) EpisodeList() []string {
	episodes := make([]string, 0, len(cl.Episodes))
	for ep := range cl.Episodes {
		episodes = append(episodes, ep)
	}
	sort.Strings(episodes)
	return episodes
}

// Alias-table sentinels. A budget location equal to ServiceChargeSentinel
// marks the ledger string as a production-wide service charge; a value
// prefixed PendingPrefix marks a location awaiting a budget entry.
const (
	ServiceChargeSentinel = "SERVICE_CHARGE"
	PendingPrefix         = "PENDING:"
)

// AliasEntry maps a ledger location string (and optional extra aliases)
// to a canonical budget location or a sentinel.
type AliasEntry struct {
	LedgerLocation string   `json:"ledgerLocation" yaml:"ledgerLocation"`
	BudgetLocation string   `json:"budgetLocation" yaml:"budgetLocation"`
	Aliases        []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// AliasTable is the operator-curated mapping consulted before any
// automatic matching strategy. Lookup is case-insensitive on trimmed
// input.
type AliasTable struct {
	entries map[string]string
}

// NewAliasTable builds a table from entries. Later entries win on
// duplicate keys, matching operator expectations of "last edit counts".
func NewAliasTable(entries []AliasEntry) *AliasTable {
	table := &AliasTable{entries: make(map[string]string, len(entries))}
	for _, e := range entries {
		target := strings.TrimSpace(e.BudgetLocation)
		if target == "" {
			continue
		}
		if key := normalizeAliasKey(e.LedgerLocation); key != "" {
			table.entries[key] = target
		}
		for _, alias := range e.Aliases {
			if key := normalizeAliasKey(alias); key != "" {
				table.entries[key] = target
			}
		}
	}
	return table
}

// EmptyAliasTable returns a usable table with no entries, the graceful
// degradation when the alias source is unavailable.
func EmptyAliasTable() *AliasTable {
	return &AliasTable{entries: map[string]string{}}
}

func normalizeAliasKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Lookup returns the mapped budget location for a ledger string.
func (at *AliasTable) Lookup(ledgerLocation string) (string, bool) {
	target, ok := at.entries[normalizeAliasKey(ledgerLocation)]
	return target, ok
}

// IsServiceCharge reports whether the ledger string maps to the
// service-charge sentinel.
func (at *AliasTable) IsServiceCharge(ledgerLocation string) bool {
	target, ok := at.Lookup(ledgerLocation)
	return ok && target == ServiceChargeSentinel
}

// PendingName returns the pending location name when the ledger string
// maps to a PENDING: entry.
func (at *AliasTable) PendingName(ledgerLocation string) (string, bool) {
	target, ok := at.Lookup(ledgerLocation)
	if !ok || !strings.HasPrefix(target, PendingPrefix) {
		return "", false
	}
	return strings.TrimPrefix(target, PendingPrefix), true
}

// Len returns the number of alias keys in the table.
func (at *AliasTable) Len() int {
	return len(at.entries)
}

// VendorTier is the reliability classification of a vendor's location
// history within the current batch.
type VendorTier string

const (
	VendorTierHigh     VendorTier = "high"
	VendorTierMedium   VendorTier = "medium"
	VendorTierLow      VendorTier = "low"
	VendorTierUnusable VendorTier = "unusable"
)

// VendorLocationProfile is a per-vendor histogram of confirmed locations,
// rebuilt fresh each run from already-located transactions.
type VendorLocationProfile struct {
	Vendor           string
	LocationCounts   map[string]int
	Total            int
	DominantLocation string
	DominantCount    int
	Tier             VendorTier
}

// Classify derives the dominant location and reliability tier from the
// histogram: high needs a single location seen at least minHighCount
// times; medium and low need the given concentration with at least two
// occurrences.
func (vp *VendorLocationProfile) Classify(minHighCount int, mediumRatio, lowRatio float64) {
	vp.DominantLocation = ""
	vp.DominantCount = 0
	for loc, count := range vp.LocationCounts {
		if count > vp.DominantCount || (count == vp.DominantCount && loc < vp.DominantLocation) {
			vp.DominantLocation = loc
			vp.DominantCount = count
		}
	}

	vp.Tier = VendorTierUnusable
	if vp.Total == 0 || vp.DominantLocation == "" {
		return
	}

	concentration := float64(vp.DominantCount) / float64(vp.Total)
	switch {
	case len(vp.LocationCounts) == 1 && vp.DominantCount >= minHighCount:
		vp.Tier = VendorTierHigh
	case concentration >= mediumRatio && vp.DominantCount >= 2:
		vp.Tier = VendorTierMedium
	case concentration >= lowRatio && vp.DominantCount >= 2:
		vp.Tier = VendorTierLow
	}
}

// PurchaseOrder is an open commitment used only for the summary figure.
type PurchaseOrder struct {
	ID     string          `json:"id"`
	Vendor string          `json:"vendor,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
}

// IsOpen reports whether the PO still counts as committed spend.
func (po *PurchaseOrder) IsOpen() bool {
	switch strings.ToUpper(strings.TrimSpace(po.Status)) {
	case "OPEN", "PARTIAL", "APPROVED", "":
		return true
	default:
		return false
	}
}

// SumAmounts totals the amounts of a transaction slice.
func SumAmounts(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// ParseDecimalFromString parses an amount, tolerating currency symbols,
// thousand separators, and accounting-style parenthesized negatives.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
