package reconciler

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-location-reconciler/internal/inference"
	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/internal/overhead"
	"ledger-location-reconciler/internal/parsers"
	apperrors "ledger-location-reconciler/pkg/errors"
)

// LocationReport is the per-location reconciliation outcome: budgeted
// versus actual spend, with matched and inferred actuals kept separate
// so low-confidence attribution stays visible.
type LocationReport struct {
	Location        string          `json:"location"`
	Episodes        []string        `json:"episodes,omitempty"`
	Budget          decimal.Decimal `json:"budget"`
	MatchedActual   decimal.Decimal `json:"matched_actual"`
	InferredActual  decimal.Decimal `json:"inferred_actual"`
	TotalActual     decimal.Decimal `json:"total_actual"`
	Deposits        decimal.Decimal `json:"deposits"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent float64         `json:"variance_percent"`
	Transactions    int             `json:"transactions"`
	OverBudget      bool            `json:"over_budget"`

	// Categories breaks the actual spend down by the spend category
	// derived from each transaction's GL account code.
	Categories map[string]decimal.Decimal `json:"categories,omitempty"`

	// IDs lists the attributed transactions, mirroring Bucket.IDs.
	IDs []string `json:"ids,omitempty"`
}

// Bucket is one side pot of transactions that reconcile somewhere other
// than a budget location.
type Bucket struct {
	Name         string          `json:"name"`
	Total        decimal.Decimal `json:"total"`
	Transactions int             `json:"transactions"`
	IDs          []string        `json:"ids,omitempty"`
}

// Summary carries the run-level money figures.
type Summary struct {
	TotalInvoiced      decimal.Decimal `json:"total_invoiced"`
	TotalCommitted     decimal.Decimal `json:"total_committed"`
	TotalWithCommitted decimal.Decimal `json:"total_with_committed"`
	TotalDeposits      decimal.Decimal `json:"total_deposits"`
	NetOfDeposits      decimal.Decimal `json:"net_of_deposits"`
	TotalBudget        decimal.Decimal `json:"total_budget"`
}

// Diagnostics carries the stage counters for one run.
type Diagnostics struct {
	FilesParsed       int                  `json:"files_parsed"`
	ParseStats        []*parsers.ParseStats `json:"parse_stats,omitempty"`
	TotalTransactions int                  `json:"total_transactions"`
	WithCandidate     int                  `json:"with_candidate"`
	WithDateRange     int                  `json:"with_date_range"`
	Matched           int                  `json:"matched"`
	MatchTypeCounts   map[string]int       `json:"match_type_counts,omitempty"`
	Inference         *inference.Stats     `json:"inference,omitempty"`
	Overhead          *overhead.Stats      `json:"overhead,omitempty"`
	SkippedLineItems  int                  `json:"skipped_budget_line_items"`
	Errors            *apperrors.ErrorSummary `json:"errors,omitempty"`
	ElapsedSeconds    float64              `json:"elapsed_seconds"`
}

// rowErrorSummary folds the per-row parse errors of every input file
// into one categorized summary for the run diagnostics. Nil when every
// row parsed.
func rowErrorSummary(stats []*parsers.ParseStats) *apperrors.ErrorSummary {
	var errs []*apperrors.ReconcilerError
	for _, st := range stats {
		if st == nil {
			continue
		}
		for _, re := range st.RowErrors {
			errs = append(errs, convertRowError(st.File, re))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return apperrors.NewErrorSummary(errs)
}

// convertRowError maps a row-level parse failure onto the categorized
// error vocabulary by the field that failed.
func convertRowError(file string, re *parsers.RowError) *apperrors.ReconcilerError {
	field := strings.ToLower(re.Field)
	switch {
	case strings.Contains(field, "amount") || strings.Contains(field, "rate") ||
		strings.Contains(field, "quantity") || strings.Contains(field, "duration"):
		return apperrors.ValidationError(apperrors.CodeInvalidAmount, re.Field, re.Value, nil).
			WithContext("file", file).
			WithContext("line", re.Line)
	case strings.Contains(field, "date"):
		return apperrors.ValidationError(apperrors.CodeInvalidDate, re.Field, re.Value, nil).
			WithContext("file", file).
			WithContext("line", re.Line)
	default:
		return apperrors.ParseError(apperrors.CodeInvalidData, file, re.Line, re.Message, nil)
	}
}

// RunResult is the complete outcome of one reconciliation run.
type RunResult struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	LocationReports []*LocationReport `json:"location_reports"`

	ServiceCharges  *Bucket `json:"service_charges"`
	PendingLocation *Bucket `json:"pending_location"`
	NoBudgetMatch   *Bucket `json:"no_budget_match"`
	PayrollOverhead *Bucket `json:"payroll_overhead"`
	GeneralOverhead *Bucket `json:"general_overhead"`
	NeedsReview     *Bucket `json:"needs_review"`
	Unmatched       *Bucket `json:"unmatched"`

	Summary     *Summary     `json:"summary"`
	Diagnostics *Diagnostics `json:"diagnostics"`
	Warnings    []string     `json:"warnings,omitempty"`

	Transactions []*models.Transaction `json:"-"`
}

// Buckets returns the side pots in report order.
func (r *RunResult) Buckets() []*Bucket {
	return []*Bucket{
		r.ServiceCharges,
		r.PendingLocation,
		r.NoBudgetMatch,
		r.PayrollOverhead,
		r.GeneralOverhead,
		r.NeedsReview,
		r.Unmatched,
	}
}

// AccountedTotal sums every location report and bucket. Conservation
// requires this to equal Summary.TotalInvoiced exactly.
func (r *RunResult) AccountedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, lr := range r.LocationReports {
		total = total.Add(lr.TotalActual)
	}
	for _, b := range r.Buckets() {
		total = total.Add(b.Total)
	}
	return total
}

func newBucket(name string) *Bucket {
	return &Bucket{Name: name, Total: decimal.Zero}
}

func (b *Bucket) add(tx *models.Transaction) {
	b.Total = b.Total.Add(tx.Amount)
	b.Transactions++
	b.IDs = append(b.IDs, tx.ID)
}

// depositTerms mark refundable amounts that flow back at wrap and are
// excluded from the net spend figure.
var depositTerms = []string{"security deposit", "refundable", "deposit"}

func isDeposit(description string) bool {
	lower := strings.ToLower(description)
	for _, term := range depositTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func sortLocationReports(reports []*LocationReport) {
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].TotalActual.Equal(reports[j].TotalActual) {
			return reports[i].TotalActual.GreaterThan(reports[j].TotalActual)
		}
		return reports[i].Location < reports[j].Location
	})
}
