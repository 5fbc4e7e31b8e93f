// Package reconciler orchestrates a full reconciliation run: ledger
// extraction, budget aggregation, location matching, location
// inference, overhead classification, and result assembly. Stages run
// strictly in that order; each consumes only the fields earlier stages
// produced. Every transaction lands in exactly one output bucket, so
// the accounted total always equals the invoiced total.
package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-location-reconciler/internal/budget"
	"ledger-location-reconciler/internal/extract"
	"ledger-location-reconciler/internal/inference"
	"ledger-location-reconciler/internal/matcher"
	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/internal/overhead"
	"ledger-location-reconciler/internal/parsers"
	apperrors "ledger-location-reconciler/pkg/errors"
	"ledger-location-reconciler/pkg/logger"
)

// Config aggregates the per-stage configurations for one service.
// Nil sub-configs fall back to their stage defaults.
type Config struct {
	Ledger    *parsers.LedgerConfig
	Budget    *parsers.BudgetConfig
	Dates     *extract.DateConfig
	Matcher   *matcher.Config
	Inference *inference.Config
	Overhead  *overhead.Config

	// MaxConcurrency bounds the ledger-file parse fan-out.
	MaxConcurrency int

	// DivergenceWarnPercent is the over-budget threshold, in percent of
	// the location budget, above which a run warning is emitted.
	DivergenceWarnPercent float64
}

// DefaultConfig returns the standard service configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:        4,
		DivergenceWarnPercent: 5.0,
	}
}

// Request names the input files for one run. Ledger and budget files
// are required; alias and purchase-order files degrade to empty when
// absent.
type Request struct {
	LedgerFiles []string
	BudgetFile  string
	AliasFile   string
	POFile      string
}

// Validate checks the request for required inputs.
func (r *Request) Validate() error {
	if len(r.LedgerFiles) == 0 {
		return apperrors.ValidationError(apperrors.CodeMissingField, "ledger_files", nil, nil)
	}
	if r.BudgetFile == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "budget_file", nil, nil)
	}
	return nil
}

// Service runs reconciliations.
type Service struct {
	config *Config
	log    logger.Logger
}

// NewService creates a service; a nil config uses defaults.
func NewService(config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	if config.DivergenceWarnPercent <= 0 {
		config.DivergenceWarnPercent = 5.0
	}
	return &Service{
		config: config,
		log:    logger.WithComponent("reconciler"),
	}
}

// Run executes the full pipeline for one request.
func (s *Service) Run(ctx context.Context, req *Request) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.log.WithRun(runID)
	start := time.Now()

	log.WithFields(logger.Fields{
		"ledger_files": len(req.LedgerFiles),
		"budget_file":  req.BudgetFile,
	}).Info("reconciliation run started")

	aliases, err := parsers.ParseAliasTable(req.AliasFile)
	if err != nil {
		return nil, err
	}
	purchaseOrders, _, err := parsers.ParsePurchaseOrders(req.POFile)
	if err != nil {
		return nil, err
	}

	budgetParser, err := parsers.NewBudgetParser(s.config.Budget)
	if err != nil {
		return nil, err
	}
	lineItems, refs, budgetStats, err := budgetParser.Parse(req.BudgetFile)
	if err != nil {
		return nil, err
	}
	aggregates := budget.NewAggregator(refs).Aggregate(lineItems)
	if len(aggregates.CanonicalLocations) == 0 {
		return nil, apperrors.BudgetError(apperrors.CodeEmptyBudget, req.BudgetFile, nil)
	}

	transactions, parseStats, err := s.extractAll(ctx, req.LedgerFiles)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aggregates.RedistributeAll(activeEpisodes(transactions))

	diag := &Diagnostics{
		FilesParsed:       len(parseStats),
		ParseStats:        parseStats,
		TotalTransactions: len(transactions),
		MatchTypeCounts:   make(map[string]int),
		SkippedLineItems:  aggregates.SkippedLineItems,
		Errors:            rowErrorSummary(append(parseStats, budgetStats)),
	}
	// Extraction-stage counters, derived from the extracted fields so
	// they hold regardless of which later stages run.
	for _, tx := range transactions {
		if tx.DateRange != nil {
			diag.WithDateRange++
		}
		if tx.CandidateLocation != "" {
			diag.WithCandidate++
		}
	}

	s.matchAll(transactions, aggregates, aliases, diag)

	engine := inference.NewEngine(s.config.Inference)
	diag.Inference = engine.Run(transactions)

	classifier := overhead.NewClassifier(s.config.Overhead)
	diag.Overhead = classifier.Classify(transactions)

	result := s.buildResult(runID, transactions, aggregates, purchaseOrders, diag)
	diag.ElapsedSeconds = time.Since(start).Seconds()

	if err := s.checkConservation(result); err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"transactions": len(transactions),
		"locations":    len(result.LocationReports),
		"matched":      diag.Matched,
		"elapsed":      diag.ElapsedSeconds,
	}).Info("reconciliation run complete")

	return result, nil
}

// matchAll runs the matcher over every transaction that produced a
// location candidate. Candidates that match nothing are bucketed by
// unmapped reason; transactions with no candidate stay open for the
// inference stage.
func (s *Service) matchAll(transactions []*models.Transaction, aggregates *budget.Aggregates, aliases *models.AliasTable, diag *Diagnostics) {
	m := matcher.New(aggregates.CanonicalLocations, aliases, s.config.Matcher)

	for _, tx := range transactions {
		if tx.CandidateLocation == "" {
			continue
		}

		if match := m.MatchWithDescription(tx.CandidateLocation, tx.Description); match != nil {
			tx.ApplyMatch(models.MatchPatch{
				Location:   match.Location,
				Confidence: match.Confidence,
				MatchType:  match.MatchType,
			})
			diag.Matched++
			diag.MatchTypeCounts[match.MatchType]++
			continue
		}

		tx.ApplyUnmapped(m.ClassifyUnmapped(tx.CandidateLocation))
	}
}

// buildResult assembles location reports, side buckets, the summary,
// and run warnings from the fully-staged transactions.
func (s *Service) buildResult(runID string, transactions []*models.Transaction, aggregates *budget.Aggregates, purchaseOrders []*models.PurchaseOrder, diag *Diagnostics) *RunResult {
	result := &RunResult{
		RunID:           runID,
		GeneratedAt:     time.Now().UTC(),
		ServiceCharges:  newBucket("service_charges"),
		PendingLocation: newBucket("pending_location"),
		NoBudgetMatch:   newBucket("no_budget_match"),
		PayrollOverhead: newBucket("payroll_overhead"),
		GeneralOverhead: newBucket("general_overhead"),
		NeedsReview:     newBucket("needs_review"),
		Unmatched:       newBucket("unmatched"),
		Diagnostics:     diag,
		Transactions:    transactions,
	}

	reports := make(map[string]*LocationReport)

	for _, tx := range transactions {
		switch {
		case tx.HasLocation():
			lr := reports[tx.ResolvedLocation()]
			if lr == nil {
				lr = &LocationReport{
					Location:       tx.ResolvedLocation(),
					MatchedActual:  decimal.Zero,
					InferredActual: decimal.Zero,
					Deposits:       decimal.Zero,
				}
				reports[lr.Location] = lr
			}
			if tx.MatchedLocation != "" {
				lr.MatchedActual = lr.MatchedActual.Add(tx.Amount)
			} else {
				lr.InferredActual = lr.InferredActual.Add(tx.Amount)
			}
			if isDeposit(tx.Description) {
				lr.Deposits = lr.Deposits.Add(tx.Amount)
			}
			category := budget.CategoryForAccount(tx.AccountCode)
			if lr.Categories == nil {
				lr.Categories = make(map[string]decimal.Decimal)
			}
			lr.Categories[category] = lr.Categories[category].Add(tx.Amount)
			lr.IDs = append(lr.IDs, tx.ID)
			lr.Transactions++

		case tx.Overhead == models.OverheadPayroll:
			result.PayrollOverhead.add(tx)
		case tx.Overhead == models.OverheadGeneral:
			result.GeneralOverhead.add(tx)

		case tx.UnmappedReason == models.UnmappedServiceCharge:
			result.ServiceCharges.add(tx)
		case tx.UnmappedReason == models.UnmappedPendingLocation:
			result.PendingLocation.add(tx)
		case tx.UnmappedReason == models.UnmappedNoBudgetMatch:
			result.NoBudgetMatch.add(tx)

		case tx.NeedsReview:
			result.NeedsReview.add(tx)
		default:
			result.Unmatched.add(tx)
		}
	}

	totalDeposits := decimal.Zero
	for _, lr := range reports {
		lr.TotalActual = lr.MatchedActual.Add(lr.InferredActual)
		lr.Budget = aggregates.LocationBudget(lr.Location)
		lr.Variance = lr.Budget.Sub(lr.TotalActual)
		lr.VariancePercent = variancePercent(lr.Budget, lr.TotalActual)
		lr.OverBudget = lr.TotalActual.GreaterThan(lr.Budget)
		if cl, ok := aggregates.CanonicalLocations[lr.Location]; ok {
			lr.Episodes = cl.EpisodeList()
		}
		totalDeposits = totalDeposits.Add(lr.Deposits)
		result.LocationReports = append(result.LocationReports, lr)

		if overBy := overagePercent(lr.Budget, lr.TotalActual); overBy > s.config.DivergenceWarnPercent {
			result.Warnings = append(result.Warnings, overageWarning(lr, overBy))
		}
	}
	sortLocationReports(result.LocationReports)

	totalInvoiced := models.SumAmounts(transactions)
	totalCommitted := decimal.Zero
	for _, po := range purchaseOrders {
		if po.IsOpen() {
			totalCommitted = totalCommitted.Add(po.Amount)
		}
	}
	totalBudget := decimal.Zero
	for _, cl := range aggregates.CanonicalLocations {
		totalBudget = totalBudget.Add(cl.TotalBudget)
	}

	result.Summary = &Summary{
		TotalInvoiced:      totalInvoiced,
		TotalCommitted:     totalCommitted,
		TotalWithCommitted: totalInvoiced.Add(totalCommitted),
		TotalDeposits:      totalDeposits,
		NetOfDeposits:      totalInvoiced.Sub(totalDeposits),
		TotalBudget:        totalBudget,
	}

	return result
}

// checkConservation verifies the invariant that bucketing loses no
// money: the sum over every location report and bucket must equal the
// invoiced total.
func (s *Service) checkConservation(result *RunResult) error {
	accounted := result.AccountedTotal()
	if accounted.Equal(result.Summary.TotalInvoiced) {
		return nil
	}
	s.log.WithFields(logger.Fields{
		"accounted": accounted.String(),
		"invoiced":  result.Summary.TotalInvoiced.String(),
	}).Error("conservation check failed")
	return apperrors.ReconciliationError(apperrors.CodeConservationBroken, "bucket totals", nil)
}

// variancePercent reports remaining budget as a percentage of budget.
// A location with spend but no budget reads as fully overspent, -100.
func variancePercent(budget, actual decimal.Decimal) float64 {
	if budget.IsZero() {
		if actual.IsZero() {
			return 0
		}
		return -100
	}
	pct, _ := budget.Sub(actual).Div(budget).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// overagePercent reports how far actual exceeds budget, in percent of
// budget; zero when at or under budget.
func overagePercent(budget, actual decimal.Decimal) float64 {
	if budget.IsZero() || actual.LessThanOrEqual(budget) {
		return 0
	}
	pct, _ := actual.Sub(budget).Div(budget).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func overageWarning(lr *LocationReport, overBy float64) string {
	return "location " + lr.Location + " actual " + lr.TotalActual.StringFixed(2) +
		" exceeds budget " + lr.Budget.StringFixed(2) +
		" by " + decimal.NewFromFloat(overBy).StringFixed(1) + "%"
}

// activeEpisodes returns the distinct real episodes present in the
// batch, the denominator set for redistributing "all"-tagged budget.
func activeEpisodes(transactions []*models.Transaction) []string {
	seen := make(map[string]bool)
	var episodes []string
	for _, tx := range transactions {
		ep := tx.Episode
		if ep == "" || ep == models.EpisodeAll || ep == models.EpisodeUnknown || seen[ep] {
			continue
		}
		seen[ep] = true
		episodes = append(episodes, ep)
	}
	return episodes
}
