// Package reporter renders reconciliation run results for people and
// machines. Console output is the operator-facing view; JSON and CSV
// feed spreadsheets and downstream tooling.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/internal/reconciler"

	"github.com/shopspring/decimal"
)

// OutputFormat selects the report rendering.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeTransactions bool `json:"include_transactions"`
	IncludeDiagnostics  bool `json:"include_diagnostics"`
	IncludeBucketIDs    bool `json:"include_bucket_ids"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeDiagnostics: true,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders run results in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a generator; a nil config uses defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the run result to the writer.
func (rg *ReportGenerator) GenerateReport(result *reconciler.RunResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("run result cannot be nil")
	}

	AnnotateCategories(result.Transactions)

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.RunResult, writer io.Writer) error {
	fmt.Fprintf(writer, "LOCATION RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Run:       %s\n", result.RunID)
	fmt.Fprintf(writer, "Generated: %s\n\n", result.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== LOCATIONS ===\n")
	rg.printLocationTable(result, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== UNALLOCATED ===\n")
	for _, bucket := range result.Buckets() {
		if bucket.Transactions == 0 {
			continue
		}
		fmt.Fprintf(writer, "  %-18s %12s  (%d transactions)\n",
			bucketLabel(bucket.Name), bucket.Total.StringFixed(2), bucket.Transactions)
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(result.Summary, writer)

	if len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "\n=== WARNINGS ===\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(writer, "  ! %s\n", warning)
		}
	}

	if rg.config.IncludeDiagnostics && result.Diagnostics != nil {
		fmt.Fprintf(writer, "\n=== RUN DIAGNOSTICS ===\n")
		rg.printDiagnostics(result.Diagnostics, writer)
	}

	return nil
}

func (rg *ReportGenerator) printLocationTable(result *reconciler.RunResult, writer io.Writer) {
	fmt.Fprintf(writer, "  %-32s %12s %12s %12s %9s\n",
		"Location", "Budget", "Actual", "Variance", "Var %")
	for _, lr := range result.LocationReports {
		marker := " "
		if lr.OverBudget {
			marker = "*"
		}
		fmt.Fprintf(writer, "%s %-32s %12s %12s %12s %8.1f%%\n",
			marker, truncate(lr.Location, 32),
			lr.Budget.StringFixed(2), lr.TotalActual.StringFixed(2),
			lr.Variance.StringFixed(2), lr.VariancePercent)
		if !lr.InferredActual.IsZero() {
			fmt.Fprintf(writer, "    inferred portion: %s\n", lr.InferredActual.StringFixed(2))
		}
		if !lr.Deposits.IsZero() {
			fmt.Fprintf(writer, "    deposits: %s\n", lr.Deposits.StringFixed(2))
		}
		if len(lr.Categories) > 0 {
			fmt.Fprintf(writer, "    by category: %s\n", formatCategories(lr.Categories, " ", ", "))
		}
	}
}

func (rg *ReportGenerator) printSummary(summary *reconciler.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "  Total budget:        %14s\n", summary.TotalBudget.StringFixed(2))
	fmt.Fprintf(writer, "  Total invoiced:      %14s\n", summary.TotalInvoiced.StringFixed(2))
	fmt.Fprintf(writer, "  Open commitments:    %14s\n", summary.TotalCommitted.StringFixed(2))
	fmt.Fprintf(writer, "  Invoiced+committed:  %14s\n", summary.TotalWithCommitted.StringFixed(2))
	fmt.Fprintf(writer, "  Refundable deposits: %14s\n", summary.TotalDeposits.StringFixed(2))
	fmt.Fprintf(writer, "  Net of deposits:     %14s\n", summary.NetOfDeposits.StringFixed(2))
}

func (rg *ReportGenerator) printDiagnostics(diag *reconciler.Diagnostics, writer io.Writer) {
	fmt.Fprintf(writer, "  Files parsed:        %d\n", diag.FilesParsed)
	fmt.Fprintf(writer, "  Transactions:        %d\n", diag.TotalTransactions)
	fmt.Fprintf(writer, "  With candidate:      %d\n", diag.WithCandidate)
	fmt.Fprintf(writer, "  With date range:     %d\n", diag.WithDateRange)
	fmt.Fprintf(writer, "  Matched:             %d\n", diag.Matched)
	for matchType, count := range diag.MatchTypeCounts {
		fmt.Fprintf(writer, "    %-18s %d\n", matchType+":", count)
	}
	if diag.Inference != nil {
		fmt.Fprintf(writer, "  Inferred (date/ep):  %d\n", diag.Inference.DateEpisode)
		fmt.Fprintf(writer, "  Inferred (global):   %d\n", diag.Inference.DateGlobal)
		fmt.Fprintf(writer, "  Inferred (vendor):   %d\n", diag.Inference.VendorHistory)
		fmt.Fprintf(writer, "  Inferred (date+vnd): %d\n", diag.Inference.DateVendor)
		fmt.Fprintf(writer, "  Needs review:        %d\n", diag.Inference.NeedsReview)
	}
	if diag.Overhead != nil {
		fmt.Fprintf(writer, "  Payroll overhead:    %d\n", diag.Overhead.PayrollOverhead)
		fmt.Fprintf(writer, "  General overhead:    %d\n", diag.Overhead.GeneralOverhead)
	}
	if diag.Errors != nil {
		fmt.Fprintf(writer, "  Row errors:          %d\n", diag.Errors.Total)
	}
	fmt.Fprintf(writer, "  Elapsed:             %.2fs\n", diag.ElapsedSeconds)
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.RunResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if !rg.config.IncludeBucketIDs {
		result = stripTransactionIDs(result)
	}

	if rg.config.IncludeTransactions {
		// Shadow the struct to surface the transaction list the default
		// encoding hides.
		return encoder.Encode(struct {
			*reconciler.RunResult
			Transactions []*models.Transaction `json:"transactions"`
		}{result, result.Transactions})
	}
	return encoder.Encode(result)
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.RunResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Type", "Name", "Episodes", "Budget", "Matched_Actual",
			"Inferred_Actual", "Total_Actual", "Deposits", "Variance",
			"Variance_Percent", "Transactions", "Categories",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, lr := range result.LocationReports {
		record := []string{
			"Location",
			lr.Location,
			strings.Join(lr.Episodes, ";"),
			lr.Budget.StringFixed(2),
			lr.MatchedActual.StringFixed(2),
			lr.InferredActual.StringFixed(2),
			lr.TotalActual.StringFixed(2),
			lr.Deposits.StringFixed(2),
			lr.Variance.StringFixed(2),
			fmt.Sprintf("%.1f", lr.VariancePercent),
			fmt.Sprintf("%d", lr.Transactions),
			formatCategories(lr.Categories, "=", ";"),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write location record: %w", err)
		}
	}

	for _, bucket := range result.Buckets() {
		if bucket.Transactions == 0 {
			continue
		}
		record := []string{
			"Bucket",
			bucket.Name,
			"",
			"",
			"",
			"",
			bucket.Total.StringFixed(2),
			"",
			"",
			"",
			fmt.Sprintf("%d", bucket.Transactions),
			"",
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write bucket record: %w", err)
		}
	}

	summary := result.Summary
	record := []string{
		"Summary",
		"totals",
		"",
		summary.TotalBudget.StringFixed(2),
		"",
		"",
		summary.TotalInvoiced.StringFixed(2),
		summary.TotalDeposits.StringFixed(2),
		"",
		"",
		fmt.Sprintf("%d", result.Diagnostics.TotalTransactions),
		"",
	}
	return csvWriter.Write(record)
}

// stripTransactionIDs returns a copy of the result whose buckets and
// location reports carry totals and counts only. The original result
// is left untouched.
func stripTransactionIDs(result *reconciler.RunResult) *reconciler.RunResult {
	clone := *result
	strip := func(b *reconciler.Bucket) *reconciler.Bucket {
		if b == nil {
			return nil
		}
		c := *b
		c.IDs = nil
		return &c
	}
	clone.ServiceCharges = strip(result.ServiceCharges)
	clone.PendingLocation = strip(result.PendingLocation)
	clone.NoBudgetMatch = strip(result.NoBudgetMatch)
	clone.PayrollOverhead = strip(result.PayrollOverhead)
	clone.GeneralOverhead = strip(result.GeneralOverhead)
	clone.NeedsReview = strip(result.NeedsReview)
	clone.Unmatched = strip(result.Unmatched)

	clone.LocationReports = make([]*reconciler.LocationReport, len(result.LocationReports))
	for i, lr := range result.LocationReports {
		c := *lr
		c.IDs = nil
		clone.LocationReports[i] = &c
	}
	return &clone
}

// formatCategories renders a category breakdown in category name order,
// so report output is stable across runs.
func formatCategories(categories map[string]decimal.Decimal, kvSep, pairSep string) string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+kvSep+categories[name].StringFixed(2))
	}
	return strings.Join(parts, pairSep)
}

func bucketLabel(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "~"
}
