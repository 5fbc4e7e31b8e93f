package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-location-reconciler/cmd/reconciler/config"
	"ledger-location-reconciler/internal/reconciler"
	"ledger-location-reconciler/internal/reporter"
)

// Flags for the reconcile command
var (
	ledgerFiles    []string
	budgetFile     string
	aliasFile      string
	poFile         string
	outputFormat   string
	outputFile     string
	maxConcurrency int
	warnPercent    float64
	timeoutSeconds int

	// Tuning flags for the empirical pipeline thresholds.
	fuzzyThreshold       float64
	aliasRetrySimilarity float64
	maxRangeDays         int
	vendorMediumRatio    float64
	vendorLowRatio       float64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile ledger transactions against the location budget",
	Long: `Reconcile runs the full pipeline over one or more ledger exports:
extraction, budget aggregation, location matching, location inference,
overhead classification, and report generation.

This command requires:
- One or more ledger files (CSV, XLSX, or text-layer PDF)
- A budget file (CSV or XLSX)

Optional inputs:
- An alias table (YAML) mapping ledger location strings to budget locations
- A purchase order file (CSV) for the committed-spend summary figure

Examples:
  # Basic reconciliation
  reconciler reconcile --ledger-files ledger_ep101.csv --budget-file budget.xlsx

  # Multiple ledger files with an alias table
  reconciler reconcile -l ep101.csv,ep102.csv -b budget.csv \
    --alias-file aliases.yaml --po-file open_pos.csv

  # JSON report to a file
  reconciler reconcile -l ledger.csv -b budget.csv \
    --output-format json --output-file report.json`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringSliceVarP(&ledgerFiles, "ledger-files", "l", []string{}, "comma-separated paths to ledger files (required)")
	reconcileCmd.Flags().StringVarP(&budgetFile, "budget-file", "b", "", "path to budget file (required)")

	// Optional input flags
	reconcileCmd.Flags().StringVar(&aliasFile, "alias-file", "", "path to YAML alias table")
	reconcileCmd.Flags().StringVar(&poFile, "po-file", "", "path to purchase order CSV")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Processing flags
	reconcileCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 4, "maximum concurrent ledger file parses")
	reconcileCmd.Flags().Float64Var(&warnPercent, "warn-threshold", 5.0, "over-budget warning threshold in percent")
	reconcileCmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "run timeout in seconds (0 = no timeout)")

	// Tuning flags; the defaults are the empirically-chosen production
	// values, adjustable per show
	reconcileCmd.Flags().Float64Var(&fuzzyThreshold, "fuzzy-threshold", 0.5, "minimum similarity score for the fuzzy match stage")
	reconcileCmd.Flags().Float64Var(&aliasRetrySimilarity, "alias-retry-similarity", 0.8, "minimum similarity for alias targets that are not canonical names")
	reconcileCmd.Flags().IntVar(&maxRangeDays, "max-range-days", 60, "upper bound on extracted date-range spans, in days")
	reconcileCmd.Flags().Float64Var(&vendorMediumRatio, "vendor-medium-ratio", 0.8, "vendor-history concentration floor for medium confidence")
	reconcileCmd.Flags().Float64Var(&vendorLowRatio, "vendor-low-ratio", 0.6, "vendor-history concentration floor for low confidence")

	reconcileCmd.MarkFlagRequired("ledger-files")
	reconcileCmd.MarkFlagRequired("budget-file")

	viper.BindPFlag("ledger-files", reconcileCmd.Flags().Lookup("ledger-files"))
	viper.BindPFlag("budget-file", reconcileCmd.Flags().Lookup("budget-file"))
	viper.BindPFlag("alias-file", reconcileCmd.Flags().Lookup("alias-file"))
	viper.BindPFlag("po-file", reconcileCmd.Flags().Lookup("po-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("max-concurrency", reconcileCmd.Flags().Lookup("max-concurrency"))
	viper.BindPFlag("warn-threshold", reconcileCmd.Flags().Lookup("warn-threshold"))
	viper.BindPFlag("timeout", reconcileCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("fuzzy-threshold", reconcileCmd.Flags().Lookup("fuzzy-threshold"))
	viper.BindPFlag("alias-retry-similarity", reconcileCmd.Flags().Lookup("alias-retry-similarity"))
	viper.BindPFlag("max-range-days", reconcileCmd.Flags().Lookup("max-range-days"))
	viper.BindPFlag("vendor-medium-ratio", reconcileCmd.Flags().Lookup("vendor-medium-ratio"))
	viper.BindPFlag("vendor-low-ratio", reconcileCmd.Flags().Lookup("vendor-low-ratio"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper values allow overrides from config file and environment
	ledgerFiles = viper.GetStringSlice("ledger-files")
	budgetFile = viper.GetString("budget-file")
	aliasFile = viper.GetString("alias-file")
	poFile = viper.GetString("po-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	maxConcurrency = viper.GetInt("max-concurrency")
	warnPercent = viper.GetFloat64("warn-threshold")
	timeoutSeconds = viper.GetInt("timeout")
	fuzzyThreshold = viper.GetFloat64("fuzzy-threshold")
	aliasRetrySimilarity = viper.GetFloat64("alias-retry-similarity")
	maxRangeDays = viper.GetInt("max-range-days")
	vendorMediumRatio = viper.GetFloat64("vendor-medium-ratio")
	vendorLowRatio = viper.GetFloat64("vendor-low-ratio")

	if len(ledgerFiles) == 0 {
		return fmt.Errorf("at least one ledger-file is required")
	}
	if budgetFile == "" {
		return fmt.Errorf("budget-file is required")
	}

	for i, ledgerFile := range ledgerFiles {
		if err := validateFileExists(ledgerFile, fmt.Sprintf("ledger file %d", i+1)); err != nil {
			return err
		}
	}
	if err := validateFileExists(budgetFile, "budget file"); err != nil {
		return err
	}
	// Alias and PO files are optional and degrade when missing, but a
	// path pointing at a directory is always a mistake.
	for _, optional := range []string{aliasFile, poFile} {
		if optional == "" {
			continue
		}
		if info, err := os.Stat(optional); err == nil && info.IsDir() {
			return fmt.Errorf("%s is a directory, expected a file", optional)
		}
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if maxConcurrency < 1 {
		return fmt.Errorf("max-concurrency must be at least 1")
	}
	if warnPercent < 0 {
		return fmt.Errorf("warn-threshold cannot be negative")
	}
	for name, value := range map[string]float64{
		"fuzzy-threshold":        fuzzyThreshold,
		"alias-retry-similarity": aliasRetrySimilarity,
		"vendor-medium-ratio":    vendorMediumRatio,
		"vendor-low-ratio":       vendorLowRatio,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, value)
		}
	}
	if maxRangeDays < 0 {
		return fmt.Errorf("max-range-days cannot be negative")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Ledger files: %s\n", strings.Join(ledgerFiles, ", "))
		fmt.Fprintf(os.Stderr, "Budget file: %s\n", budgetFile)
		if aliasFile != "" {
			fmt.Fprintf(os.Stderr, "Alias file: %s\n", aliasFile)
		}
	}

	serviceConfig := config.CreateServiceConfig(maxConcurrency, warnPercent, config.Tuning{
		FuzzyThreshold:       fuzzyThreshold,
		AliasRetrySimilarity: aliasRetrySimilarity,
		MaxRangeDays:         maxRangeDays,
		VendorMediumRatio:    vendorMediumRatio,
		VendorLowRatio:       vendorLowRatio,
	})
	service := reconciler.NewService(serviceConfig)

	request := &reconciler.Request{
		LedgerFiles: ledgerFiles,
		BudgetFile:  budgetFile,
		AliasFile:   aliasFile,
		POFile:      poFile,
	}

	result, err := service.Run(ctx, request)
	if err != nil {
		return err
	}

	reportConfig := config.CreateReportConfig(outputFormat)
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Run ID: %s\n", result.RunID)
		fmt.Fprintf(os.Stderr, "Processed %d transactions across %d files.\n",
			result.Diagnostics.TotalTransactions, result.Diagnostics.FilesParsed)
		fmt.Fprintf(os.Stderr, "Matched %d, reported %d locations, %d warnings.\n",
			result.Diagnostics.Matched, len(result.LocationReports), len(result.Warnings))
	}

	return nil
}
