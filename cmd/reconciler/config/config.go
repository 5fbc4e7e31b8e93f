// Package config builds the per-stage configurations the CLI hands to
// the reconciliation service and the reporter.
package config

import (
	"ledger-location-reconciler/internal/extract"
	"ledger-location-reconciler/internal/inference"
	"ledger-location-reconciler/internal/matcher"
	"ledger-location-reconciler/internal/overhead"
	"ledger-location-reconciler/internal/parsers"
	"ledger-location-reconciler/internal/reconciler"
	"ledger-location-reconciler/internal/reporter"
)

// Tuning carries the CLI-level overrides for the empirical pipeline
// thresholds. A zero value means "keep the stage default".
type Tuning struct {
	FuzzyThreshold       float64
	AliasRetrySimilarity float64
	MaxRangeDays         int
	VendorMediumRatio    float64
	VendorLowRatio       float64
}

// CreateServiceConfig assembles the full service configuration from
// CLI-level settings, with stage defaults everywhere else.
func CreateServiceConfig(maxConcurrency int, warnPercent float64, tuning Tuning) *reconciler.Config {
	matcherConfig := matcher.DefaultConfig()
	if tuning.FuzzyThreshold > 0 {
		matcherConfig.FuzzyThreshold = tuning.FuzzyThreshold
	}
	if tuning.AliasRetrySimilarity > 0 {
		matcherConfig.AliasRetrySimilarity = tuning.AliasRetrySimilarity
	}

	dateConfig := extract.DefaultDateConfig()
	inferenceConfig := inference.DefaultConfig()
	if tuning.MaxRangeDays > 0 {
		// The inference date indices use the same span bound as the
		// extractor, so one flag drives both.
		dateConfig.MaxRangeDays = tuning.MaxRangeDays
		inferenceConfig.MaxRangeDays = tuning.MaxRangeDays
	}
	if tuning.VendorMediumRatio > 0 {
		inferenceConfig.VendorMediumRatio = tuning.VendorMediumRatio
	}
	if tuning.VendorLowRatio > 0 {
		inferenceConfig.VendorLowRatio = tuning.VendorLowRatio
	}

	return &reconciler.Config{
		Ledger:                parsers.DefaultLedgerConfig(),
		Budget:                parsers.DefaultBudgetConfig(),
		Dates:                 dateConfig,
		Matcher:               matcherConfig,
		Inference:             inferenceConfig,
		Overhead:              overhead.DefaultConfig(),
		MaxConcurrency:        maxConcurrency,
		DivergenceWarnPercent: warnPercent,
	}
}

// CreateReportConfig creates a report configuration for the specified
// output format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
		config.IncludeDiagnostics = true
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeDiagnostics = true
		config.IncludeBucketIDs = true
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		// CSV is for the location table; diagnostics stay in console/JSON.
		config.IncludeDiagnostics = false
	}

	return config
}
