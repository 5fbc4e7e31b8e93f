package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	apperrors "ledger-location-reconciler/pkg/errors"
	"ledger-location-reconciler/pkg/logger"
)

// CLIErrorHandler turns pipeline errors into operator-readable messages
// and process exit codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-facing message for the error and returns
// the process exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if reconcilerErr, ok := apperrors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleReconcilerError(err *apperrors.ReconcilerError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, run with the --verbose flag\n")
	}

	return 1
}

func (h *CLIErrorHandler) getCategoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case apperrors.CategoryParse:
		return `Parse error help:
• Verify the file format: ledgers may be CSV, XLSX, or text-layer PDF
• Check for proper column headers (description and amount are required)
• A scanned PDF has no text layer; re-export the report as CSV
• Ensure CSV files use UTF-8 encoding`

	case apperrors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Ensure amounts are decimal numbers; $ signs, commas, and
  parenthesized negatives are accepted
• Check that all values are within acceptable ranges`

	case apperrors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'reconciler reconcile --help' to see all available options`

	case apperrors.CategoryBudget:
		return `Budget error help:
• Verify the budget file has usable line items (non-zero rate and a
  location reference)
• Check the category, location, rate, quantity, and duration columns
• Make sure the budget export includes the location rows, not just
  the section headers`

	case apperrors.CategoryReconciliation:
		return `Reconciliation error help:
• Check data quality in your ledger files
• Provide or extend the alias table for location strings that the
  automatic matching cannot resolve
• Verify the ledger and budget cover the same episodes`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler reconcile --help' for command-specific help`
	}
}
