// Package errors defines the categorized error type used across the
// reconciler. Errors carry a category, a machine-readable code, an
// operator-facing suggestion, and a stack trace from the point of
// creation.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryBudget         ErrorCategory = "budget"
	CategoryReconciliation ErrorCategory = "reconciliation"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"

	// Parse errors
	CodeInvalidFormat   ErrorCode = "invalid_format"
	CodeMissingColumn   ErrorCode = "missing_column"
	CodeInvalidData     ErrorCode = "invalid_data"
	CodeScannedDocument ErrorCode = "scanned_document"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"

	// Budget errors
	CodeEmptyBudget ErrorCode = "empty_budget"

	// Reconciliation errors
	CodeConservationBroken ErrorCode = "conservation_broken"
)

// ReconcilerError is the base error type for all application errors.
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries additional structured information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns the process exit code for the error's category.
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryBudget, CategoryReconciliation:
		return 5
	default:
		return 1
	}
}

// WithContext attaches a key-value pair to the error.
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches an operator-facing remediation hint.
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a ReconcilerError with a stack trace from the call site.
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category, code, and message.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// FileError creates a file-access error for the given path.
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "verify the file integrity and re-export it from the source system"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := wrapOrNew(err, CategoryFile, code, message)
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}

// ParseError creates a parsing error with file and line context.
func ParseError(code ErrorCode, file string, line int, detail string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in %s at line %d: %s", file, line, detail)
		suggestion = "check the export format matches the expected ledger layout"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column %q in %s", detail, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s at line %d: %s", file, line, detail)
		suggestion = "correct the data or remove the invalid row"
	case CodeScannedDocument:
		message = fmt.Sprintf("no extractable text layer in %s", file)
		suggestion = "the reconciler does not OCR scanned documents; re-export as text PDF or CSV"
	default:
		message = fmt.Sprintf("parse error in %s at line %d: %s", file, line, detail)
		suggestion = "check the file format and data integrity"
	}

	result := wrapOrNew(err, CategoryParse, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line)
}

// ValidationError creates a field-level validation error.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field %q: %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g. '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field %q: %v", field, value)
		suggestion = "use date format YYYY-MM-DD or MM/DD/YY"
	case CodeMissingField:
		message = fmt.Sprintf("required field %q is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field %q: %v", field, value)
		suggestion = "check the field value and format"
	}

	result := wrapOrNew(err, CategoryValidation, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration error for the given setting.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for %q: %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := wrapOrNew(err, CategoryConfiguration, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// BudgetError creates a budget-aggregation error.
func BudgetError(code ErrorCode, detail string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeEmptyBudget:
		message = "budget source produced no usable line items"
		suggestion = "check the budget file and the rate/quantity columns"
	default:
		message = fmt.Sprintf("budget error: %s", detail)
		suggestion = "review the budget source data"
	}

	result := wrapOrNew(err, CategoryBudget, code, message)
	return result.WithSuggestion(suggestion).WithContext("detail", detail)
}

// ReconciliationError creates an error for a pipeline-stage failure.
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeConservationBroken:
		message = fmt.Sprintf("bucket totals do not reconcile after %s", operation)
		suggestion = "this is likely a bug - please report it with the run diagnostics"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	result := wrapOrNew(err, CategoryReconciliation, code, message)
	return result.WithSuggestion(suggestion).WithContext("operation", operation)
}

func wrapOrNew(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// ErrorSummary aggregates multiple errors from a run.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary builds a summary over the given errors.
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if errs == nil {
		summary.Errors = []*ReconcilerError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted message for the summary.
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// GetExitCode returns the highest-priority exit code across all errors.
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// IsReconcilerError reports whether err is a ReconcilerError.
func IsReconcilerError(err error) bool {
	_, ok := err.(*ReconcilerError)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain.
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}
