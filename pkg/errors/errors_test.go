package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReconcilerError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeInvalidFormat,
			message:    "invalid format",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeInvalidAmount,
			message:    "bad amount",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "budget error",
			category:   CategoryBudget,
			code:       CodeEmptyBudget,
			message:    "empty budget",
			cause:      nil,
			expectCode: 5,
		},
		{
			name:       "reconciliation error",
			category:   CategoryReconciliation,
			code:       CodeConservationBroken,
			message:    "totals diverge",
			cause:      nil,
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReconcilerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a captured stack trace")
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, CategoryParse, CodeInvalidData, "ignored"); err != nil {
		t.Errorf("wrapping nil must yield nil, got %v", err)
	}
}

func TestReconcilerErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/ledger.csv").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/ledger.csv" {
		t.Errorf("expected file context, got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string %q, got %q", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		err := FileError(CodeFilePermission, "/test/ledger.csv", errors.New("permission denied"))
		if err.Category != CategoryFile || err.Code != CodeFilePermission {
			t.Errorf("unexpected category/code: %s/%s", err.Category, err.Code)
		}
		if err.Context["file_path"] != "/test/ledger.csv" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeInvalidData, "ledger.csv", 7, "garbled row", nil)
		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["line"] != 7 {
			t.Errorf("expected line context 7, got %v", err.Context["line"])
		}
		if !strings.Contains(err.Message, "garbled row") {
			t.Errorf("message should carry the detail, got %q", err.Message)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeInvalidAmount, "amount", "12..34", nil)
		if err.Category != CategoryValidation || err.Code != CodeInvalidAmount {
			t.Errorf("unexpected category/code: %s/%s", err.Category, err.Code)
		}
		if err.Suggestion == "" {
			t.Error("expected a remediation suggestion")
		}
	})

	t.Run("BudgetError", func(t *testing.T) {
		err := BudgetError(CodeEmptyBudget, "budget.csv", nil)
		if err.Category != CategoryBudget || err.GetExitCode() != 5 {
			t.Errorf("unexpected category/exit: %s/%d", err.Category, err.GetExitCode())
		}
	})

	t.Run("ReconciliationError", func(t *testing.T) {
		err := ReconciliationError(CodeConservationBroken, "bucket totals", nil)
		if err.Code != CodeConservationBroken {
			t.Errorf("unexpected code: %s", err.Code)
		}
		if !strings.Contains(err.Message, "bucket totals") {
			t.Errorf("message should name the operation, got %q", err.Message)
		}
	})
}

func TestErrorSummary(t *testing.T) {
	errs := []*ReconcilerError{
		ParseError(CodeInvalidData, "ledger.csv", 3, "bad row", nil),
		ParseError(CodeInvalidData, "ledger.csv", 9, "bad row", nil),
		ValidationError(CodeInvalidAmount, "amount", "x", nil),
		FileError(CodeFileNotFound, "missing.csv", nil),
	}
	summary := NewErrorSummary(errs)

	if summary.Total != 4 {
		t.Errorf("total = %d, want 4", summary.Total)
	}
	if summary.ByCategory[CategoryParse] != 2 {
		t.Errorf("parse count = %d, want 2", summary.ByCategory[CategoryParse])
	}
	if summary.ByCode[CodeInvalidData] != 2 {
		t.Errorf("invalid_data count = %d, want 2", summary.ByCode[CodeInvalidData])
	}
	// The file error's exit code 2 loses to parse/validation's 3.
	if summary.GetExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", summary.GetExitCode())
	}
	if !strings.Contains(summary.Error(), "4 errors occurred") {
		t.Errorf("summary message = %q", summary.Error())
	}
}

func TestErrorSummaryEdgeCases(t *testing.T) {
	empty := NewErrorSummary(nil)
	if empty.Total != 0 || empty.GetExitCode() != 0 || empty.Error() != "no errors" {
		t.Errorf("empty summary: total=%d exit=%d msg=%q", empty.Total, empty.GetExitCode(), empty.Error())
	}

	single := NewErrorSummary([]*ReconcilerError{New(CategoryFile, CodeFileNotFound, "gone")})
	if single.Error() != "gone" {
		t.Errorf("single-error summary should use the error's message, got %q", single.Error())
	}
}

func TestAsReconcilerError(t *testing.T) {
	base := New(CategoryParse, CodeInvalidFormat, "bad format")
	wrapped := fmt.Errorf("reading file: %w", base)

	re, ok := AsReconcilerError(wrapped)
	if !ok || re.Code != CodeInvalidFormat {
		t.Errorf("AsReconcilerError = %v/%v, want the wrapped error", re, ok)
	}

	if _, ok := AsReconcilerError(errors.New("plain")); ok {
		t.Error("a plain error must not convert")
	}

	if !IsReconcilerError(base) || IsReconcilerError(errors.New("plain")) {
		t.Error("IsReconcilerError misclassified")
	}
}
