package parsers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "ledger-location-reconciler/pkg/errors"

	"github.com/shopspring/decimal"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLedgerParser_ParseCSV(t *testing.T) {
	csvContent := `transaction_id,description,vendor,amount,account
t1,"10/13-10/17 ""KELLER RESIDENCE"" LOCATION FEE",KELLER FAMILY TRUST,"$12,500.00",2335
t2,SECURITY GUARDS,ACE SECURITY,"(1,200.00)",2340
,BASECAMP PARKING,VALLEY LOTS,800.00,2355
`
	path := writeTestFile(t, "ledger_2025-10-15_ep101.csv", csvContent)

	parser, err := NewLedgerParser(nil)
	if err != nil {
		t.Fatalf("NewLedgerParser: %v", err)
	}

	txs, stats, err := parser.ParseCSV(path)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("parsed %d transactions, want 3", len(txs))
	}
	if stats.ParsedRows != 3 || stats.SkippedRows != 0 {
		t.Errorf("stats = %d parsed / %d skipped, want 3 / 0", stats.ParsedRows, stats.SkippedRows)
	}

	first := txs[0]
	if first.ID != "t1" {
		t.Errorf("id = %q, want t1", first.ID)
	}
	if !first.Amount.Equal(decimal.NewFromFloat(12500)) {
		t.Errorf("amount = %v, want 12500", first.Amount)
	}
	if first.Episode != "101" {
		t.Errorf("episode = %q, want 101 (from the file name)", first.Episode)
	}
	if !first.ReportDate.Equal(time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("report date = %v, want 2025-10-15", first.ReportDate)
	}

	if !txs[1].Amount.Equal(decimal.NewFromInt(-1200)) {
		t.Errorf("parenthesized amount = %v, want -1200", txs[1].Amount)
	}
	if txs[2].ID == "" {
		t.Error("a row without an ID must get a generated one")
	}
}

func TestLedgerParser_HeaderAliases(t *testing.T) {
	csvContent := `id,memo,payee,amt,gl_code
t1,LOCATION FEE,KELLER FAMILY TRUST,500.00,2335
`
	path := writeTestFile(t, "ledger_2025-10-15_ep101.csv", csvContent)

	parser, _ := NewLedgerParser(nil)
	txs, _, err := parser.ParseCSV(path)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("parsed %d transactions, want 1", len(txs))
	}
	tx := txs[0]
	if tx.Description != "LOCATION FEE" || tx.Vendor != "KELLER FAMILY TRUST" || tx.AccountCode != "2335" {
		t.Errorf("aliased columns not resolved: %+v", tx)
	}
}

func TestLedgerParser_RowErrorsSkipNotAbort(t *testing.T) {
	csvContent := `description,amount
GOOD ROW,100.00
BAD AMOUNT,not-a-number
,250.00
,
ANOTHER GOOD ROW,300.00
`
	path := writeTestFile(t, "ledger_2025-10-15_ep101.csv", csvContent)

	parser, _ := NewLedgerParser(nil)
	txs, stats, err := parser.ParseCSV(path)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("parsed %d transactions, want 2", len(txs))
	}
	// Bad amount and empty description are skips; the fully blank row is
	// silently ignored.
	if stats.SkippedRows != 2 {
		t.Errorf("skipped = %d, want 2", stats.SkippedRows)
	}
	if len(stats.RowErrors) != 2 {
		t.Errorf("row errors = %d, want 2", len(stats.RowErrors))
	}
}

func TestLedgerParser_MissingRequiredColumn(t *testing.T) {
	csvContent := `vendor,amount
ACE SECURITY,100.00
`
	path := writeTestFile(t, "ledger_2025-10-15_ep101.csv", csvContent)

	parser, _ := NewLedgerParser(nil)
	_, _, err := parser.ParseCSV(path)
	if err == nil {
		t.Fatal("expected an error for a header without a description column")
	}
	if re, ok := apperrors.AsReconcilerError(err); !ok || re.Code != apperrors.CodeMissingColumn {
		t.Errorf("error = %v, want code %s", err, apperrors.CodeMissingColumn)
	}
}

func TestLedgerParser_FileNotFound(t *testing.T) {
	parser, _ := NewLedgerParser(nil)
	_, _, err := parser.ParseCSV(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if re, ok := apperrors.AsReconcilerError(err); !ok || re.Code != apperrors.CodeFileNotFound {
		t.Errorf("error = %v, want code %s", err, apperrors.CodeFileNotFound)
	}
}

func TestParseFileMetadata(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantEpisode string
		wantAccount string
		wantDate    time.Time
		wantNowDate bool
	}{
		{
			name:        "date and episode",
			path:        "/data/ledger_2025-10-15_ep101.csv",
			wantEpisode: "101",
			wantDate:    time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "episode word form and account",
			path:        "episode-104_acct2340_2025-11-01.xlsx",
			wantEpisode: "104",
			wantAccount: "2340",
			wantDate:    time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "nothing recognizable",
			path:        "export.csv",
			wantEpisode: "unknown",
			wantNowDate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ParseFileMetadata(tt.path)
			if meta.Episode != tt.wantEpisode {
				t.Errorf("episode = %q, want %q", meta.Episode, tt.wantEpisode)
			}
			if meta.Account != tt.wantAccount {
				t.Errorf("account = %q, want %q", meta.Account, tt.wantAccount)
			}
			if tt.wantNowDate {
				if time.Since(meta.ReportDate) > time.Minute {
					t.Errorf("report date = %v, want roughly now", meta.ReportDate)
				}
				return
			}
			if !meta.ReportDate.Equal(tt.wantDate) {
				t.Errorf("report date = %v, want %v", meta.ReportDate, tt.wantDate)
			}
		})
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"ledger.csv", "csv"},
		{"ledger.XLSX", "xlsx"},
		{"ledger.xlsm", "xlsx"},
		{"report.pdf", "pdf"},
		{"noextension", "csv"},
	}
	for _, tt := range tests {
		if got := sniffFormat(tt.path); got != tt.want {
			t.Errorf("sniffFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
