package overhead

import (
	"testing"

	"ledger-location-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func createTestTransaction(id, description, vendor, account string) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		Description: description,
		Vendor:      vendor,
		AccountCode: account,
		Episode:     "101",
		Amount:      decimal.NewFromInt(500),
	}
}

func TestClassifier_PayrollPhrase(t *testing.T) {
	classifier := NewClassifier(nil)

	tests := []struct {
		name        string
		description string
	}{
		{"meal penalty", "10/18/25 : MEAL PENALTY"},
		{"overtime", "10/18/25 : OVERTIME"},
		{"ot abbreviation", "CREW O.T. WEEK 3"},
		{"per diem", "PER DIEM ALLOWANCE WK 2"},
		{"kit rental", "KIT RENTAL - GRIP DEPT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := createTestTransaction("t1", tt.description, "SOME VENDOR", "2200")
			stats := classifier.Classify([]*models.Transaction{tx})

			if tx.Overhead != models.OverheadPayroll {
				t.Errorf("overhead = %q, want payroll", tx.Overhead)
			}
			if stats.PayrollOverhead != 1 {
				t.Errorf("stats.PayrollOverhead = %d, want 1", stats.PayrollOverhead)
			}
		})
	}
}

func TestClassifier_PayrollVendor(t *testing.T) {
	classifier := NewClassifier(nil)

	// No payroll phrase in the description; the vendor alone decides.
	tx := createTestTransaction("t1", "INVOICE 44812", "Entertainment Partners LLC", "2200")
	classifier.Classify([]*models.Transaction{tx})

	if tx.Overhead != models.OverheadPayroll {
		t.Errorf("overhead = %q, want payroll", tx.Overhead)
	}
}

func TestClassifier_PayrollClearsStaleInference(t *testing.T) {
	classifier := NewClassifier(nil)

	tx := createTestTransaction("t1", "10/18/25 : REGULAR", "CAST & CREW", "2200")
	tx.ApplyInference(models.InferencePatch{
		Location:   "Keller Residence",
		Source:     models.SourceDateGlobal,
		Confidence: models.ConfidenceMedium,
	})

	classifier.Classify([]*models.Transaction{tx})

	if tx.InferredLocation != "" {
		t.Errorf("stale inference kept: %q", tx.InferredLocation)
	}
	if tx.Overhead != models.OverheadPayroll {
		t.Errorf("overhead = %q, want payroll", tx.Overhead)
	}
}

func TestClassifier_LocationLaborCorrection(t *testing.T) {
	classifier := NewClassifier(nil)

	// Payroll on a location-labor account code is location spend, not
	// overhead. It stays unmatched and loses its inference.
	tx := createTestTransaction("t1", "10/18/25 : OVERTIME", "ENTERTAINMENT PARTNERS", "2301")
	tx.ApplyInference(models.InferencePatch{
		Location:   "Keller Residence",
		Source:     models.SourceVendorHistory,
		Confidence: models.ConfidenceLow,
	})

	stats := classifier.Classify([]*models.Transaction{tx})

	if tx.Overhead != models.OverheadNone {
		t.Errorf("overhead = %q, want none", tx.Overhead)
	}
	if tx.InferredLocation != "" {
		t.Errorf("inference kept through the correction: %q", tx.InferredLocation)
	}
	if stats.LocationLaborCorrections != 1 {
		t.Errorf("stats.LocationLaborCorrections = %d, want 1", stats.LocationLaborCorrections)
	}
	if stats.Unmatched != 1 {
		t.Errorf("stats.Unmatched = %d, want 1", stats.Unmatched)
	}
}

func TestClassifier_GeneralOverhead(t *testing.T) {
	classifier := NewClassifier(nil)

	tx := createTestTransaction("t1", "PRODUCTION INSURANCE PREMIUM Q4", "STATEWIDE UNDERWRITERS", "2100")
	stats := classifier.Classify([]*models.Transaction{tx})

	if tx.Overhead != models.OverheadGeneral {
		t.Errorf("overhead = %q, want general", tx.Overhead)
	}
	if stats.GeneralOverhead != 1 {
		t.Errorf("stats.GeneralOverhead = %d, want 1", stats.GeneralOverhead)
	}
}

func TestClassifier_InferredLocationBlocksGeneralOverhead(t *testing.T) {
	classifier := NewClassifier(nil)

	// A security line already tied to a location by inference is that
	// location's spend, not production-wide overhead.
	tx := createTestTransaction("t1", "SECURITY GUARDS NIGHT SHIFT", "ACE SECURITY", "2340")
	tx.ApplyInference(models.InferencePatch{
		Location:   "Keller Residence",
		Source:     models.SourceDateEpisode,
		Confidence: models.ConfidenceHigh,
	})

	stats := classifier.Classify([]*models.Transaction{tx})

	if tx.Overhead != models.OverheadNone {
		t.Errorf("overhead = %q, want none", tx.Overhead)
	}
	if stats.GeneralOverhead != 0 {
		t.Errorf("stats.GeneralOverhead = %d, want 0", stats.GeneralOverhead)
	}
}

func TestClassifier_SkipsSettledTransactions(t *testing.T) {
	classifier := NewClassifier(nil)

	matched := createTestTransaction("t1", "10/18/25 : OVERTIME", "", "2200")
	matched.MatchedLocation = "Keller Residence"
	bucketed := createTestTransaction("t2", "10/18/25 : OVERTIME", "", "2200")
	bucketed.UnmappedReason = models.UnmappedServiceCharge

	stats := classifier.Classify([]*models.Transaction{matched, bucketed})

	if matched.Overhead != models.OverheadNone || bucketed.Overhead != models.OverheadNone {
		t.Error("settled transactions must not be reclassified")
	}
	if stats.PayrollOverhead != 0 {
		t.Errorf("stats.PayrollOverhead = %d, want 0", stats.PayrollOverhead)
	}
}

func TestClassifier_Unmatched(t *testing.T) {
	classifier := NewClassifier(nil)

	tx := createTestTransaction("t1", "MISC SUPPLIES RECEIPT", "CORNER HARDWARE", "2800")
	stats := classifier.Classify([]*models.Transaction{tx})

	if tx.Overhead != models.OverheadNone {
		t.Errorf("overhead = %q, want none", tx.Overhead)
	}
	if stats.Unmatched != 1 {
		t.Errorf("stats.Unmatched = %d, want 1", stats.Unmatched)
	}
}
