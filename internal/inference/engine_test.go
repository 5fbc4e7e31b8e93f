package inference

import (
	"testing"
	"time"

	"ledger-location-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func span(start, end time.Time) *models.DateRange {
	return &models.DateRange{Start: start, End: end}
}

func matchedTx(id, location, episode string, dr *models.DateRange, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:              id,
		Description:     location + " LOCATION FEE",
		Episode:         episode,
		Amount:          decimal.NewFromInt(amount),
		DateRange:       dr,
		MatchedLocation: location,
	}
}

func unknownTx(id, episode string, dr *models.DateRange) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		Description: "CREW SUPPLIES",
		Episode:     episode,
		Amount:      decimal.NewFromInt(100),
		DateRange:   dr,
	}
}

func TestEngine_DateEpisodeInference(t *testing.T) {
	engine := NewEngine(nil)

	anchor := matchedTx("a1", "Latchford House", "104", span(day(2025, 10, 13), day(2025, 10, 17)), 5000)
	target := unknownTx("u1", "104", span(day(2025, 10, 15), day(2025, 10, 15)))

	stats := engine.Run([]*models.Transaction{anchor, target})

	if target.InferredLocation != "Latchford House" {
		t.Fatalf("inferred = %q, want Latchford House", target.InferredLocation)
	}
	if target.InferenceSource != models.SourceDateEpisode {
		t.Errorf("source = %q, want %q", target.InferenceSource, models.SourceDateEpisode)
	}
	if target.InferenceConfidence != models.ConfidenceHigh {
		t.Errorf("confidence = %q, want high", target.InferenceConfidence)
	}
	if stats.DateEpisode != 1 {
		t.Errorf("stats.DateEpisode = %d, want 1", stats.DateEpisode)
	}
}

func TestEngine_DateGlobalInference(t *testing.T) {
	engine := NewEngine(nil)

	// The anchor sits in a different episode, so only the global map hits.
	anchor := matchedTx("a1", "Melrose Ave Lot", "103", span(day(2025, 10, 13), day(2025, 10, 13)), 2000)
	target := unknownTx("u1", "104", span(day(2025, 10, 13), day(2025, 10, 13)))

	stats := engine.Run([]*models.Transaction{anchor, target})

	if target.InferredLocation != "Melrose Ave Lot" {
		t.Fatalf("inferred = %q, want Melrose Ave Lot", target.InferredLocation)
	}
	if target.InferenceSource != models.SourceDateGlobal {
		t.Errorf("source = %q, want %q", target.InferenceSource, models.SourceDateGlobal)
	}
	if target.InferenceConfidence != models.ConfidenceMedium {
		t.Errorf("confidence = %q, want medium", target.InferenceConfidence)
	}
	if stats.DateGlobal != 1 {
		t.Errorf("stats.DateGlobal = %d, want 1", stats.DateGlobal)
	}
}

func TestEngine_PrimaryPreferredOnAmbiguity(t *testing.T) {
	engine := NewEngine(nil)

	// Two locations on the same date in the same episode; the higher
	// spender wins at medium confidence.
	big := matchedTx("a1", "Keller Residence", "101", span(day(2025, 10, 13), day(2025, 10, 13)), 9000)
	small := matchedTx("a2", "Melrose Ave Lot", "101", span(day(2025, 10, 13), day(2025, 10, 13)), 1000)
	target := unknownTx("u1", "101", span(day(2025, 10, 13), day(2025, 10, 13)))

	stats := engine.Run([]*models.Transaction{big, small, target})

	if target.InferredLocation != "Keller Residence" {
		t.Fatalf("inferred = %q, want Keller Residence", target.InferredLocation)
	}
	if target.InferenceConfidence != models.ConfidenceMedium {
		t.Errorf("confidence = %q, want medium", target.InferenceConfidence)
	}
	if target.NeedsReview {
		t.Error("primary preference resolves ambiguity; no review flag")
	}
	if stats.PrimaryPreferred != 1 {
		t.Errorf("stats.PrimaryPreferred = %d, want 1", stats.PrimaryPreferred)
	}
}

func TestEngine_PrimaryFallback(t *testing.T) {
	engine := NewEngine(nil)

	// The anchor's dates do not overlap the target's, so both date maps
	// miss and the episode's highest spender is used at low confidence.
	anchor := matchedTx("a1", "Keller Residence", "101", span(day(2025, 10, 1), day(2025, 10, 2)), 5000)
	target := unknownTx("u1", "101", span(day(2025, 10, 20), day(2025, 10, 20)))

	stats := engine.Run([]*models.Transaction{anchor, target})

	if target.InferredLocation != "Keller Residence" {
		t.Fatalf("inferred = %q, want Keller Residence", target.InferredLocation)
	}
	if target.InferenceSource != models.SourcePrimaryFallback {
		t.Errorf("source = %q, want %q", target.InferenceSource, models.SourcePrimaryFallback)
	}
	if target.InferenceConfidence != models.ConfidenceLow {
		t.Errorf("confidence = %q, want low", target.InferenceConfidence)
	}
	if stats.PrimaryFallback != 1 {
		t.Errorf("stats.PrimaryFallback = %d, want 1", stats.PrimaryFallback)
	}
}

func TestEngine_NeedsReviewOnUnbreakableAmbiguity(t *testing.T) {
	engine := NewEngine(nil)

	// Two same-date anchors in a different episode; the target's own
	// episode has no primary, so nothing can break the tie.
	a1 := matchedTx("a1", "Keller Residence", "103", span(day(2025, 10, 13), day(2025, 10, 13)), 5000)
	a2 := matchedTx("a2", "Melrose Ave Lot", "103", span(day(2025, 10, 13), day(2025, 10, 13)), 5000)
	target := unknownTx("u1", "104", span(day(2025, 10, 13), day(2025, 10, 13)))

	stats := engine.Run([]*models.Transaction{a1, a2, target})

	if target.InferredLocation != "" {
		t.Fatalf("ambiguity must not be guessed, got %q", target.InferredLocation)
	}
	if !target.NeedsReview {
		t.Error("expected the review flag")
	}
	if stats.NeedsReview != 1 {
		t.Errorf("stats.NeedsReview = %d, want 1", stats.NeedsReview)
	}
}

func TestEngine_VendorHistoryTiers(t *testing.T) {
	tests := []struct {
		name           string
		anchorCount    int
		secondLocation int // anchors at a second location
		wantConfidence models.ConfidenceTier
		wantInferred   bool
	}{
		{name: "single location three times is high", anchorCount: 3, wantConfidence: models.ConfidenceHigh, wantInferred: true},
		{name: "single location twice is medium", anchorCount: 2, wantConfidence: models.ConfidenceMedium, wantInferred: true},
		{name: "split history is unusable", anchorCount: 1, secondLocation: 1, wantInferred: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(nil)

			var txs []*models.Transaction
			for i := 0; i < tt.anchorCount; i++ {
				tx := matchedTx("a", "Keller Residence", "101", nil, 1000)
				tx.Vendor = "ACE SECURITY SERVICES"
				txs = append(txs, tx)
			}
			for i := 0; i < tt.secondLocation; i++ {
				tx := matchedTx("b", "Melrose Ave Lot", "101", nil, 1000)
				tx.Vendor = "ACE SECURITY SERVICES"
				txs = append(txs, tx)
			}

			target := unknownTx("u1", "101", nil)
			target.Vendor = "ace  security   services" // normalization folds spacing and case
			txs = append(txs, target)

			engine.Run(txs)

			if !tt.wantInferred {
				if target.InferredLocation != "" {
					t.Fatalf("expected no inference, got %q", target.InferredLocation)
				}
				return
			}
			if target.InferredLocation != "Keller Residence" {
				t.Fatalf("inferred = %q, want Keller Residence", target.InferredLocation)
			}
			if target.InferenceSource != models.SourceVendorHistory {
				t.Errorf("source = %q, want %q", target.InferenceSource, models.SourceVendorHistory)
			}
			if target.InferenceConfidence != tt.wantConfidence {
				t.Errorf("confidence = %q, want %q", target.InferenceConfidence, tt.wantConfidence)
			}
		})
	}
}

func TestEngine_DateVendorPropagation(t *testing.T) {
	engine := NewEngine(nil)

	// The sibling carries a date token in its raw description and a
	// resolved location; the target shares vendor and token but has no
	// parsed date range.
	sibling := &models.Transaction{
		ID:              "a1",
		Description:     "10/13 GRIFFITH PARK SHUTTLE",
		Vendor:          "VALLEY VAN LINES",
		Episode:         "101",
		Amount:          decimal.NewFromInt(800),
		MatchedLocation: "Griffith Park",
	}
	target := &models.Transaction{
		ID:          "u1",
		Description: "SHUTTLE SVC 10/13 ADDL",
		Vendor:      "VALLEY VAN LINES",
		Episode:     "101",
		Amount:      decimal.NewFromInt(200),
	}

	stats := engine.Run([]*models.Transaction{sibling, target})

	if target.InferredLocation != "Griffith Park" {
		t.Fatalf("inferred = %q, want Griffith Park", target.InferredLocation)
	}
	if target.InferenceSource != models.SourceDateVendor {
		t.Errorf("source = %q, want %q", target.InferenceSource, models.SourceDateVendor)
	}
	if stats.DateVendor != 1 {
		t.Errorf("stats.DateVendor = %d, want 1", stats.DateVendor)
	}
}

func TestEngine_DateVendorRejectsGenericLocations(t *testing.T) {
	engine := NewEngine(nil)

	sibling := &models.Transaction{
		ID:              "a1",
		Description:     "10/13 HOLD",
		Vendor:          "VALLEY VAN LINES",
		Episode:         "101",
		Amount:          decimal.NewFromInt(800),
		MatchedLocation: "TBD",
	}
	target := &models.Transaction{
		ID:          "u1",
		Description: "SVC 10/13",
		Vendor:      "VALLEY VAN LINES",
		Episode:     "101",
		Amount:      decimal.NewFromInt(200),
	}

	engine.Run([]*models.Transaction{sibling, target})

	if target.InferredLocation != "" {
		t.Errorf("generic location propagated: %q", target.InferredLocation)
	}
}

func TestEngine_Eligibility(t *testing.T) {
	engine := NewEngine(nil)

	anchor := matchedTx("a1", "Keller Residence", "101", span(day(2025, 10, 13), day(2025, 10, 13)), 5000)

	// Already matched, already bucketed, and candidate-bearing
	// transactions are all out of scope.
	matched := matchedTx("m1", "Melrose Ave Lot", "101", span(day(2025, 10, 13), day(2025, 10, 13)), 100)
	bucketed := unknownTx("b1", "101", span(day(2025, 10, 13), day(2025, 10, 13)))
	bucketed.UnmappedReason = models.UnmappedServiceCharge
	withCandidate := unknownTx("c1", "101", span(day(2025, 10, 13), day(2025, 10, 13)))
	withCandidate.CandidateLocation = "SOMEWHERE ELSE"

	stats := engine.Run([]*models.Transaction{anchor, matched, bucketed, withCandidate})

	if stats.Eligible != 0 {
		t.Errorf("eligible = %d, want 0", stats.Eligible)
	}
	if bucketed.InferredLocation != "" || withCandidate.InferredLocation != "" {
		t.Error("ineligible transactions must not be inferred")
	}
}
