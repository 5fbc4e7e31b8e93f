package budget

import (
	"testing"

	"ledger-location-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dptr(v int64) *decimal.Decimal {
	dec := decimal.NewFromInt(v)
	return &dec
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"location fees", "Loc Fees"},
		{"SITE FEE", "Loc Fees"},
		{"guards", "Security"},
		{"police and fire", "Police & Fire"},
		{"basecamp", "Parking"},
		{"janitorial", "Cleaning"},
		{"craft services", "Craft Services"},
		{"", "Uncategorized"},
		{"  location   fees  ", "Loc Fees"},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReferenceData_Record(t *testing.T) {
	refs := EmptyReferenceData()
	refs.Record("Keller Residence", "Locations 101", "101")
	refs.Record("Keller Residence", "Locations 999", "999") // first sighting wins
	refs.Record("", "Locations 102", "102")

	if refs.LocationHeader["Keller Residence"] != "Locations 101" {
		t.Errorf("location header = %q, want Locations 101", refs.LocationHeader["Keller Residence"])
	}
	if refs.HeaderEpisode["Locations 101"] != "101" {
		t.Errorf("header episode = %q, want 101", refs.HeaderEpisode["Locations 101"])
	}
	if refs.HeaderEpisode["Locations 102"] != "102" {
		t.Errorf("header-only row should still record the episode chain")
	}
}

func TestAggregator_ResolveEpisode(t *testing.T) {
	refs := EmptyReferenceData()
	refs.LocationHeader["Keller Residence"] = "Locations 101"
	refs.HeaderEpisode["Locations 101"] = "101"
	refs.HeaderEpisode["Locations 102"] = "102"
	agg := NewAggregator(refs)

	tests := []struct {
		name string
		item *models.BudgetLineItem
		want string
	}{
		{
			name: "direct episode reference",
			item: &models.BudgetLineItem{LocationRef: "Keller Residence", EpisodeRef: "103"},
			want: "103",
		},
		{
			name: "location header chain",
			item: &models.BudgetLineItem{LocationRef: "Keller Residence"},
			want: "101",
		},
		{
			name: "own header reference",
			item: &models.BudgetLineItem{LocationRef: "Buckley Warehouse", HeaderRef: "Locations 102"},
			want: "102",
		},
		{
			name: "nothing resolves",
			item: &models.BudgetLineItem{LocationRef: "Buckley Warehouse"},
			want: models.EpisodeAll,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agg.ResolveEpisode(tt.item); got != tt.want {
				t.Errorf("episode = %q, want %q", got, tt.want)
			}
		})
	}
}

func createTestLineItems() []*models.BudgetLineItem {
	return []*models.BudgetLineItem{
		{Category: "Location Fees", LocationRef: "Keller Residence", EpisodeRef: "101", Rate: d(5000), Quantity: dptr(2), Duration: dptr(3)},
		{Category: "Security", LocationRef: "Keller Residence", EpisodeRef: "101", Rate: d(1000)},
		{Category: "Location Fees", LocationRef: "Buckley Warehouse", EpisodeRef: "all", Rate: d(9000)},
		// Explicit zero quantity: the row exists but is budgeted to nothing.
		{Category: "Parking", LocationRef: "Keller Residence", EpisodeRef: "101", Rate: d(500), Quantity: dptr(0)},
		// Zero rate and missing location are skipped, not errors.
		{Category: "Security", LocationRef: "Nowhere", Rate: d(0)},
		{Category: "Security", LocationRef: "", Rate: d(750)},
	}
}

func TestAggregator_Aggregate(t *testing.T) {
	agg := NewAggregator(nil).Aggregate(createTestLineItems())

	if agg.SkippedLineItems != 2 {
		t.Errorf("skipped = %d, want 2", agg.SkippedLineItems)
	}

	keller := agg.CanonicalLocations["Keller Residence"]
	if keller == nil {
		t.Fatal("expected Keller Residence canonical location")
	}
	// 5000*2*3 + 1000 + 500*0 = 31000
	if !keller.TotalBudget.Equal(d(31000)) {
		t.Errorf("keller budget = %v, want 31000", keller.TotalBudget)
	}

	got := agg.ByLocationEpisode[LocationEpisodeKey{"Keller Residence", "101"}]
	if !got.Equal(d(31000)) {
		t.Errorf("by location-episode = %v, want 31000", got)
	}

	fees := agg.ByEpisodeCategory[EpisodeCategoryKey{"101", "Loc Fees"}]
	if !fees.Equal(d(30000)) {
		t.Errorf("episode fees = %v, want 30000", fees)
	}
}

func TestAggregates_RedistributeAll(t *testing.T) {
	agg := NewAggregator(nil).Aggregate(createTestLineItems())

	agg.RedistributeAll([]string{"101", "102", "all", "unknown", "102"})

	// The 9000 "all" budget splits across 101 and 102 only.
	ep101 := agg.ByLocationEpisode[LocationEpisodeKey{"Buckley Warehouse", "101"}]
	ep102 := agg.ByLocationEpisode[LocationEpisodeKey{"Buckley Warehouse", "102"}]
	if !ep101.Equal(d(4500)) || !ep102.Equal(d(4500)) {
		t.Errorf("redistributed = %v / %v, want 4500 / 4500", ep101, ep102)
	}
	if _, ok := agg.ByLocationEpisode[LocationEpisodeKey{"Buckley Warehouse", models.EpisodeAll}]; ok {
		t.Error("the all-episode key should be gone after redistribution")
	}

	buckley := agg.CanonicalLocations["Buckley Warehouse"]
	if buckley.Episodes[models.EpisodeAll] {
		t.Error("canonical episodes should drop the all tag")
	}
	if !buckley.Episodes["101"] || !buckley.Episodes["102"] {
		t.Error("canonical episodes should gain the active episodes")
	}

	// Running it again must not split the budget a second time.
	agg.RedistributeAll([]string{"101", "102"})
	ep101Again := agg.ByLocationEpisode[LocationEpisodeKey{"Buckley Warehouse", "101"}]
	if !ep101Again.Equal(d(4500)) {
		t.Errorf("after second redistribute = %v, want 4500", ep101Again)
	}
}
