package parsers

import (
	"path/filepath"
	"testing"

	"ledger-location-reconciler/internal/models"
)

func TestParseAliasTable(t *testing.T) {
	yamlContent := `aliases:
  - ledgerLocation: THE KELLER PLACE
    budgetLocation: Keller Residence
    aliases:
      - KELLER'S
      - KELLER HOUSE
  - ledgerLocation: COFFEE CART
    budgetLocation: SERVICE_CHARGE
  - ledgerLocation: NEW STAGE
    budgetLocation: "PENDING:Stage 9"
`
	path := writeTestFile(t, "aliases.yaml", yamlContent)

	table, err := ParseAliasTable(path)
	if err != nil {
		t.Fatalf("ParseAliasTable: %v", err)
	}
	if table.Len() != 5 {
		t.Errorf("Len = %d, want 5", table.Len())
	}
	if got, ok := table.Lookup("keller house"); !ok || got != "Keller Residence" {
		t.Errorf("Lookup = %q, %v", got, ok)
	}
	if !table.IsServiceCharge("COFFEE CART") {
		t.Error("expected service-charge sentinel")
	}
	if name, ok := table.PendingName("NEW STAGE"); !ok || name != "Stage 9" {
		t.Errorf("PendingName = %q, %v", name, ok)
	}
}

func TestParseAliasTable_Degrades(t *testing.T) {
	table, err := ParseAliasTable("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("empty path Len = %d, want 0", table.Len())
	}

	table, err = ParseAliasTable(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("missing file Len = %d, want 0", table.Len())
	}
}

func TestParseAliasTable_InvalidYAML(t *testing.T) {
	path := writeTestFile(t, "aliases.yaml", "aliases: [unterminated")

	if _, err := ParseAliasTable(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestParseAliasTable_SentinelRoundTrip(t *testing.T) {
	// A sentinel target must survive the YAML load exactly, or the
	// matcher would treat it as a real location.
	yamlContent := `aliases:
  - ledgerLocation: WIRE FEE
    budgetLocation: ` + models.ServiceChargeSentinel + "\n"
	path := writeTestFile(t, "aliases.yaml", yamlContent)

	table, err := ParseAliasTable(path)
	if err != nil {
		t.Fatalf("ParseAliasTable: %v", err)
	}
	if !table.IsServiceCharge("WIRE FEE") {
		t.Error("sentinel lost in the round trip")
	}
}
