package budget

import "testing"

func TestCategoryForAccount(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"2335", "Loc Fees"},
		{"2340", "Security"},
		{"2345", "Police & Fire"},
		{"2355", "Parking"},
		{"2399", "Loc Labor"},
		{"2335-01", "Loc Fees"}, // longest-prefix fallback
		{"233512", "Loc Fees"},
		{"9999", "Uncategorized"},
		{"", "Uncategorized"},
	}
	for _, tt := range tests {
		if got := CategoryForAccount(tt.code); got != tt.want {
			t.Errorf("CategoryForAccount(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
