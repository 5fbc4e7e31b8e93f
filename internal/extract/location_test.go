package extract

import "testing"

func TestLocationExtractor_Extract(t *testing.T) {
	extractor := NewLocationExtractor()

	tests := []struct {
		name        string
		description string
		wantCand    string
		wantToken   string
	}{
		{
			name:        "quoted location",
			description: `10/13-10/17 "KELLER RESIDENCE" LOCATION FEE`,
			wantCand:    "KELLER RESIDENCE",
		},
		{
			name:        "location fee suffix",
			description: "BUCKLEY WAREHOUSE LOCATION FEE",
			wantCand:    "BUCKLEY WAREHOUSE",
		},
		{
			name:        "cleaning suffix",
			description: "MELROSE STAGE DEEP CLEANING",
			wantCand:    "MELROSE STAGE",
		},
		{
			name:        "inconvenience fee",
			description: "INCONVENIENCE FEE: LATCHFORD HOUSE",
			wantCand:    "LATCHFORD HOUSE",
		},
		{
			name:        "compound prefix",
			description: "SITE REP DAYS: SUNSET BLVD LOT: FEES",
			wantCand:    "SUNSET BLVD LOT",
		},
		{
			name:        "parking colon location",
			description: "PARKING: GRIFFITH PARK",
			wantCand:    "GRIFFITH PARK",
		},
		{
			name:        "crew prefix",
			description: "TECH SCOUT DAY 2: VENTURA FARMHOUSE",
			wantCand:    "VENTURA FARMHOUSE",
		},
		{
			name:        "permits with location then service tail",
			description: "PERMITS:MELROSE AVE:FIRE",
			wantCand:    "MELROSE AVE",
		},
		{
			name:        "permits with bare service word",
			description: "PERMITS:FIRE",
			wantToken:   TokenPermits,
		},
		{
			name:        "date then bare service word",
			description: "10/13-10/17 BASECAMP",
			wantToken:   TokenBasecamp,
		},
		{
			name:        "bare service word",
			description: "FIRE",
			wantToken:   TokenFire,
		},
		{
			name:        "episode suffix stripped",
			description: `"LATCHFORD HOUSE (104)" SECURITY`,
			wantCand:    "LATCHFORD HOUSE",
		},
		{
			name:        "network parenthetical stripped",
			description: "KELLER RESIDENCE (NETFLIX) LOCATION FEE",
			wantCand:    "KELLER RESIDENCE",
		},
		{
			name:        "pay type rejected",
			description: "10/18/25 : MEAL PENALTY",
			wantCand:    "",
		},
		{
			name:        "payroll vendor rejected",
			description: "INVOICE: ENTERTAINMENT PARTNERS",
			wantCand:    "",
		},
		{
			name:        "bare category label rejected",
			description: "CHARGE: LOCATION FEES",
			wantCand:    "",
		},
		{
			name:        "empty description",
			description: "",
			wantCand:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractor.Extract(tt.description)
			if got.Candidate != tt.wantCand {
				t.Errorf("candidate = %q, want %q", got.Candidate, tt.wantCand)
			}
			if got.ServiceToken != tt.wantToken {
				t.Errorf("serviceToken = %q, want %q", got.ServiceToken, tt.wantToken)
			}
		})
	}
}

func TestCleanCandidate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"KELLER RESIDENCE"`, "KELLER RESIDENCE"},
		{"LATCHFORD HOUSE (104)", "LATCHFORD HOUSE"},
		{"KELLER RESIDENCE (NETFLIX)", "KELLER RESIDENCE"},
		{"  MELROSE AVE -, ", "MELROSE AVE"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCandidate(tt.in); got != tt.want {
			t.Errorf("CleanCandidate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsRejectedCandidate(t *testing.T) {
	rejected := []string{
		"OT",
		"MEAL PENALTY",
		"PER DIEM ALLOWANCE",
		"CAST & CREW",
		"LOCATION FEES",
		"SECURITY",
	}
	for _, c := range rejected {
		if !IsRejectedCandidate(c) {
			t.Errorf("expected %q to be rejected", c)
		}
	}

	accepted := []string{
		"KELLER RESIDENCE",
		"MELROSE AVE",
		"GRIFFITH PARK",
	}
	for _, c := range accepted {
		if IsRejectedCandidate(c) {
			t.Errorf("expected %q to be accepted", c)
		}
	}
}

func TestReExtractKeyword(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"PERMITS:MELROSE AVE:FIRE", "MELROSE AVE"},
		{"SECURITY:LATCHFORD HOUSE:GUARDS", "LATCHFORD HOUSE"},
		{"KELLER RESIDENCE", ""},
		{"PERMITS:FIRE", ""},
	}
	for _, tt := range tests {
		if got := ReExtractKeyword(tt.description); got != tt.want {
			t.Errorf("ReExtractKeyword(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}
