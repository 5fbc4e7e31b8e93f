// Package overhead sweeps transactions that exhausted matching and
// inference into payroll or general production overhead, so nothing is
// left "unexplained". The remainder is reported as genuinely unmatched
// rather than silently dropped.
package overhead

import (
	"regexp"
	"strings"

	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/pkg/logger"
)

var (
	// Payroll phrases: pay-type codes, allowances, per-diem, mileage.
	payrollPhraseRe = regexp.MustCompile(`(?i)\b(?:REGULAR|OVERTIME|O\.?T\.?|DOUBLE\s*TIME|DOUBLETIME|GOLDEN\s+TIME|MEAL\s+PENALT(?:Y|IES)|MILEAGE|PER\s*DIEM|PERDIEM|KIT\s+RENTAL|BOX\s+RENTAL|CAR\s+ALLOWANCE|ALLOWANCE|HOLIDAY\s+PAY|VACATION\s+PAY|SICK\s+PAY|FRINGE|NON\s*-?\s*UNION|PAYROLL)\b`)

	// Overhead phrases: production-wide fees with no single location.
	overheadPhraseRe = regexp.MustCompile(`(?i)\b(?:PERMIT\s+FEES?|FIRE|POLICE|SECURITY|INSURANCE|WORKERS\s*'?\s*COMP(?:ENSATION)?|LIABILITY|UMBRELLA\s+POLICY|GENERAL\s+SERVICES)\b`)
)

// payrollVendors are known payroll-service companies; a transaction
// paid to one of them is payroll regardless of description shape.
var payrollVendors = []string{
	"ENTERTAINMENT PARTNERS",
	"CAST & CREW",
	"CAST AND CREW",
	"MEDIA SERVICES",
	"GREENSLATE",
	"WRAPBOOK",
	"EXTREME REACH",
	"ADP",
	"PAYCHEX",
}

// Config holds the classifier's account-code override set.
type Config struct {
	// LocationLaborCodes are account codes whose payroll is location
	// spend, not overhead. Payroll lines on these codes are excluded
	// from overhead classification and any earlier inference is
	// cleared, since it was derived before this correction.
	LocationLaborCodes []string `json:"location_labor_codes" yaml:"location_labor_codes"`
}

// DefaultConfig returns the production location-labor code set.
func DefaultConfig() *Config {
	return &Config{
		LocationLaborCodes: []string{"2301", "2302", "2305", "2310", "2399"},
	}
}

// Stats counts classification outcomes for run diagnostics.
type Stats struct {
	PayrollOverhead          int `json:"payroll_overhead"`
	GeneralOverhead          int `json:"general_overhead"`
	LocationLaborCorrections int `json:"location_labor_corrections"`
	Unmatched                int `json:"unmatched"`
}

// Classifier buckets the still-unmatched remainder.
type Classifier struct {
	config     *Config
	laborCodes map[string]bool
	log        logger.Logger
}

// NewClassifier creates a classifier; a nil config uses defaults.
func NewClassifier(config *Config) *Classifier {
	if config == nil {
		config = DefaultConfig()
	}
	laborCodes := make(map[string]bool, len(config.LocationLaborCodes))
	for _, code := range config.LocationLaborCodes {
		laborCodes[strings.TrimSpace(code)] = true
	}
	return &Classifier{
		config:     config,
		laborCodes: laborCodes,
		log:        logger.WithComponent("overhead"),
	}
}

// Classify sweeps every transaction with no matched location. Payroll
// lines become payroll overhead unless their account code is location
// labor; general-overhead phrases become general overhead when no
// location was inferred either; everything else stays unmatched.
func (c *Classifier) Classify(transactions []*models.Transaction) *Stats {
	stats := &Stats{}

	for _, tx := range transactions {
		if tx.MatchedLocation != "" || tx.UnmappedReason != "" {
			continue
		}

		if c.isPayroll(tx) {
			if c.laborCodes[strings.TrimSpace(tx.AccountCode)] {
				// Location labor: payroll here is location spend. The
				// inference predates this correction, so it goes too.
				tx.ClearInference()
				stats.LocationLaborCorrections++
				stats.Unmatched++
				continue
			}
			tx.ClearInference()
			tx.ApplyOverhead(models.OverheadPayroll)
			stats.PayrollOverhead++
			continue
		}

		if tx.InferredLocation == "" && overheadPhraseRe.MatchString(tx.Description) {
			tx.ApplyOverhead(models.OverheadGeneral)
			stats.GeneralOverhead++
			continue
		}

		if !tx.HasLocation() {
			stats.Unmatched++
		}
	}

	c.log.WithFields(logger.Fields{
		"payroll":           stats.PayrollOverhead,
		"general":           stats.GeneralOverhead,
		"labor_corrections": stats.LocationLaborCorrections,
		"unmatched":         stats.Unmatched,
	}).Info("overhead classification complete")

	return stats
}

func (c *Classifier) isPayroll(tx *models.Transaction) bool {
	if payrollPhraseRe.MatchString(tx.Description) {
		return true
	}
	vendor := strings.ToUpper(tx.Vendor)
	for _, pv := range payrollVendors {
		if strings.Contains(vendor, pv) {
			return true
		}
	}
	return false
}
