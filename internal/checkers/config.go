// Package checkers implements the detection passes of the audit engine.
// Each checker reads the normalized transaction table independently and
// emits typed anomalies; no checker sees another checker's output.
package checkers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Statutory Quebec sales tax rates used as defaults.
var (
	defaultTPSRate = decimal.NewFromFloat(0.05)
	defaultTVQRate = decimal.NewFromFloat(0.09975)
)

// Config carries the statutory rates, tolerances, and thresholds shared by
// the checkers. It is loaded once per engine instance and never mutated
// mid-run.
type Config struct {
	// TPSRate is the federal (GST) rate applied to the taxable base.
	TPSRate decimal.Decimal `json:"tps_rate"`
	// TVQRate is the provincial (QST) rate applied to the taxable base.
	TVQRate decimal.Decimal `json:"tvq_rate"`
	// TaxTolerance is the relative deviation tolerated before a reported
	// tax amount is flagged (fraction, default 0.05).
	TaxTolerance decimal.Decimal `json:"tax_tolerance"`
	// AmountTolerance is the relative amount difference under which two
	// fuzzy-matched transactions are considered the same invoice.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`
	// FuzzyThreshold is the minimum 0-100 similarity score for a
	// description match (default 85).
	FuzzyThreshold int `json:"fuzzy_threshold"`
	// DateToleranceDays is carried for matching refinements.
	DateToleranceDays int `json:"date_tolerance_days"`
	// StaleDateDays is the age beyond which a transaction date is flagged.
	StaleDateDays int `json:"stale_date_days"`
	// RoundAmountShare is the fraction of round amounts above which the
	// dataset-level pattern anomaly fires.
	RoundAmountShare float64 `json:"round_amount_share"`
	// YearEndShare is the fraction of year-end-clustered transactions
	// above which the dataset-level pattern anomaly fires.
	YearEndShare float64 `json:"year_end_share"`
	// YearEndWindowDays is the half-width of the window around December 31.
	YearEndWindowDays int `json:"year_end_window_days"`
	// MinModelRows is the table size under which the unsupervised model
	// is skipped.
	MinModelRows int `json:"min_model_rows"`
	// Contamination is the expected outlier fraction for the model.
	Contamination float64 `json:"contamination"`
	// Exemptions carries tax-exemption keyword lists per category. The tax
	// checker does not apply them yet; they are configuration surface for
	// a product-level refinement.
	Exemptions map[string][]string `json:"exemptions"`

	// Now supplies the clock for date-relative checks. Defaults to
	// time.Now; tests inject a fixed clock.
	Now func() time.Time `json:"-"`
}

// DefaultConfig returns the built-in defaults: GST 5%, QST 9.975%, 5%
// tolerances, fuzzy threshold 85.
func DefaultConfig() *Config {
	return &Config{
		TPSRate:           defaultTPSRate,
		TVQRate:           defaultTVQRate,
		TaxTolerance:      decimal.NewFromFloat(0.05),
		AmountTolerance:   decimal.NewFromFloat(0.05),
		FuzzyThreshold:    85,
		DateToleranceDays: 3,
		StaleDateDays:     1095,
		RoundAmountShare:  0.30,
		YearEndShare:      0.25,
		YearEndWindowDays: 30,
		MinModelRows:      10,
		Contamination:     0.10,
		Exemptions: map[string][]string{
			"export":     {"exportation", "international", "usa"},
			"zero_rated": {"aliments", "produit laitier", "viande"},
			"detaxe":     {"medicament", "sante", "education", "assurance"},
		},
		Now: time.Now,
	}
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.TPSRate.IsNegative() || c.TVQRate.IsNegative() {
		return fmt.Errorf("tax rates cannot be negative")
	}
	if c.TaxTolerance.IsNegative() {
		return fmt.Errorf("tax tolerance cannot be negative")
	}
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be in [0, 100], got %d", c.FuzzyThreshold)
	}
	if c.StaleDateDays <= 0 {
		return fmt.Errorf("stale date days must be positive, got %d", c.StaleDateDays)
	}
	if c.RoundAmountShare < 0 || c.RoundAmountShare > 1 {
		return fmt.Errorf("round amount share must be in [0, 1], got %f", c.RoundAmountShare)
	}
	if c.YearEndShare < 0 || c.YearEndShare > 1 {
		return fmt.Errorf("year end share must be in [0, 1], got %f", c.YearEndShare)
	}
	if c.YearEndWindowDays < 0 {
		return fmt.Errorf("year end window days cannot be negative, got %d", c.YearEndWindowDays)
	}
	if c.MinModelRows < 1 {
		return fmt.Errorf("minimum model rows must be positive, got %d", c.MinModelRows)
	}
	if c.Contamination <= 0 || c.Contamination >= 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5), got %f", c.Contamination)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Exemptions = make(map[string][]string, len(c.Exemptions))
	for category, keywords := range c.Exemptions {
		clone.Exemptions[category] = append([]string(nil), keywords...)
	}
	return &clone
}

// clock returns the configured clock, falling back to time.Now.
func (c *Config) clock() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
