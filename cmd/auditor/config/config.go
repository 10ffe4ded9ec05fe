// Package config assembles component configurations for the auditor CLI
// from flags and defaults.
package config

import (
	"io"
	"os"
	"path/filepath"

	"golang-tax-audit-service/internal/checkers"
	"golang-tax-audit-service/internal/parsers"
	"golang-tax-audit-service/internal/reporter"
	apperrors "golang-tax-audit-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// DefaultDBPath returns the default audit history database location under
// the user's home directory, falling back to the working directory.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "audit_history.db"
	}
	return filepath.Join(home, ".auditor", "audit_history.db")
}

// CreateParseConfig creates the CSV parser configuration for ledger exports.
func CreateParseConfig() *parsers.ParseConfig {
	config := parsers.DefaultParseConfig()
	config.HasHeader = true
	config.SkipEmptyRows = true
	config.ValidateEncoding = true
	return config
}

// CreateCheckersConfig builds the detection configuration from CLI
// overrides on top of the defaults.
func CreateCheckersConfig(tpsRate, tvqRate, taxTolerance float64, fuzzyThreshold int) (*checkers.Config, error) {
	config := checkers.DefaultConfig()

	config.TPSRate = decimal.NewFromFloat(tpsRate)
	config.TVQRate = decimal.NewFromFloat(tvqRate)
	config.TaxTolerance = decimal.NewFromFloat(taxTolerance)
	config.FuzzyThreshold = fuzzyThreshold

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "detection", nil, err)
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified
// output format.
func CreateReportConfig(format string, output io.Writer) *reporter.Config {
	config := reporter.DefaultConfig()
	config.Output = output

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
	default:
		config.Format = reporter.FormatConsole
	}

	return config
}
