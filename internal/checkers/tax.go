package checkers

import (
	"fmt"

	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Fixed confidence for tax variance findings: the arithmetic is exact, the
// residual uncertainty is whether the variance has a legitimate cause.
const taxVarianceConfidence = 85.0

// TaxChecker recomputes the expected TPS and TVQ amounts from the
// statutory rates and flags reported values whose deviation exceeds the
// configured tolerance. The two taxes are checked independently and both
// can fire on the same transaction.
//
// Zero-rated and exempt goods are a known false-positive source; the
// exemption keyword lists in Config are not applied here yet, so every
// transaction is compared against the full statutory rate.
type TaxChecker struct {
	config *Config
	logger logger.Logger
}

// NewTaxChecker creates a TaxChecker with the given config.
func NewTaxChecker(config *Config) *TaxChecker {
	if config == nil {
		config = DefaultConfig()
	}
	return &TaxChecker{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("tax_checker"),
	}
}

// Name implements Checker.
func (tc *TaxChecker) Name() string { return "taxes" }

// Check implements Checker.
func (tc *TaxChecker) Check(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	var anomalies []*models.Anomaly

	for _, tx := range transactions {
		expectedTPS := tx.Amount.Mul(tc.config.TPSRate)
		expectedTVQ := tx.Amount.Mul(tc.config.TVQRate)

		if a := tc.checkVariance(tx, models.AnomalyTPSVariance, "TPS", tx.TPSReported, expectedTPS); a != nil {
			anomalies = append(anomalies, a)
		}
		if a := tc.checkVariance(tx, models.AnomalyTVQVariance, "TVQ", tx.TVQReported, expectedTVQ); a != nil {
			anomalies = append(anomalies, a)
		}
	}

	tc.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"variances":    len(anomalies),
	}).Debug("Tax reconciliation completed")

	return anomalies, nil
}

// checkVariance flags if and only if the absolute deviation strictly
// exceeds the tolerance band; a deviation exactly at the tolerance does
// not flag.
func (tc *TaxChecker) checkVariance(tx *models.Transaction, kind models.AnomalyType, label string, reported, expected decimal.Decimal) *models.Anomaly {
	difference := reported.Sub(expected).Abs()
	if !difference.GreaterThan(expected.Mul(tc.config.TaxTolerance)) {
		return nil
	}

	return models.NewAnomaly(
		kind,
		fmt.Sprintf("%s écart: $%s vs $%s attendu", label,
			reported.Round(2).StringFixed(2), expected.Round(2).StringFixed(2)),
		tx.Description,
		tx.Amount,
		difference,
		models.RiskMedium,
		fmt.Sprintf("Vérifier numéro %s fournisseur ou exemption", label),
		taxVarianceConfidence,
	)
}
