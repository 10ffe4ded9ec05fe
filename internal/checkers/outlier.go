package checkers

import (
	"fmt"
	"math"

	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	highAmountConfidence = 70.0
	// Impact proxy for an unexplained high amount: 10% of the amount.
	highAmountImpactRate = 0.10
	// Amounts beyond mean + 3 standard deviations are flagged.
	highAmountSigma = 3.0
)

// HighAmountChecker flags amounts that are extreme relative to the
// dataset's own distribution. The threshold (mean + 3·stddev, sample
// standard deviation) is recomputed from the submitted table on every run.
type HighAmountChecker struct {
	config *Config
	logger logger.Logger
}

// NewHighAmountChecker creates a HighAmountChecker with the given config.
func NewHighAmountChecker(config *Config) *HighAmountChecker {
	if config == nil {
		config = DefaultConfig()
	}
	return &HighAmountChecker{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("high_amount_checker"),
	}
}

// Name implements Checker.
func (hc *HighAmountChecker) Name() string { return "amounts" }

// Check implements Checker. Tables with fewer than two rows have no
// defined deviation and produce no findings.
func (hc *HighAmountChecker) Check(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	if len(transactions) < 2 {
		return nil, nil
	}

	amounts := make([]float64, len(transactions))
	for i, tx := range transactions {
		amounts[i] = tx.Amount.InexactFloat64()
	}

	mean, stddev := meanAndSampleStddev(amounts)
	threshold := mean + highAmountSigma*stddev

	var anomalies []*models.Anomaly
	for i, tx := range transactions {
		if amounts[i] <= threshold {
			continue
		}

		anomalies = append(anomalies, models.NewAnomaly(
			models.AnomalyHighAmount,
			fmt.Sprintf("Montant élevé: $%s (moyenne: $%.2f)", tx.Amount.Round(2).StringFixed(2), mean),
			tx.Description,
			tx.Amount,
			tx.Amount.Mul(decimal.NewFromFloat(highAmountImpactRate)).Abs(),
			models.RiskLow,
			"Vérifier si montant justifié ou erreur de saisie",
			highAmountConfidence,
		))
	}

	hc.logger.WithFields(logger.Fields{
		"mean":      mean,
		"stddev":    stddev,
		"threshold": threshold,
		"flagged":   len(anomalies),
	}).Debug("High amount detection completed")

	return anomalies, nil
}

// meanAndSampleStddev computes the mean and the sample (n-1) standard
// deviation of values. Callers guarantee len(values) >= 2.
func meanAndSampleStddev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var squares float64
	for _, v := range values {
		diff := v - mean
		squares += diff * diff
	}

	return mean, math.Sqrt(squares / float64(len(values)-1))
}
