package checkers

import (
	"fmt"
	"time"

	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	roundAmountConfidence = 75.0
	yearEndConfidence     = 65.0
	// Impact proxies for dataset-level findings: 5% of the total and 2%
	// of the year-end window sum respectively.
	roundAmountImpactRate = 0.05
	yearEndImpactRate     = 0.02
)

var thousand = decimal.NewFromInt(1000)

// PatternChecker runs dataset-level structural heuristics. Unlike the
// row-level checkers it emits at most one anomaly per pattern regardless
// of how many rows participate, with the vendor set to the multi-vendor
// sentinel.
type PatternChecker struct {
	config *Config
	logger logger.Logger
}

// NewPatternChecker creates a PatternChecker with the given config.
func NewPatternChecker(config *Config) *PatternChecker {
	if config == nil {
		config = DefaultConfig()
	}
	return &PatternChecker{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("pattern_checker"),
	}
}

// Name implements Checker.
func (pc *PatternChecker) Name() string { return "patterns" }

// Check implements Checker.
func (pc *PatternChecker) Check(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	if len(transactions) == 0 {
		return nil, nil
	}

	var anomalies []*models.Anomaly
	if a := pc.checkRoundAmounts(transactions); a != nil {
		anomalies = append(anomalies, a)
	}
	if a := pc.checkYearEndClustering(transactions); a != nil {
		anomalies = append(anomalies, a)
	}

	pc.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"patterns":     len(anomalies),
	}).Debug("Pattern analysis completed")

	return anomalies, nil
}

// checkRoundAmounts fires when the share of exact $1000 multiples strictly
// exceeds the configured share. Fabricated invoices tend to use round
// figures far more often than organic purchasing does. Zero amounts are
// never counted as round.
func (pc *PatternChecker) checkRoundAmounts(transactions []*models.Transaction) *models.Anomaly {
	round := 0
	total := decimal.Zero
	for _, tx := range transactions {
		total = total.Add(tx.Amount)
		if !tx.Amount.IsZero() && tx.Amount.Mod(thousand).IsZero() {
			round++
		}
	}

	share := float64(round) / float64(len(transactions))
	if share <= pc.config.RoundAmountShare {
		return nil
	}

	return models.NewAnomaly(
		models.AnomalyFraudPattern,
		fmt.Sprintf("Montants ronds suspects: %d/%d transactions (%.0f%%)",
			round, len(transactions), share*100),
		models.VendorMultiple,
		total,
		total.Mul(decimal.NewFromFloat(roundAmountImpactRate)).Abs(),
		models.RiskMedium,
		"Examiner les factures à montants ronds pour justificatifs",
		roundAmountConfidence,
	)
}

// checkYearEndClustering fires when the share of dated transactions falling
// within the window around December 31 of the current year strictly exceeds
// the configured share. Undated rows are excluded from the denominator.
func (pc *PatternChecker) checkYearEndClustering(transactions []*models.Transaction) *models.Anomaly {
	now := pc.config.clock()
	yearEnd := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
	windowStart := yearEnd.AddDate(0, 0, -pc.config.YearEndWindowDays)
	windowEnd := yearEnd.AddDate(0, 0, pc.config.YearEndWindowDays)

	dated := 0
	clustered := 0
	windowSum := decimal.Zero
	for _, tx := range transactions {
		if !tx.HasDate() {
			continue
		}
		dated++
		if !tx.Date.Before(windowStart) && !tx.Date.After(windowEnd) {
			clustered++
			windowSum = windowSum.Add(tx.Amount)
		}
	}

	if dated == 0 {
		return nil
	}

	share := float64(clustered) / float64(dated)
	if share <= pc.config.YearEndShare {
		return nil
	}

	return models.NewAnomaly(
		models.AnomalyFraudPattern,
		fmt.Sprintf("Clustering anormal près fin d'année: %d/%d transactions (%.0f%%)",
			clustered, dated, share*100),
		models.VendorMultiple,
		windowSum,
		windowSum.Mul(decimal.NewFromFloat(yearEndImpactRate)).Abs(),
		models.RiskLow,
		"Vérifier les transactions de fin d'exercice pour manipulation de période",
		yearEndConfidence,
	)
}
