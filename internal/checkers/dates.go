package checkers

import (
	"fmt"

	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	futureDateConfidence = 95.0
	staleDateConfidence  = 80.0
)

// DateChecker flags transactions whose date is incoherent with the audit:
// dates in the future, and dates older than the retention horizon. Rows
// without a parsed date are skipped; the normalizer already accounts for
// them in its statistics.
type DateChecker struct {
	config *Config
	logger logger.Logger
}

// NewDateChecker creates a DateChecker with the given config.
func NewDateChecker(config *Config) *DateChecker {
	if config == nil {
		config = DefaultConfig()
	}
	return &DateChecker{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("date_checker"),
	}
}

// Name implements Checker.
func (dc *DateChecker) Name() string { return "dates" }

// Check implements Checker. Date incoherence carries no direct fiscal
// impact; the estimated impact is always zero.
func (dc *DateChecker) Check(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	now := dc.config.clock()
	staleBefore := now.AddDate(0, 0, -dc.config.StaleDateDays)

	var anomalies []*models.Anomaly
	for _, tx := range transactions {
		if !tx.HasDate() {
			continue
		}

		date := *tx.Date
		switch {
		case date.After(now):
			anomalies = append(anomalies, dc.newDateAnomaly(tx,
				fmt.Sprintf("Date future détectée: %s", date.Format("2006-01-02")),
				"Corriger la date de transaction",
				futureDateConfidence))
		case date.Before(staleBefore):
			anomalies = append(anomalies, dc.newDateAnomaly(tx,
				fmt.Sprintf("Date très ancienne: %s", date.Format("2006-01-02")),
				"Vérifier si la transaction appartient à cette période fiscale",
				staleDateConfidence))
		}
	}

	dc.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"flagged":      len(anomalies),
	}).Debug("Date coherence check completed")

	return anomalies, nil
}

func (dc *DateChecker) newDateAnomaly(tx *models.Transaction, description, recommendation string, confidence float64) *models.Anomaly {
	return models.NewAnomaly(
		models.AnomalyDateInconsistent,
		description,
		tx.Description,
		tx.Amount,
		decimal.Zero,
		models.RiskLow,
		recommendation,
		confidence,
	)
}
