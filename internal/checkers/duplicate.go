package checkers

import (
	"fmt"

	"golang-tax-audit-service/internal/fuzzy"
	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"
)

// DuplicateChecker finds invoices that are the same real-world transaction
// entered more than once under near-identical descriptions.
//
// Each transaction is visited at most once as a seed. For a seed, every
// distinct description in the table is scored with the token-sort ratio;
// descriptions at or above the fuzzy threshold form candidate groups, which
// are then restricted to transactions whose amount differs from the seed's
// by less than the relative amount tolerance. Groups of two or more produce
// one DUPLICATE anomaly per non-seed member.
type DuplicateChecker struct {
	config *Config
	logger logger.Logger
}

// NewDuplicateChecker creates a DuplicateChecker with the given config.
func NewDuplicateChecker(config *Config) *DuplicateChecker {
	if config == nil {
		config = DefaultConfig()
	}
	return &DuplicateChecker{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("duplicate_checker"),
	}
}

// Name implements Checker.
func (dc *DuplicateChecker) Name() string { return "duplicates" }

// Check implements Checker. Emission order follows the input table order,
// so permuting rows changes only ordering, never the flagged set.
func (dc *DuplicateChecker) Check(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	if len(transactions) == 0 {
		return nil, nil
	}

	distinct := distinctDescriptions(transactions)
	checked := make([]bool, len(transactions))
	var anomalies []*models.Anomaly

	for i, seed := range transactions {
		if checked[i] {
			continue
		}

		for _, desc := range distinct {
			score := fuzzy.TokenSortRatio(seed.Description, desc)
			if score < dc.config.FuzzyThreshold {
				continue
			}

			group := dc.similarAmountRows(transactions, desc, seed)
			if len(group) < 2 {
				continue
			}

			for _, j := range group {
				if j == i || checked[j] {
					continue
				}
				anomalies = append(anomalies, models.NewAnomaly(
					models.AnomalyDuplicate,
					fmt.Sprintf("Doublon détecté: %s", seed.Description),
					seed.Description,
					seed.Amount,
					seed.Amount.Mul(dc.config.TVQRate).Abs(),
					models.RiskMedium,
					"Vérifier si c'est un doublon ou deux transactions légitimes",
					float64(score),
				))
				checked[j] = true
			}
		}

		checked[i] = true
	}

	dc.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"duplicates":   len(anomalies),
	}).Debug("Duplicate detection completed")

	return anomalies, nil
}

// similarAmountRows returns the indexes of transactions carrying the given
// description whose amount is within the relative tolerance of the seed's.
// A zero seed amount never matches: the relative difference is undefined
// there, and flagging on it would be arbitrary.
func (dc *DuplicateChecker) similarAmountRows(transactions []*models.Transaction, description string, seed *models.Transaction) []int {
	if seed.Amount.IsZero() {
		return nil
	}

	var rows []int
	for j, tx := range transactions {
		if tx.Description != description {
			continue
		}
		relative := tx.Amount.Sub(seed.Amount).Abs().Div(seed.Amount.Abs())
		if relative.LessThan(dc.config.AmountTolerance) {
			rows = append(rows, j)
		}
	}
	return rows
}

// distinctDescriptions returns the unique descriptions in first-seen order.
func distinctDescriptions(transactions []*models.Transaction) []string {
	seen := make(map[string]bool, len(transactions))
	var distinct []string
	for _, tx := range transactions {
		if !seen[tx.Description] {
			seen[tx.Description] = true
			distinct = append(distinct, tx.Description)
		}
	}
	return distinct
}
