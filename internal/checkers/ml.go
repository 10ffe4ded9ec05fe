package checkers

import (
	"fmt"
	"math"
	"sort"

	"golang-tax-audit-service/internal/isoforest"
	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Impact proxy for model-detected outliers: 5% of the amount.
const modelImpactRate = 0.05

// modelSeed fixes the forest's random source so identical inputs always
// score identically.
const modelSeed = 42

// ModelChecker scores transactions with an isolation forest over simple
// behavioral features and flags the most isolated ones. The model is
// advisory: any failure during feature extraction or fitting is logged
// and absorbed, never failing the audit run.
type ModelChecker struct {
	config *Config
	logger logger.Logger
}

// NewModelChecker creates a ModelChecker with the given config.
func NewModelChecker(config *Config) *ModelChecker {
	if config == nil {
		config = DefaultConfig()
	}
	return &ModelChecker{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("model_checker"),
	}
}

// Name implements Checker.
func (mc *ModelChecker) Name() string { return "model" }

// Check implements Checker. Tables below the minimum row count are skipped
// silently; an unsupervised model has nothing to learn from a handful of
// rows.
func (mc *ModelChecker) Check(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	if len(transactions) < mc.config.MinModelRows {
		mc.logger.WithField("transactions", len(transactions)).
			Debug("Table below minimum model size, skipping model scoring")
		return nil, nil
	}

	anomalies, err := mc.score(transactions)
	if err != nil {
		mc.logger.WithError(err).Warn("Model scoring failed, continuing without model findings")
		return nil, nil
	}
	return anomalies, nil
}

func (mc *ModelChecker) score(transactions []*models.Transaction) ([]*models.Anomaly, error) {
	features := buildFeatures(transactions)
	features = dropConstantColumns(features)
	if len(features[0]) == 0 {
		mc.logger.Debug("All feature columns constant, skipping model scoring")
		return nil, nil
	}

	scaler, err := isoforest.FitScaler(features)
	if err != nil {
		return nil, fmt.Errorf("fitting scaler: %w", err)
	}
	scaled := scaler.Transform(features)

	opts := isoforest.DefaultOptions()
	opts.Seed = modelSeed
	forest, err := isoforest.Fit(scaled, opts)
	if err != nil {
		return nil, fmt.Errorf("fitting forest: %w", err)
	}

	scores, err := forest.ScoreAll(scaled)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}

	flagged := int(math.Floor(float64(len(transactions)) * mc.config.Contamination))
	if flagged == 0 {
		return nil, nil
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	var anomalies []*models.Anomaly
	for _, i := range order[:flagged] {
		tx := transactions[i]
		confidence := math.Min(scores[i]*100, 100)

		anomalies = append(anomalies, models.NewAnomaly(
			models.AnomalyFraudPattern,
			fmt.Sprintf("Transaction atypique détectée (score %.2f): %s", scores[i], tx.Description),
			tx.Description,
			tx.Amount,
			tx.Amount.Mul(decimal.NewFromFloat(modelImpactRate)).Abs(),
			models.RiskLow,
			"Examiner la transaction pour comportement inhabituel",
			confidence,
		))
	}

	mc.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"flagged":      len(anomalies),
	}).Debug("Model scoring completed")

	return anomalies, nil
}

// buildFeatures extracts one feature row per transaction: amount, vendor
// frequency, day of week, hour, and the vendor's amount dispersion. Rows
// without a date use neutral fallbacks.
func buildFeatures(transactions []*models.Transaction) [][]float64 {
	vendorCounts := make(map[string]int, len(transactions))
	vendorAmounts := make(map[string][]float64, len(transactions))
	for _, tx := range transactions {
		vendorCounts[tx.Description]++
		vendorAmounts[tx.Description] = append(vendorAmounts[tx.Description], tx.Amount.InexactFloat64())
	}

	vendorStd := make(map[string]float64, len(vendorAmounts))
	for vendor, amounts := range vendorAmounts {
		if len(amounts) < 2 {
			vendorStd[vendor] = 0
			continue
		}
		_, std := meanAndSampleStddev(amounts)
		vendorStd[vendor] = std
	}

	features := make([][]float64, len(transactions))
	for i, tx := range transactions {
		dayOfWeek, hour := 0.0, 12.0
		if tx.HasDate() {
			dayOfWeek = float64(tx.Date.Weekday())
			hour = float64(tx.Date.Hour())
		}
		features[i] = []float64{
			tx.Amount.InexactFloat64(),
			float64(vendorCounts[tx.Description]),
			dayOfWeek,
			hour,
			vendorStd[tx.Description],
		}
	}
	return features
}

// dropConstantColumns removes feature columns with no variation; they
// carry no isolation signal and distort standardization.
func dropConstantColumns(features [][]float64) [][]float64 {
	if len(features) == 0 {
		return features
	}

	cols := len(features[0])
	var keep []int
	for j := 0; j < cols; j++ {
		for _, row := range features[1:] {
			if row[j] != features[0][j] {
				keep = append(keep, j)
				break
			}
		}
	}
	if len(keep) == cols {
		return features
	}

	reduced := make([][]float64, len(features))
	for i, row := range features {
		r := make([]float64, 0, len(keep))
		for _, j := range keep {
			r = append(r, row[j])
		}
		reduced[i] = r
	}
	return reduced
}
