// Package engine orchestrates one audit run: normalization, the fixed
// sequence of detection checkers, result aggregation, and persistence of
// the run to the audit store.
package engine

import (
	"time"

	"golang-tax-audit-service/internal/checkers"
	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/internal/normalizer"
	apperrors "golang-tax-audit-service/pkg/errors"
	"golang-tax-audit-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryStore is the persistence surface the engine needs. Persistence is
// best-effort: a store failure is logged and never fails the run.
type HistoryStore interface {
	SaveAudit(runUUID, clientName string, timestamp time.Time, anomalies []*models.Anomaly, status string) error
}

// ProgressFunc receives per-checker progress notifications during a run.
type ProgressFunc func(checker string, anomaliesSoFar int)

// AuditResult is the outcome of one completed audit run.
type AuditResult struct {
	RunUUID      string
	ClientName   string
	StartedAt    time.Time
	Duration     time.Duration
	Transactions int
	Anomalies    []*models.Anomaly
	Normalize    *normalizer.Stats
	// PersistError records a failed history write. Persistence is
	// best-effort, so a non-nil value never implies a failed run.
	PersistError error
}

// Summary aggregates a result for reporting.
type Summary struct {
	AnomaliesTotal int
	TotalImpact    decimal.Decimal
	ByRisk         map[models.RiskLevel]int
	ByType         map[models.AnomalyType]int
}

// Summary builds the aggregate view of the result.
func (r *AuditResult) Summary() *Summary {
	byType := make(map[models.AnomalyType]int)
	for _, a := range r.Anomalies {
		byType[a.Type]++
	}
	return &Summary{
		AnomaliesTotal: len(r.Anomalies),
		TotalImpact:    models.TotalImpact(r.Anomalies),
		ByRisk:         models.CountByRisk(r.Anomalies),
		ByType:         byType,
	}
}

// Engine runs audits. An Engine is built once per process and reused; each
// Process call is an independent single-threaded run over its own table.
type Engine struct {
	config     *checkers.Config
	normalizer *normalizer.Normalizer
	checkers   []checkers.Checker
	store      HistoryStore
	progress   ProgressFunc
	logger     logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches an audit history store.
func WithStore(store HistoryStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithProgress attaches a per-checker progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates an Engine with the given configuration. A nil config uses the
// defaults. The checker sequence is fixed; results do not depend on it, but
// logs and progress notifications follow it.
func New(config *checkers.Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = checkers.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "checkers", config, err)
	}
	config = config.Clone()

	e := &Engine{
		config:     config,
		normalizer: normalizer.New(),
		checkers: []checkers.Checker{
			checkers.NewDuplicateChecker(config),
			checkers.NewTaxChecker(config),
			checkers.NewHighAmountChecker(config),
			checkers.NewDateChecker(config),
			checkers.NewPatternChecker(config),
			checkers.NewModelChecker(config),
		},
		logger: logger.GetGlobalLogger().WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Process runs the full audit over a raw table. It fails when no valid
// transactions survive normalization or when a mandatory checker errors;
// the model checker absorbs its own failures.
func (e *Engine) Process(table *models.RawTable, clientName string) (*AuditResult, error) {
	runUUID := uuid.New().String()
	startedAt := time.Now()
	runLogger := e.logger.WithFields(logger.Fields{
		"run_uuid": runUUID,
		"client":   clientName,
	})

	transactions, stats := e.normalizer.Normalize(table)
	if len(transactions) == 0 {
		return nil, apperrors.ValidationError(apperrors.CodeNoValidData, "transactions", stats.RowsIn, nil).
			WithContext("rows_dropped", stats.RowsDropped)
	}

	runLogger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"rows_dropped": stats.RowsDropped,
	}).Info("Audit run started")

	var anomalies []*models.Anomaly
	for _, checker := range e.checkers {
		found, err := checker.Check(transactions)
		if err != nil {
			return nil, apperrors.DetectionError(apperrors.CodeCheckerFailed, checker.Name(), err).
				WithContext("run_uuid", runUUID)
		}
		anomalies = append(anomalies, found...)

		if e.progress != nil {
			e.progress(checker.Name(), len(anomalies))
		}
	}

	result := &AuditResult{
		RunUUID:      runUUID,
		ClientName:   clientName,
		StartedAt:    startedAt,
		Duration:     time.Since(startedAt),
		Transactions: len(transactions),
		Anomalies:    anomalies,
		Normalize:    stats,
	}

	if e.store != nil {
		if err := e.store.SaveAudit(runUUID, clientName, startedAt, anomalies, "completed"); err != nil {
			runLogger.WithError(err).Warn("Failed to persist audit run, continuing")
			result.PersistError = err
		}
	}

	runLogger.WithFields(logger.Fields{
		"anomalies":    len(anomalies),
		"total_impact": models.TotalImpact(anomalies).Round(2).StringFixed(2),
		"duration_ms":  result.Duration.Milliseconds(),
	}).Info("Audit run completed")

	return result, nil
}
