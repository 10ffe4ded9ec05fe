// Package store persists audit runs and their anomalies to a local SQLite
// database so successive audits of the same client can be compared.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang-tax-audit-service/internal/models"
	apperrors "golang-tax-audit-service/pkg/errors"
	"golang-tax-audit-service/pkg/logger"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS audits (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_uuid        TEXT NOT NULL UNIQUE,
	client_name     TEXT NOT NULL,
	timestamp       DATETIME NOT NULL,
	anomalies_count INTEGER NOT NULL,
	total_impact    TEXT NOT NULL,
	status          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS anomalies (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	audit_id        INTEGER NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
	type            TEXT NOT NULL,
	description     TEXT NOT NULL,
	vendor          TEXT NOT NULL,
	amount          TEXT NOT NULL,
	impact_estimate TEXT NOT NULL,
	risk_level      TEXT NOT NULL,
	recommendation  TEXT NOT NULL,
	confidence      REAL NOT NULL,
	detected_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audits_client ON audits(client_name, timestamp);
`

// AuditRecord is one persisted audit run, as returned by history queries.
type AuditRecord struct {
	ID             int64
	RunUUID        string
	ClientName     string
	Timestamp      time.Time
	AnomaliesCount int
	TotalImpact    decimal.Decimal
	Status         string
}

// YearSummary aggregates a client's audits for one calendar year.
type YearSummary struct {
	Year        string
	Audits      int
	Anomalies   int
	TotalImpact decimal.Decimal
}

// Store is a SQLite-backed audit archive. Writes are serialized through a
// mutex; SQLite handles concurrent readers on its own.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logger.Logger
}

// Open opens (creating if needed) the audit database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeStoreUnavailable, "create directory", err).
				WithContext("path", path)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStoreUnavailable, "open", err).
			WithContext("path", path)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.StorageError(apperrors.CodeStoreUnavailable, "migrate", err).
			WithContext("path", path)
	}

	return &Store{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store"),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAudit persists one audit run with its anomalies in a single
// transaction.
func (s *Store) SaveAudit(runUUID, clientName string, timestamp time.Time, anomalies []*models.Anomaly, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "save audit", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO audits (run_uuid, client_name, timestamp, anomalies_count, total_impact, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runUUID, clientName, timestamp.UTC(), len(anomalies),
		models.TotalImpact(anomalies).Round(2).StringFixed(2), status,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "save audit", err).
			WithContext("run_uuid", runUUID)
	}

	auditID, err := result.LastInsertId()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "save audit", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO anomalies (audit_id, type, description, vendor, amount, impact_estimate,
		                        risk_level, recommendation, confidence, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "save anomalies", err)
	}
	defer stmt.Close()

	for _, a := range anomalies {
		if _, err := stmt.Exec(auditID, a.Type.String(), a.Description, a.Vendor,
			a.Amount.Round(2).StringFixed(2), a.ImpactEstimate.Round(2).StringFixed(2),
			a.RiskLevel.String(), a.Recommendation, a.Confidence, a.DetectedAt.UTC()); err != nil {
			return apperrors.StorageError(apperrors.CodeWriteFailed, "save anomalies", err).
				WithContext("run_uuid", runUUID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "save audit", err)
	}

	s.logger.WithFields(logger.Fields{
		"run_uuid":  runUUID,
		"client":    clientName,
		"anomalies": len(anomalies),
	}).Debug("Audit run persisted")

	return nil
}

// AuditHistory returns the most recent audit runs for a client, newest
// first, capped at limit.
func (s *Store) AuditHistory(clientName string, limit int) ([]*AuditRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		`SELECT id, run_uuid, client_name, timestamp, anomalies_count, total_impact, status
		 FROM audits WHERE client_name = ?
		 ORDER BY timestamp DESC LIMIT ?`, clientName, limit)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "audit history", err).
			WithContext("client", clientName)
	}
	defer rows.Close()

	var records []*AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "audit history", err)
	}
	return records, nil
}

// AnomaliesForRun loads the anomalies saved under one audit run.
func (s *Store) AnomaliesForRun(runUUID string) ([]*models.Anomaly, error) {
	rows, err := s.db.Query(
		`SELECT a.type, a.description, a.vendor, a.amount, a.impact_estimate,
		        a.risk_level, a.recommendation, a.confidence, a.detected_at
		 FROM anomalies a JOIN audits ON audits.id = a.audit_id
		 WHERE audits.run_uuid = ? ORDER BY a.id`, runUUID)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "load anomalies", err).
			WithContext("run_uuid", runUUID)
	}
	defer rows.Close()

	var anomalies []*models.Anomaly
	for rows.Next() {
		var (
			a                  models.Anomaly
			kind, risk         string
			amountStr, impact  string
		)
		if err := rows.Scan(&kind, &a.Description, &a.Vendor, &amountStr, &impact,
			&risk, &a.Recommendation, &a.Confidence, &a.DetectedAt); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "load anomalies", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "load anomalies", err)
		}
		impactEstimate, err := decimal.NewFromString(impact)
		if err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "load anomalies", err)
		}

		a.Type = models.AnomalyType(kind)
		a.RiskLevel = models.RiskLevel(risk)
		a.Amount = amount
		a.ImpactEstimate = impactEstimate
		anomalies = append(anomalies, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "load anomalies", err)
	}
	return anomalies, nil
}

// YearComparison aggregates a client's audit runs for the two most recent
// recorded calendar years, most recent first.
func (s *Store) YearComparison(clientName string) ([]*YearSummary, error) {
	rows, err := s.db.Query(
		`SELECT strftime('%Y', timestamp) AS year,
		        COUNT(*), SUM(anomalies_count), SUM(CAST(total_impact AS REAL))
		 FROM audits WHERE client_name = ?
		 GROUP BY year ORDER BY year DESC LIMIT 2`, clientName)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "year comparison", err).
			WithContext("client", clientName)
	}
	defer rows.Close()

	var summaries []*YearSummary
	for rows.Next() {
		var (
			summary YearSummary
			impact  float64
		)
		if err := rows.Scan(&summary.Year, &summary.Audits, &summary.Anomalies, &impact); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "year comparison", err)
		}
		summary.TotalImpact = decimal.NewFromFloat(impact).Round(2)
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "year comparison", err)
	}
	return summaries, nil
}

func scanAuditRecord(rows *sql.Rows) (*AuditRecord, error) {
	var (
		record    AuditRecord
		impactStr string
	)
	if err := rows.Scan(&record.ID, &record.RunUUID, &record.ClientName, &record.Timestamp,
		&record.AnomaliesCount, &impactStr, &record.Status); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "audit history", err)
	}

	impact, err := decimal.NewFromString(impactStr)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "audit history", err)
	}
	record.TotalImpact = impact
	return &record, nil
}
