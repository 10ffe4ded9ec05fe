package checkers

import (
	"golang-tax-audit-service/internal/models"
)

// Checker is a single detection pass over the normalized table. Checkers
// are stateless between runs; each Check call reads the table and returns
// its findings without mutating shared state.
type Checker interface {
	// Name identifies the checker in logs and error messages.
	Name() string
	// Check scans the transactions and returns the anomalies it found.
	Check(transactions []*models.Transaction) ([]*models.Anomaly, error)
}
