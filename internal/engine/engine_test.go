package engine

import (
	"fmt"
	"testing"
	"time"

	"golang-tax-audit-service/internal/checkers"
	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/errors"
)

var engineClock = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func engineConfig() *checkers.Config {
	config := checkers.DefaultConfig()
	config.Now = func() time.Time { return engineClock }
	return config
}

type recordingStore struct {
	saved   int
	failure error
	lastRun string
}

func (rs *recordingStore) SaveAudit(runUUID, clientName string, timestamp time.Time, anomalies []*models.Anomaly, status string) error {
	if rs.failure != nil {
		return rs.failure
	}
	rs.saved++
	rs.lastRun = runUUID
	return nil
}

func ledgerTable() *models.RawTable {
	return models.NewRawTable(
		[]string{"Date", "Description", "Amount", "TPS", "TVQ"},
		[][]string{
			{"2024-03-15", "AMAZON AWS", "1000.00", "50.00", "99.75"},
			{"2024-03-15", "AMAZON AWS", "1000.00", "50.00", "99.75"},
			{"2024-03-20", "BELL CANADA", "200.00", "10.00", "19.95"},
		},
	)
}

func TestProcessDetectsDuplicates(t *testing.T) {
	auditEngine, err := New(engineConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := auditEngine.Process(ledgerTable(), "Acme Inc")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Transactions != 3 {
		t.Errorf("expected 3 transactions, got %d", result.Transactions)
	}
	if result.RunUUID == "" {
		t.Error("expected a run UUID")
	}

	duplicates := 0
	taxVariances := 0
	for _, a := range result.Anomalies {
		switch a.Type {
		case models.AnomalyDuplicate:
			duplicates++
		case models.AnomalyTPSVariance, models.AnomalyTVQVariance:
			taxVariances++
		}
	}
	if duplicates < 1 {
		t.Errorf("expected at least one duplicate anomaly, got %d", duplicates)
	}
	if taxVariances != 0 {
		t.Errorf("expected no tax variances for correct taxes, got %d", taxVariances)
	}
}

func TestProcessEmptyTableFails(t *testing.T) {
	auditEngine, err := New(engineConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	table := models.NewRawTable([]string{"Description", "Amount"}, nil)
	_, err = auditEngine.Process(table, "Acme Inc")
	if err == nil {
		t.Fatal("expected error for empty table")
	}

	auditErr, ok := errors.AsAuditError(err)
	if !ok {
		t.Fatalf("expected AuditError, got %T", err)
	}
	if auditErr.Code != errors.CodeNoValidData {
		t.Errorf("expected code %s, got %s", errors.CodeNoValidData, auditErr.Code)
	}
}

func TestProcessAllRowsDroppedFails(t *testing.T) {
	auditEngine, err := New(engineConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	table := models.NewRawTable(
		[]string{"Description", "Amount"},
		[][]string{{"", "100"}, {"BELL", "pas un nombre"}},
	)
	if _, err := auditEngine.Process(table, "Acme Inc"); err == nil {
		t.Fatal("expected error when every row is dropped")
	}
}

func TestProcessPersistsRun(t *testing.T) {
	rs := &recordingStore{}
	auditEngine, err := New(engineConfig(), WithStore(rs))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := auditEngine.Process(ledgerTable(), "Acme Inc")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if rs.saved != 1 {
		t.Errorf("expected 1 saved run, got %d", rs.saved)
	}
	if rs.lastRun != result.RunUUID {
		t.Errorf("expected saved run %s, got %s", result.RunUUID, rs.lastRun)
	}
}

func TestProcessStoreFailureDoesNotFailRun(t *testing.T) {
	rs := &recordingStore{failure: fmt.Errorf("disk full")}
	auditEngine, err := New(engineConfig(), WithStore(rs))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := auditEngine.Process(ledgerTable(), "Acme Inc")
	if err != nil {
		t.Fatalf("expected run to survive store failure, got %v", err)
	}
	if result.PersistError == nil {
		t.Error("expected persist failure to be surfaced in the result")
	}
}

func TestProcessProgressCallback(t *testing.T) {
	var sequence []string
	auditEngine, err := New(engineConfig(), WithProgress(func(checker string, _ int) {
		sequence = append(sequence, checker)
	}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := auditEngine.Process(ledgerTable(), "Acme Inc"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	expected := []string{"duplicates", "taxes", "amounts", "dates", "patterns", "model"}
	if len(sequence) != len(expected) {
		t.Fatalf("expected %d progress calls, got %d", len(expected), len(sequence))
	}
	for i, name := range expected {
		if sequence[i] != name {
			t.Errorf("progress call %d: expected %s, got %s", i, name, sequence[i])
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := checkers.DefaultConfig()
	config.FuzzyThreshold = 200

	if _, err := New(config); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestResultSummary(t *testing.T) {
	auditEngine, err := New(engineConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := auditEngine.Process(ledgerTable(), "Acme Inc")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	summary := result.Summary()
	if summary.AnomaliesTotal != len(result.Anomalies) {
		t.Errorf("summary count mismatch: %d vs %d", summary.AnomaliesTotal, len(result.Anomalies))
	}
	if !summary.TotalImpact.Equal(models.TotalImpact(result.Anomalies)) {
		t.Errorf("summary impact mismatch")
	}
}
