package checkers

import (
	"testing"
	"time"

	"golang-tax-audit-service/internal/models"
)

func TestDateCheckerFlagsFutureDate(t *testing.T) {
	checker := NewDateChecker(testConfig())

	transactions := []*models.Transaction{
		txOn("AMAZON AWS", 100, testClock.AddDate(0, 1, 0)),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}

	anomaly := anomalies[0]
	if anomaly.Type != models.AnomalyDateInconsistent {
		t.Errorf("expected type %s, got %s", models.AnomalyDateInconsistent, anomaly.Type)
	}
	if anomaly.Confidence != 95 {
		t.Errorf("expected confidence 95 for future date, got %.1f", anomaly.Confidence)
	}
	if !anomaly.ImpactEstimate.IsZero() {
		t.Errorf("expected zero impact, got %s", anomaly.ImpactEstimate)
	}
}

func TestDateCheckerFlagsStaleDate(t *testing.T) {
	checker := NewDateChecker(testConfig())

	transactions := []*models.Transaction{
		txOn("BELL CANADA", 100, testClock.AddDate(-4, 0, 0)),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Confidence != 80 {
		t.Errorf("expected confidence 80 for stale date, got %.1f", anomalies[0].Confidence)
	}
}

func TestDateCheckerAcceptsRecentDates(t *testing.T) {
	checker := NewDateChecker(testConfig())

	transactions := []*models.Transaction{
		txOn("HYDRO QUEBEC", 100, testClock.AddDate(0, -1, 0)),
		txOn("HYDRO QUEBEC", 100, testClock.AddDate(-2, 0, 0)),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies for recent dates, got %d", len(anomalies))
	}
}

func TestDateCheckerSkipsUndatedRows(t *testing.T) {
	checker := NewDateChecker(testConfig())

	transactions := []*models.Transaction{
		tx("AMAZON AWS", 100),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected undated rows to be skipped, got %d anomalies", len(anomalies))
	}
}

func TestDateCheckerUsesInjectedClock(t *testing.T) {
	config := testConfig()
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	// With the test clock at 2024-06-15 this date is in the future; with a
	// later clock it is not.
	anomalies, err := NewDateChecker(config).Check([]*models.Transaction{txOn("BELL CANADA", 100, date)})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly with early clock, got %d", len(anomalies))
	}

	config.Now = func() time.Time { return time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC) }
	anomalies, err = NewDateChecker(config).Check([]*models.Transaction{txOn("BELL CANADA", 100, date)})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomaly with later clock, got %d", len(anomalies))
	}
}
