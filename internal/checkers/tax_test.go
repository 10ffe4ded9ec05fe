package checkers

import (
	"testing"

	"golang-tax-audit-service/internal/models"

	"github.com/shopspring/decimal"
)

func TestTaxCheckerFlagsUnderReportedTaxes(t *testing.T) {
	checker := NewTaxChecker(testConfig())

	// Expected: TPS 50.00, TVQ 99.75. Both reported at half.
	transactions := []*models.Transaction{
		txTaxed("AMAZON AWS", 1000.00, 25.00, 49.88),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 2 {
		t.Fatalf("expected TPS and TVQ variances, got %d anomalies", len(anomalies))
	}

	if anomalies[0].Type != models.AnomalyTPSVariance {
		t.Errorf("expected TPS variance first, got %s", anomalies[0].Type)
	}
	if anomalies[1].Type != models.AnomalyTVQVariance {
		t.Errorf("expected TVQ variance second, got %s", anomalies[1].Type)
	}

	// Impact is the absolute difference between reported and expected.
	expectedTPSImpact := decimal.NewFromFloat(25.00)
	if !anomalies[0].ImpactEstimate.Equal(expectedTPSImpact) {
		t.Errorf("expected TPS impact %s, got %s", expectedTPSImpact, anomalies[0].ImpactEstimate)
	}
	if anomalies[0].Confidence != 85 {
		t.Errorf("expected confidence 85, got %.1f", anomalies[0].Confidence)
	}
}

func TestTaxCheckerAcceptsCorrectTaxes(t *testing.T) {
	checker := NewTaxChecker(testConfig())

	transactions := []*models.Transaction{
		txTaxed("BELL CANADA", 1000.00, 50.00, 99.75),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies for exact taxes, got %d", len(anomalies))
	}
}

func TestTaxCheckerToleranceBoundary(t *testing.T) {
	checker := NewTaxChecker(testConfig())

	// Expected TPS on 1000.00 is 50.00 with a 5% tolerance band of 2.50.
	// A deviation of exactly 2.50 must not flag; one cent beyond must.
	atBoundary := []*models.Transaction{
		txTaxed("HYDRO QUEBEC", 1000.00, 47.50, 99.75),
	}
	anomalies, err := checker.Check(atBoundary)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomaly at exact tolerance, got %d", len(anomalies))
	}

	beyondBoundary := []*models.Transaction{
		txTaxed("HYDRO QUEBEC", 1000.00, 47.49, 99.75),
	}
	anomalies, err = checker.Check(beyondBoundary)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 1 {
		t.Errorf("expected 1 anomaly beyond tolerance, got %d", len(anomalies))
	}
}

func TestTaxCheckerZeroReportedOnTaxableAmount(t *testing.T) {
	checker := NewTaxChecker(testConfig())

	transactions := []*models.Transaction{
		txTaxed("RESTAURANT LA BELLE PROVINCE", 500.00, 0, 0),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 2 {
		t.Errorf("expected both variances for unreported taxes, got %d", len(anomalies))
	}
}

func TestTaxCheckerZeroAmount(t *testing.T) {
	checker := NewTaxChecker(testConfig())

	// Zero base: expected taxes are zero, tolerance band is zero, and a
	// zero report sits exactly on the boundary.
	transactions := []*models.Transaction{
		txTaxed("NOTE DE CREDIT", 0, 0, 0),
	}

	anomalies, err := checker.Check(transactions)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies for zero base, got %d", len(anomalies))
	}
}
