package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"golang-tax-audit-service/internal/engine"
	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/internal/store"

	"github.com/shopspring/decimal"
)

func testResult() *engine.AuditResult {
	return &engine.AuditResult{
		RunUUID:      "run-1",
		ClientName:   "Acme Inc",
		StartedAt:    time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		Transactions: 42,
		Anomalies: []*models.Anomaly{
			models.NewAnomaly(models.AnomalyDuplicate, "Doublon détecté: AMAZON AWS", "AMAZON AWS",
				decimal.NewFromInt(1000), decimal.NewFromFloat(99.75),
				models.RiskMedium, "Vérifier", 92),
			models.NewAnomaly(models.AnomalyHighAmount, "Montant élevé: $50000.00", "HYDRO QUEBEC",
				decimal.NewFromInt(50000), decimal.NewFromInt(5000),
				models.RiskLow, "Vérifier si montant justifié", 70),
		},
	}
}

func newTestReporter(t *testing.T, format Format, out *bytes.Buffer) *Reporter {
	t.Helper()
	r, err := NewReporter(&Config{Format: format, Output: out})
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}
	return r
}

func TestWriteConsole(t *testing.T) {
	var out bytes.Buffer
	r := newTestReporter(t, FormatConsole, &out)

	if err := r.WriteResult(testResult()); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	text := out.String()
	for _, fragment := range []string{
		"Acme Inc",
		"Anomalies détectées: 2",
		"Doublon de facture",
		"Montant élevé suspect",
		"Impact total estimé: $5099.75",
	} {
		if !strings.Contains(text, fragment) {
			t.Errorf("console output missing %q", fragment)
		}
	}
}

func TestWriteConsoleNoAnomalies(t *testing.T) {
	var out bytes.Buffer
	r := newTestReporter(t, FormatConsole, &out)

	result := testResult()
	result.Anomalies = nil
	if err := r.WriteResult(result); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	if !strings.Contains(out.String(), "Aucune anomalie détectée") {
		t.Error("expected empty-result message")
	}
}

func TestWriteJSON(t *testing.T) {
	var out bytes.Buffer
	r := newTestReporter(t, FormatJSON, &out)

	if err := r.WriteResult(testResult()); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	var report struct {
		RunUUID   string `json:"run_uuid"`
		Anomalies []map[string]interface{}
		Summary   struct {
			Total       int    `json:"total"`
			TotalImpact string `json:"total_impact"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	if report.RunUUID != "run-1" {
		t.Errorf("expected run-1, got %s", report.RunUUID)
	}
	if report.Summary.Total != 2 {
		t.Errorf("expected 2 anomalies in summary, got %d", report.Summary.Total)
	}
	if report.Summary.TotalImpact != "5099.75" {
		t.Errorf("expected total impact 5099.75, got %s", report.Summary.TotalImpact)
	}
	if len(report.Anomalies) != 2 {
		t.Fatalf("expected 2 anomaly records, got %d", len(report.Anomalies))
	}

	// Flat record contract keys.
	first := report.Anomalies[0]
	for _, key := range []string{"Type", "Fournisseur", "Montant", "Impact_Estimation", "Risque", "Confiance", "Date_Detection"} {
		if _, ok := first[key]; !ok {
			t.Errorf("record missing contract key %q", key)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var out bytes.Buffer
	r := newTestReporter(t, FormatCSV, &out)

	if err := r.WriteResult(testResult()); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	rows, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Type" || rows[0][2] != "Fournisseur" {
		t.Errorf("unexpected headers: %v", rows[0])
	}
	if rows[1][3] != "1000.00" {
		t.Errorf("expected amount 1000.00, got %s", rows[1][3])
	}
}

func TestNewReporterRejectsInvalidFormat(t *testing.T) {
	var out bytes.Buffer
	if _, err := NewReporter(&Config{Format: "xml", Output: &out}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestWriteHistory(t *testing.T) {
	var out bytes.Buffer
	r := newTestReporter(t, FormatConsole, &out)

	records := []*store.AuditRecord{
		{
			RunUUID:        "run-1",
			ClientName:     "Acme Inc",
			Timestamp:      time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
			AnomaliesCount: 3,
			TotalImpact:    decimal.NewFromFloat(150.25),
			Status:         "completed",
		},
	}

	if err := r.WriteHistory("Acme Inc", records); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "run-1") || !strings.Contains(text, "$150.25") {
		t.Errorf("history output missing expected fields: %s", text)
	}
}

func TestWriteYearComparison(t *testing.T) {
	var out bytes.Buffer
	r := newTestReporter(t, FormatJSON, &out)

	summaries := []*store.YearSummary{
		{Year: "2024", Audits: 2, Anomalies: 5, TotalImpact: decimal.NewFromFloat(500)},
		{Year: "2023", Audits: 1, Anomalies: 2, TotalImpact: decimal.NewFromFloat(100)},
	}

	if err := r.WriteYearComparison("Acme Inc", summaries); err != nil {
		t.Fatalf("WriteYearComparison failed: %v", err)
	}

	var report struct {
		Client string `json:"client"`
		Years  []struct {
			Year   string `json:"year"`
			Audits int    `json:"audits"`
		} `json:"years"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(report.Years) != 2 || report.Years[0].Year != "2024" {
		t.Errorf("unexpected years: %+v", report.Years)
	}
}
