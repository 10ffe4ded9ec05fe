// Package reporter renders audit results for the CLI: a human-readable
// console report, machine-readable JSON, and CSV rows matching the flat
// record contract.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang-tax-audit-service/internal/engine"
	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/internal/store"
	apperrors "golang-tax-audit-service/pkg/errors"
	"golang-tax-audit-service/pkg/logger"
)

// Format selects the report output shape.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
)

// IsValid checks if the format is supported.
func (f Format) IsValid() bool {
	return f == FormatConsole || f == FormatJSON || f == FormatCSV
}

// Config holds reporter options.
type Config struct {
	Format Format
	Output io.Writer
}

// DefaultConfig returns a console reporter writing to stdout.
func DefaultConfig() *Config {
	return &Config{Format: FormatConsole, Output: os.Stdout}
}

// Validate checks the reporter configuration.
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid report format: %s", c.Format)
	}
	if c.Output == nil {
		return fmt.Errorf("report output writer is required")
	}
	return nil
}

// Reporter renders audit results and history queries.
type Reporter struct {
	config *Config
	logger logger.Logger
}

// NewReporter creates a Reporter with the given config.
func NewReporter(config *Config) (*Reporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reporter", config.Format, err)
	}
	return &Reporter{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// WriteResult renders one audit result in the configured format.
func (r *Reporter) WriteResult(result *engine.AuditResult) error {
	var err error
	switch r.config.Format {
	case FormatJSON:
		err = r.writeJSON(result)
	case FormatCSV:
		err = r.writeCSV(result)
	default:
		err = r.writeConsole(result)
	}
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "write report", err)
	}
	return nil
}

type jsonReport struct {
	RunUUID      string                       `json:"run_uuid"`
	Client       string                       `json:"client"`
	StartedAt    string                       `json:"started_at"`
	Transactions int                          `json:"transactions"`
	Anomalies    []models.Record              `json:"anomalies"`
	Summary      jsonSummary                  `json:"summary"`
}

type jsonSummary struct {
	Total       int            `json:"total"`
	TotalImpact string         `json:"total_impact"`
	ByRisk      map[string]int `json:"by_risk"`
	ByType      map[string]int `json:"by_type"`
}

func (r *Reporter) writeJSON(result *engine.AuditResult) error {
	summary := result.Summary()

	records := make([]models.Record, len(result.Anomalies))
	for i, a := range result.Anomalies {
		records[i] = a.ToRecord()
	}

	byRisk := make(map[string]int, len(summary.ByRisk))
	for risk, count := range summary.ByRisk {
		byRisk[risk.String()] = count
	}
	byType := make(map[string]int, len(summary.ByType))
	for kind, count := range summary.ByType {
		byType[kind.String()] = count
	}

	encoder := json.NewEncoder(r.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonReport{
		RunUUID:      result.RunUUID,
		Client:       result.ClientName,
		StartedAt:    result.StartedAt.Format(time.RFC3339),
		Transactions: result.Transactions,
		Anomalies:    records,
		Summary: jsonSummary{
			Total:       summary.AnomaliesTotal,
			TotalImpact: summary.TotalImpact.Round(2).StringFixed(2),
			ByRisk:      byRisk,
			ByType:      byType,
		},
	})
}

func (r *Reporter) writeCSV(result *engine.AuditResult) error {
	writer := csv.NewWriter(r.config.Output)
	if err := writer.Write(models.RecordHeaders()); err != nil {
		return err
	}
	for _, a := range result.Anomalies {
		if err := writer.Write(a.ToRecord().Fields()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (r *Reporter) writeConsole(result *engine.AuditResult) error {
	out := r.config.Output
	summary := result.Summary()

	fmt.Fprintf(out, "=== Rapport d'audit TPS/TVQ ===\n")
	fmt.Fprintf(out, "Client:        %s\n", result.ClientName)
	fmt.Fprintf(out, "Exécution:     %s\n", result.RunUUID)
	fmt.Fprintf(out, "Date:          %s\n", result.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Transactions:  %d\n", result.Transactions)
	fmt.Fprintf(out, "\n")

	if len(result.Anomalies) == 0 {
		fmt.Fprintf(out, "Aucune anomalie détectée.\n")
		return nil
	}

	fmt.Fprintf(out, "Anomalies détectées: %d\n", summary.AnomaliesTotal)
	fmt.Fprintf(out, "Impact total estimé: $%s\n", summary.TotalImpact.Round(2).StringFixed(2))
	for _, risk := range []models.RiskLevel{models.RiskCritical, models.RiskMedium, models.RiskLow} {
		if count := summary.ByRisk[risk]; count > 0 {
			fmt.Fprintf(out, "  %-8s %d\n", risk.String(), count)
		}
	}
	fmt.Fprintf(out, "\n")

	for i, a := range result.Anomalies {
		record := a.ToRecord()
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, record.Risk, record.Type)
		fmt.Fprintf(out, "   %s\n", record.Description)
		fmt.Fprintf(out, "   Fournisseur: %s | Montant: $%s | Impact: $%s | Confiance: %.1f%%\n",
			record.Vendor, record.Amount, record.Impact, record.Confidence)
		fmt.Fprintf(out, "   Recommandation: %s\n", record.Recommendation)
	}

	return nil
}

// WriteHistory renders a client's persisted audit runs, newest first.
func (r *Reporter) WriteHistory(clientName string, records []*store.AuditRecord) error {
	out := r.config.Output

	if r.config.Format == FormatJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		type historyEntry struct {
			RunUUID     string `json:"run_uuid"`
			Timestamp   string `json:"timestamp"`
			Anomalies   int    `json:"anomalies"`
			TotalImpact string `json:"total_impact"`
			Status      string `json:"status"`
		}
		entries := make([]historyEntry, len(records))
		for i, record := range records {
			entries[i] = historyEntry{
				RunUUID:     record.RunUUID,
				Timestamp:   record.Timestamp.Format(time.RFC3339),
				Anomalies:   record.AnomaliesCount,
				TotalImpact: record.TotalImpact.Round(2).StringFixed(2),
				Status:      record.Status,
			}
		}
		return encoder.Encode(map[string]interface{}{
			"client":  clientName,
			"history": entries,
		})
	}

	fmt.Fprintf(out, "=== Historique d'audits: %s ===\n", clientName)
	if len(records) == 0 {
		fmt.Fprintf(out, "Aucun audit enregistré.\n")
		return nil
	}
	for _, record := range records {
		fmt.Fprintf(out, "%s  %s  anomalies: %-4d impact: $%s  (%s)\n",
			record.Timestamp.Format("2006-01-02 15:04"), record.RunUUID,
			record.AnomaliesCount, record.TotalImpact.Round(2).StringFixed(2), record.Status)
	}
	return nil
}

// WriteYearComparison renders the per-year aggregation of a client's audits.
func (r *Reporter) WriteYearComparison(clientName string, summaries []*store.YearSummary) error {
	out := r.config.Output

	if r.config.Format == FormatJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		type yearEntry struct {
			Year        string `json:"year"`
			Audits      int    `json:"audits"`
			Anomalies   int    `json:"anomalies"`
			TotalImpact string `json:"total_impact"`
		}
		entries := make([]yearEntry, len(summaries))
		for i, summary := range summaries {
			entries[i] = yearEntry{
				Year:        summary.Year,
				Audits:      summary.Audits,
				Anomalies:   summary.Anomalies,
				TotalImpact: summary.TotalImpact.Round(2).StringFixed(2),
			}
		}
		return encoder.Encode(map[string]interface{}{
			"client": clientName,
			"years":  entries,
		})
	}

	fmt.Fprintf(out, "=== Comparaison annuelle: %s ===\n", clientName)
	if len(summaries) == 0 {
		fmt.Fprintf(out, "Aucun audit enregistré.\n")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-8s %-10s %s\n", "Année", "Audits", "Anomalies", "Impact")
	fmt.Fprintf(out, "%s\n", strings.Repeat("-", 40))
	for _, summary := range summaries {
		fmt.Fprintf(out, "%-6s %-8d %-10d $%s\n",
			summary.Year, summary.Audits, summary.Anomalies,
			summary.TotalImpact.Round(2).StringFixed(2))
	}
	return nil
}
