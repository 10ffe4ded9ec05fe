// Package models defines the canonical data types shared by the audit
// pipeline: the normalized Transaction schema, the Anomaly output unit,
// and the flat export record consumed by the report and statistics layers.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyType identifies the category of a detected anomaly.
type AnomalyType string

const (
	// AnomalyDuplicate flags a probable duplicate invoice.
	AnomalyDuplicate AnomalyType = "Doublon de facture"
	// AnomalyTPSVariance flags a federal (TPS/GST) tax variance.
	AnomalyTPSVariance AnomalyType = "Écart TPS"
	// AnomalyTVQVariance flags a provincial (TVQ/QST) tax variance.
	AnomalyTVQVariance AnomalyType = "Écart TVQ"
	// AnomalyHighAmount flags an amount extreme relative to the dataset.
	AnomalyHighAmount AnomalyType = "Montant élevé suspect"
	// AnomalyDateInconsistent flags a future or stale transaction date.
	AnomalyDateInconsistent AnomalyType = "Incohérence date"
	// AnomalyFraudPattern flags a dataset-level or model-detected suspicious pattern.
	AnomalyFraudPattern AnomalyType = "Fraude: Pattern suspect"

	// Reserved categories surfaced by the report layer but not emitted by
	// the current checkers.
	AnomalyAddressFraud    AnomalyType = "Fraude: Même adresse"
	AnomalyMissingDocument AnomalyType = "Fraude: Document manquant"
	AnomalyWrongExemption  AnomalyType = "Exemption TPS/TVQ incorrecte"
)

// String returns the string representation of the anomaly type.
func (t AnomalyType) String() string {
	return string(t)
}

// IsValid checks if the anomaly type is one of the known categories.
func (t AnomalyType) IsValid() bool {
	switch t {
	case AnomalyDuplicate, AnomalyTPSVariance, AnomalyTVQVariance,
		AnomalyHighAmount, AnomalyDateInconsistent, AnomalyFraudPattern,
		AnomalyAddressFraud, AnomalyMissingDocument, AnomalyWrongExemption:
		return true
	default:
		return false
	}
}

// RiskLevel is the ordinal severity classification attached to an anomaly,
// independent of confidence.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskCritical RiskLevel = "CRITICAL"
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid checks if the risk level is valid.
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskCritical
}

// VendorMultiple is the vendor sentinel used for dataset-level findings
// that implicate more than one vendor.
const VendorMultiple = "Multiple fournisseurs"

// Transaction is one row of the normalized audit table. Date is nil when
// the source cell was absent or unparseable; Description and Amount are
// guaranteed present for any transaction that participates in detection.
type Transaction struct {
	Date        *time.Time      `json:"date,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	TPSReported decimal.Decimal `json:"tps_reported"`
	TVQReported decimal.Decimal `json:"tvq_reported"`
}

// NewTransaction creates a new Transaction instance.
func NewTransaction(date *time.Time, description string, amount decimal.Decimal) *Transaction {
	return &Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
	}
}

// HasDate reports whether the transaction carries a usable date.
func (t *Transaction) HasDate() bool {
	return t.Date != nil && !t.Date.IsZero()
}

// Validate checks the completeness invariant required for detection.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}
	return nil
}

// String returns a string representation of the Transaction.
func (t *Transaction) String() string {
	date := "n/a"
	if t.HasDate() {
		date = t.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("Transaction{Date: %s, Description: %s, Amount: %s, TPS: %s, TVQ: %s}",
		date, t.Description, t.Amount.String(), t.TPSReported.String(), t.TVQReported.String())
}

// Anomaly is the engine output unit. Anomalies are immutable once created
// and owned by the single audit run that produced them.
type Anomaly struct {
	Type           AnomalyType     `json:"type"`
	Description    string          `json:"description"`
	Vendor         string          `json:"vendor"`
	Amount         decimal.Decimal `json:"amount"`
	ImpactEstimate decimal.Decimal `json:"impact_estimate"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Recommendation string          `json:"recommendation"`
	Confidence     float64         `json:"confidence"`
	DetectedAt     time.Time       `json:"detected_at"`
}

// NewAnomaly creates a new Anomaly with the detection timestamp set to now.
func NewAnomaly(kind AnomalyType, description, vendor string, amount, impact decimal.Decimal,
	risk RiskLevel, recommendation string, confidence float64) *Anomaly {
	return &Anomaly{
		Type:           kind,
		Description:    description,
		Vendor:         vendor,
		Amount:         amount,
		ImpactEstimate: impact,
		RiskLevel:      risk,
		Recommendation: recommendation,
		Confidence:     confidence,
		DetectedAt:     time.Now(),
	}
}

// Validate performs basic validation on the Anomaly.
func (a *Anomaly) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid anomaly type: %s", a.Type)
	}
	if !a.RiskLevel.IsValid() {
		return fmt.Errorf("invalid risk level: %s", a.RiskLevel)
	}
	if a.Confidence < 0 || a.Confidence > 100 {
		return fmt.Errorf("confidence %.1f out of range [0, 100]", a.Confidence)
	}
	if a.ImpactEstimate.IsNegative() {
		return fmt.Errorf("impact estimate cannot be negative")
	}
	return nil
}

// Record is the flat export shape consumed by the report generator and the
// statistics aggregation. Key names and field order are part of the output
// contract and must not change.
type Record struct {
	Type           string  `json:"Type"`
	Description    string  `json:"Description"`
	Vendor         string  `json:"Fournisseur"`
	Amount         string  `json:"Montant"`
	Impact         string  `json:"Impact_Estimation"`
	Risk           string  `json:"Risque"`
	Recommendation string  `json:"Recommandation"`
	Confidence     float64 `json:"Confiance"`
	DetectedAt     string  `json:"Date_Detection"`
}

// RecordHeaders lists the Record field names in contract order, used for
// CSV export.
func RecordHeaders() []string {
	return []string{
		"Type", "Description", "Fournisseur", "Montant", "Impact_Estimation",
		"Risque", "Recommandation", "Confiance", "Date_Detection",
	}
}

// ToRecord converts the anomaly to its flat export record. Monetary fields
// are fixed to two decimal places and confidence to one.
func (a *Anomaly) ToRecord() Record {
	return Record{
		Type:           a.Type.String(),
		Description:    a.Description,
		Vendor:         a.Vendor,
		Amount:         a.Amount.Round(2).StringFixed(2),
		Impact:         a.ImpactEstimate.Round(2).StringFixed(2),
		Risk:           a.RiskLevel.String(),
		Recommendation: a.Recommendation,
		Confidence:     math.Round(a.Confidence*10) / 10,
		DetectedAt:     a.DetectedAt.Format(time.RFC3339),
	}
}

// ToAnomaly converts a flat record back into an Anomaly. Monetary fields
// keep the two-decimal precision of the record.
func (r Record) ToAnomaly() (*Anomaly, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid record amount '%s': %w", r.Amount, err)
	}

	impact, err := decimal.NewFromString(r.Impact)
	if err != nil {
		return nil, fmt.Errorf("invalid record impact '%s': %w", r.Impact, err)
	}

	detectedAt, err := time.Parse(time.RFC3339, r.DetectedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid record detection date '%s': %w", r.DetectedAt, err)
	}

	return &Anomaly{
		Type:           AnomalyType(r.Type),
		Description:    r.Description,
		Vendor:         r.Vendor,
		Amount:         amount,
		ImpactEstimate: impact,
		RiskLevel:      RiskLevel(r.Risk),
		Recommendation: r.Recommendation,
		Confidence:     r.Confidence,
		DetectedAt:     detectedAt,
	}, nil
}

// Fields returns the record values in contract order, matching RecordHeaders.
func (r Record) Fields() []string {
	return []string{
		r.Type, r.Description, r.Vendor, r.Amount, r.Impact,
		r.Risk, r.Recommendation, fmt.Sprintf("%.1f", r.Confidence), r.DetectedAt,
	}
}

// MarshalJSON keeps the contract key order stable.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(alias(r))
}

// TotalImpact sums the impact estimates of a slice of anomalies.
func TotalImpact(anomalies []*Anomaly) decimal.Decimal {
	total := decimal.Zero
	for _, a := range anomalies {
		total = total.Add(a.ImpactEstimate)
	}
	return total
}

// CountByRisk tallies anomalies per risk level.
func CountByRisk(anomalies []*Anomaly) map[RiskLevel]int {
	counts := make(map[RiskLevel]int)
	for _, a := range anomalies {
		counts[a.RiskLevel]++
	}
	return counts
}

// RawTable is an unnormalized tabular dataset as received from the caller:
// arbitrary column headers and string-valued cells.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// NewRawTable creates a RawTable from headers and rows.
func NewRawTable(headers []string, rows [][]string) *RawTable {
	return &RawTable{Headers: headers, Rows: rows}
}

// IsEmpty reports whether the table has no data rows.
func (rt *RawTable) IsEmpty() bool {
	return rt == nil || len(rt.Rows) == 0
}

// Cell returns the value at (row, col), or "" when the row is ragged.
func (rt *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(rt.Rows) || col < 0 || col >= len(rt.Rows[row]) {
		return ""
	}
	return rt.Rows[row][col]
}

// Utility functions for type coercion

// ParseDecimalFromString parses a decimal value from string, tolerating
// currency symbols and thousand separators.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a date from string using the
// formats commonly found in exported ledgers.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"02-01-2006",
		"2006/01/02",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// NormalizeDescription trims and upper-cases a description so it can serve
// as the fuzzy-match key.
func NormalizeDescription(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
