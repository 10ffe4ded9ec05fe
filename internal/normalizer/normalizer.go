// Package normalizer maps heterogeneous tabular exports into the canonical
// transaction schema used by the detection checkers.
//
// Column recognition is deliberately conservative: header names are matched
// exactly after lowercasing and trimming against a fixed synonym table - no
// fuzzy matching at this stage. Cell coercion never fails a row outright;
// unparseable dates and numbers become null and completeness filtering
// decides the row's fate afterwards.
package normalizer

import (
	"strings"
	"time"

	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Canonical column identifiers.
type column int

const (
	colUnknown column = iota
	colDate
	colDescription
	colAmount
	colTPS
	colTVQ
)

// columnSynonyms maps lowercased, trimmed header names to canonical columns.
// Covers the English and French namings found in Quebec ledger exports.
var columnSynonyms = map[string]column{
	"date":        colDate,
	"description": colDescription,
	"vendor":      colDescription,
	"fournisseur": colDescription,
	"debit":       colAmount,
	"amount":      colAmount,
	"montant":     colAmount,
	"tps":         colTPS,
	"gst":         colTPS,
	"tvq":         colTVQ,
	"qst":         colTVQ,
}

// Stats summarizes a normalization pass.
type Stats struct {
	RowsIn        int
	RowsOut       int
	RowsDropped   int
	DatesInvalid  int
	AmountsInvalid int
	TaxesDefaulted int
}

// Normalizer converts raw tables into normalized transaction slices.
type Normalizer struct {
	logger logger.Logger
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{
		logger: logger.GetGlobalLogger().WithComponent("normalizer"),
	}
}

// Normalize maps the raw table onto the canonical schema, coerces cell
// values, and drops rows missing a description or amount. It never returns
// an error for malformed individual cells; callers decide how to treat an
// empty result.
func (n *Normalizer) Normalize(table *models.RawTable) ([]*models.Transaction, *Stats) {
	stats := &Stats{}
	if table.IsEmpty() {
		return nil, stats
	}

	columns := n.resolveColumns(table.Headers)
	stats.RowsIn = len(table.Rows)

	transactions := make([]*models.Transaction, 0, len(table.Rows))

	for i := range table.Rows {
		tx := &models.Transaction{}

		if idx, ok := columns[colDescription]; ok {
			tx.Description = models.NormalizeDescription(table.Cell(i, idx))
		}

		amountOK := false
		if idx, ok := columns[colAmount]; ok {
			if amount, err := models.ParseDecimalFromString(table.Cell(i, idx)); err == nil {
				tx.Amount = amount
				amountOK = true
			} else {
				stats.AmountsInvalid++
			}
		}

		if idx, ok := columns[colDate]; ok {
			if parsed, err := models.ParseDateWithFormats(table.Cell(i, idx)); err == nil {
				date := parsed
				tx.Date = &date
			} else {
				stats.DatesInvalid++
			}
		}

		tx.TPSReported = n.coerceTax(cellFor(table, i, columns, colTPS), stats)
		tx.TVQReported = n.coerceTax(cellFor(table, i, columns, colTVQ), stats)

		// Completeness invariant: description and amount must be present.
		if tx.Description == "" || !amountOK {
			stats.RowsDropped++
			continue
		}

		transactions = append(transactions, tx)
	}

	stats.RowsOut = len(transactions)

	n.logger.WithFields(logger.Fields{
		"rows_in":      stats.RowsIn,
		"rows_out":     stats.RowsOut,
		"rows_dropped": stats.RowsDropped,
	}).Debug("Normalized raw table")

	return transactions, stats
}

// coerceTax parses a reported tax cell, defaulting to zero when the cell
// is absent or unparseable.
func (n *Normalizer) coerceTax(cell string, stats *Stats) decimal.Decimal {
	if strings.TrimSpace(cell) == "" {
		return decimal.Zero
	}
	value, err := models.ParseDecimalFromString(cell)
	if err != nil {
		stats.TaxesDefaulted++
		return decimal.Zero
	}
	return value
}

// resolveColumns matches table headers against the synonym table. The
// first header claiming a canonical column wins; later duplicates are
// ignored.
func (n *Normalizer) resolveColumns(headers []string) map[column]int {
	resolved := make(map[column]int)
	for i, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		canonical, ok := columnSynonyms[key]
		if !ok {
			continue
		}
		if _, taken := resolved[canonical]; taken {
			continue
		}
		resolved[canonical] = i
	}
	return resolved
}

// cellFor returns the cell under the given canonical column, or "" when
// the table does not carry that column.
func cellFor(table *models.RawTable, row int, columns map[column]int, c column) string {
	idx, ok := columns[c]
	if !ok {
		return ""
	}
	return table.Cell(row, idx)
}

// ParseDateOrNil coerces a date string, returning nil on failure.
func ParseDateOrNil(s string) *time.Time {
	parsed, err := models.ParseDateWithFormats(s)
	if err != nil {
		return nil
	}
	return &parsed
}
