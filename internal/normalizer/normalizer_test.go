package normalizer

import (
	"testing"

	"golang-tax-audit-service/internal/models"

	"github.com/shopspring/decimal"
)

func TestNormalizeEnglishHeaders(t *testing.T) {
	table := models.NewRawTable(
		[]string{"Date", "Description", "Amount", "TPS", "TVQ"},
		[][]string{
			{"2024-03-15", "Amazon AWS", "1000.00", "50.00", "99.75"},
		},
	)

	transactions, stats := New().Normalize(table)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}

	tx := transactions[0]
	if tx.Description != "AMAZON AWS" {
		t.Errorf("expected normalized description 'AMAZON AWS', got %q", tx.Description)
	}
	if !tx.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected amount 1000, got %s", tx.Amount)
	}
	if !tx.HasDate() {
		t.Error("expected parsed date")
	}
	if !tx.TPSReported.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected TPS 50, got %s", tx.TPSReported)
	}
	if stats.RowsOut != 1 {
		t.Errorf("expected 1 row out, got %d", stats.RowsOut)
	}
}

func TestNormalizeFrenchHeaders(t *testing.T) {
	table := models.NewRawTable(
		[]string{"date", "Fournisseur", "Montant", "tps", "tvq"},
		[][]string{
			{"2024-03-15", "Hydro Québec", "350.00", "17.50", "34.91"},
		},
	)

	transactions, _ := New().Normalize(table)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].Description != "HYDRO QUÉBEC" {
		t.Errorf("expected 'HYDRO QUÉBEC', got %q", transactions[0].Description)
	}
}

func TestNormalizeDebitAsAmount(t *testing.T) {
	table := models.NewRawTable(
		[]string{"Description", "Debit"},
		[][]string{{"BELL CANADA", "$1,200.50"}},
	)

	transactions, _ := New().Normalize(table)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if !transactions[0].Amount.Equal(decimal.NewFromFloat(1200.50)) {
		t.Errorf("expected 1200.50, got %s", transactions[0].Amount)
	}
}

func TestNormalizeDropsIncompleteRows(t *testing.T) {
	table := models.NewRawTable(
		[]string{"Description", "Amount"},
		[][]string{
			{"AMAZON AWS", "100.00"},
			{"", "200.00"},
			{"BELL CANADA", "not a number"},
			{"HYDRO QUEBEC", "300.00"},
		},
	)

	transactions, stats := New().Normalize(table)
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	if stats.RowsDropped != 2 {
		t.Errorf("expected 2 rows dropped, got %d", stats.RowsDropped)
	}
	if stats.AmountsInvalid != 1 {
		t.Errorf("expected 1 invalid amount, got %d", stats.AmountsInvalid)
	}
}

func TestNormalizeInvalidDateBecomesNil(t *testing.T) {
	table := models.NewRawTable(
		[]string{"Date", "Description", "Amount"},
		[][]string{{"pas une date", "AMAZON AWS", "100.00"}},
	)

	transactions, stats := New().Normalize(table)
	if len(transactions) != 1 {
		t.Fatalf("expected row to survive invalid date, got %d transactions", len(transactions))
	}
	if transactions[0].HasDate() {
		t.Error("expected nil date")
	}
	if stats.DatesInvalid != 1 {
		t.Errorf("expected 1 invalid date, got %d", stats.DatesInvalid)
	}
}

func TestNormalizeMissingTaxesDefaultToZero(t *testing.T) {
	table := models.NewRawTable(
		[]string{"Description", "Amount", "TPS"},
		[][]string{{"AMAZON AWS", "100.00", "n/a"}},
	)

	transactions, stats := New().Normalize(table)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if !transactions[0].TPSReported.IsZero() {
		t.Errorf("expected TPS zero, got %s", transactions[0].TPSReported)
	}
	if !transactions[0].TVQReported.IsZero() {
		t.Errorf("expected TVQ zero for absent column, got %s", transactions[0].TVQReported)
	}
	if stats.TaxesDefaulted != 1 {
		t.Errorf("expected 1 tax defaulted, got %d", stats.TaxesDefaulted)
	}
}

func TestNormalizeFirstHeaderWins(t *testing.T) {
	table := models.NewRawTable(
		[]string{"Description", "Vendor", "Amount"},
		[][]string{{"AMAZON AWS", "ignored", "100.00"}},
	)

	transactions, _ := New().Normalize(table)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].Description != "AMAZON AWS" {
		t.Errorf("expected first description column to win, got %q", transactions[0].Description)
	}
}

func TestNormalizeEmptyTable(t *testing.T) {
	transactions, stats := New().Normalize(models.NewRawTable(nil, nil))
	if len(transactions) != 0 {
		t.Errorf("expected no transactions, got %d", len(transactions))
	}
	if stats.RowsIn != 0 {
		t.Errorf("expected 0 rows in, got %d", stats.RowsIn)
	}
}
