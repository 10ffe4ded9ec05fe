package checkers

import (
	"time"

	"golang-tax-audit-service/internal/models"

	"github.com/shopspring/decimal"
)

// testClock is the fixed reference time used by date-relative checker tests.
var testClock = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig() *Config {
	config := DefaultConfig()
	config.Now = func() time.Time { return testClock }
	return config
}

func tx(description string, amount float64) *models.Transaction {
	return &models.Transaction{
		Description: description,
		Amount:      decimal.NewFromFloat(amount),
	}
}

func txOn(description string, amount float64, date time.Time) *models.Transaction {
	t := tx(description, amount)
	t.Date = &date
	return t
}

func txTaxed(description string, amount, tps, tvq float64) *models.Transaction {
	t := tx(description, amount)
	t.TPSReported = decimal.NewFromFloat(tps)
	t.TVQReported = decimal.NewFromFloat(tvq)
	return t
}
