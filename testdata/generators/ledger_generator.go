// Ledger generator produces synthetic Quebec ledger CSV exports for
// testing the auditor. Generated files carry realistic vendor names,
// TPS/TVQ columns, and optionally planted anomalies: duplicated invoices,
// tax variances, extreme amounts, and incoherent dates.
//
// Usage:
//
//	go run ledger_generator.go -count=200 -output=ledger.csv
//	go run ledger_generator.go -count=500 -anomaly-ratio=0.1 -seed=7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

var vendors = []string{
	"AMAZON AWS",
	"BELL CANADA",
	"HYDRO QUEBEC",
	"VIDEOTRON LTEE",
	"BUREAU EN GROS",
	"RESTAURANT LA BELLE PROVINCE",
	"LOCATION D'OUTILS SIMPLEX",
	"IMPRIMERIE DUBOIS INC",
	"TRANSPORT MORNEAU",
	"SERVICES COMPTABLES GAGNON",
}

const (
	tpsRate = 0.05
	tvqRate = 0.09975
)

func main() {
	var (
		count        = flag.Int("count", 100, "number of transactions to generate")
		output       = flag.String("output", "ledger.csv", "output CSV file")
		anomalyRatio = flag.Float64("anomaly-ratio", 0.05, "fraction of rows with planted anomalies")
		seed         = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		frenchCols   = flag.Bool("french-columns", false, "use French column headers (Fournisseur, Montant)")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{"Date", "Description", "Amount", "TPS", "TVQ"}
	if *frenchCols {
		headers = []string{"Date", "Fournisseur", "Montant", "TPS", "TVQ"}
	}
	if err := writer.Write(headers); err != nil {
		log.Fatalf("Failed to write headers: %v", err)
	}

	start := time.Now().AddDate(0, -11, 0)
	planted := 0

	for i := 0; i < *count; i++ {
		date := start.AddDate(0, 0, rng.Intn(330))
		vendor := vendors[rng.Intn(len(vendors))]
		amount := 50.0 + rng.Float64()*2000.0

		tps := amount * tpsRate
		tvq := amount * tvqRate

		if rng.Float64() < *anomalyRatio {
			planted++
			switch rng.Intn(4) {
			case 0:
				// Duplicate the previous row's vendor and amount.
				if i > 0 {
					amount = 50.0 + rng.Float64()*2000.0
				}
			case 1:
				// Understate the reported taxes.
				tps *= 0.5
				tvq *= 0.5
			case 2:
				// Extreme amount.
				amount *= 50
				tps = amount * tpsRate
				tvq = amount * tvqRate
			case 3:
				// Future date.
				date = time.Now().AddDate(1, 0, 0)
			}
		}

		row := []string{
			date.Format("2006-01-02"),
			vendor,
			fmt.Sprintf("%.2f", amount),
			fmt.Sprintf("%.2f", tps),
			fmt.Sprintf("%.2f", tvq),
		}
		if err := writer.Write(row); err != nil {
			log.Fatalf("Failed to write row %d: %v", i, err)
		}
	}

	fmt.Printf("Generated %d transactions (%d with planted anomalies) in %s\n",
		*count, planted, *output)
}
