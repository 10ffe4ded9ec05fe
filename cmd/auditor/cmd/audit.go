package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang-tax-audit-service/cmd/auditor/config"
	"golang-tax-audit-service/internal/advisor"
	"golang-tax-audit-service/internal/engine"
	"golang-tax-audit-service/internal/parsers"
	"golang-tax-audit-service/internal/reporter"
	"golang-tax-audit-service/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the audit command
var (
	inputFile    string
	clientName   string
	outputFormat string
	outputFile   string
	dbPath       string
	noPersist    bool
	showProgress bool

	enableAdvisor   bool
	advisorEndpoint string
	advisorModel    string

	tpsRate        float64
	tvqRate        float64
	taxTolerance   float64
	fuzzyThreshold int
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run anomaly detection over a ledger export",
	Long: `Audit parses a CSV ledger export, normalizes it into the canonical
transaction schema, and runs the full detection sequence: duplicates,
tax variances, suspicious amounts, date incoherences, fraud patterns,
and unsupervised outlier scoring.

Examples:
  # Basic audit
  auditor audit --input ledger.csv --client "Acme Inc"

  # JSON report to a file
  auditor audit --input ledger.csv --client "Acme Inc" \
    --output-format json --output-file report.json

  # Custom tolerances
  auditor audit --input ledger.csv --client "Acme Inc" \
    --tax-tolerance 0.02 --fuzzy-threshold 90

  # Skip persistence
  auditor audit --input ledger.csv --client "Acme Inc" --no-persist

  # With local advisory model
  auditor audit --input ledger.csv --client "Acme Inc" --advisor`,

	PreRunE: validateAuditFlags,
	RunE:    runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	// Required flags
	auditCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to ledger CSV file (required)")
	auditCmd.Flags().StringVarP(&clientName, "client", "c", "", "client name for the audit record (required)")

	// Output flags
	auditCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	auditCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Persistence flags
	auditCmd.Flags().StringVar(&dbPath, "db", config.DefaultDBPath(), "audit history database path")
	auditCmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not record this run in the audit history")

	// Detection configuration flags
	auditCmd.Flags().Float64Var(&tpsRate, "tps-rate", 0.05, "federal tax (TPS/GST) rate")
	auditCmd.Flags().Float64Var(&tvqRate, "tvq-rate", 0.09975, "provincial tax (TVQ/QST) rate")
	auditCmd.Flags().Float64Var(&taxTolerance, "tax-tolerance", 0.05, "relative tax variance tolerance (0.0-1.0)")
	auditCmd.Flags().IntVar(&fuzzyThreshold, "fuzzy-threshold", 85, "duplicate description similarity threshold (0-100)")

	// Advisory flags
	auditCmd.Flags().BoolVar(&enableAdvisor, "advisor", false, "enrich the report with local LLM advice when available")
	auditCmd.Flags().StringVar(&advisorEndpoint, "advisor-endpoint", advisor.DefaultEndpoint, "Ollama endpoint")
	auditCmd.Flags().StringVar(&advisorModel, "advisor-model", advisor.DefaultModel, "Ollama model name")

	// UI flags
	auditCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Mark required flags
	auditCmd.MarkFlagRequired("input")
	auditCmd.MarkFlagRequired("client")

	// Bind flags to viper
	viper.BindPFlag("input", auditCmd.Flags().Lookup("input"))
	viper.BindPFlag("client", auditCmd.Flags().Lookup("client"))
	viper.BindPFlag("output-format", auditCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", auditCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("db", auditCmd.Flags().Lookup("db"))
	viper.BindPFlag("no-persist", auditCmd.Flags().Lookup("no-persist"))
	viper.BindPFlag("tps-rate", auditCmd.Flags().Lookup("tps-rate"))
	viper.BindPFlag("tvq-rate", auditCmd.Flags().Lookup("tvq-rate"))
	viper.BindPFlag("tax-tolerance", auditCmd.Flags().Lookup("tax-tolerance"))
	viper.BindPFlag("fuzzy-threshold", auditCmd.Flags().Lookup("fuzzy-threshold"))
	viper.BindPFlag("advisor", auditCmd.Flags().Lookup("advisor"))
	viper.BindPFlag("advisor-endpoint", auditCmd.Flags().Lookup("advisor-endpoint"))
	viper.BindPFlag("advisor-model", auditCmd.Flags().Lookup("advisor-model"))
	viper.BindPFlag("progress", auditCmd.Flags().Lookup("progress"))
}

func validateAuditFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	inputFile = viper.GetString("input")
	clientName = viper.GetString("client")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	dbPath = viper.GetString("db")
	noPersist = viper.GetBool("no-persist")
	tpsRate = viper.GetFloat64("tps-rate")
	tvqRate = viper.GetFloat64("tvq-rate")
	taxTolerance = viper.GetFloat64("tax-tolerance")
	fuzzyThreshold = viper.GetInt("fuzzy-threshold")
	enableAdvisor = viper.GetBool("advisor")
	advisorEndpoint = viper.GetString("advisor-endpoint")
	advisorModel = viper.GetString("advisor-model")
	showProgress = viper.GetBool("progress")

	if inputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if clientName == "" {
		return fmt.Errorf("client name is required")
	}

	if err := validateFileExists(inputFile, "ledger file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if tpsRate < 0 || tvqRate < 0 {
		return fmt.Errorf("tax rates cannot be negative")
	}
	if taxTolerance < 0 || taxTolerance > 1 {
		return fmt.Errorf("tax tolerance must be between 0.0 and 1.0")
	}
	if fuzzyThreshold < 0 || fuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be between 0 and 100")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting audit...\n")
		fmt.Fprintf(os.Stderr, "Input file: %s\n", inputFile)
		fmt.Fprintf(os.Stderr, "Client: %s\n", clientName)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
	}

	// Parse the ledger export
	parser := parsers.NewTableParser(config.CreateParseConfig())
	table, parseStats, err := parser.ParseFile(inputFile)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Parsed %d rows (%d skipped)\n", parseStats.RowsParsed, parseStats.RowsSkipped)
	}

	// Build the engine
	checkersConfig, err := config.CreateCheckersConfig(tpsRate, tvqRate, taxTolerance, fuzzyThreshold)
	if err != nil {
		return err
	}

	opts := []engine.Option{}
	if !noPersist {
		auditStore, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer auditStore.Close()
		opts = append(opts, engine.WithStore(auditStore))
	}
	if showProgress {
		opts = append(opts, engine.WithProgress(func(checker string, anomaliesSoFar int) {
			fmt.Fprintf(os.Stderr, "\r[%s] %d anomalies so far", checker, anomaliesSoFar)
		}))
	}

	auditEngine, err := engine.New(checkersConfig, opts...)
	if err != nil {
		return err
	}

	result, err := auditEngine.Process(table, clientName)
	if err != nil {
		return err
	}
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}

	// Optional advisory enrichment
	if enableAdvisor {
		enrichWithAdvice(ctx, result)
	}

	// Generate report
	output, closeOutput, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	reportConfig := config.CreateReportConfig(outputFormat, output)
	reportGenerator, err := reporter.NewReporter(reportConfig)
	if err != nil {
		return err
	}
	if err := reportGenerator.WriteResult(result); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		summary := result.Summary()
		fmt.Fprintf(os.Stderr, "\nAudit completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Processed %d transactions, found %d anomalies.\n",
			result.Transactions, summary.AnomaliesTotal)
		fmt.Fprintf(os.Stderr, "Estimated impact: $%s\n", summary.TotalImpact.Round(2).StringFixed(2))
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Duration)
	}

	return nil
}

// enrichWithAdvice replaces each anomaly's recommendation with advisory
// text when the local model answers. Failures leave the built-in
// recommendation in place.
func enrichWithAdvice(ctx context.Context, result *engine.AuditResult) {
	client := advisor.NewClient(advisorEndpoint, advisorModel)
	if !client.Available(ctx) {
		fmt.Fprintf(os.Stderr, "Advisory endpoint unavailable, using built-in recommendations\n")
		return
	}

	for _, a := range result.Anomalies {
		advice, err := client.Query(ctx, advisor.AdvicePrompt(a.Type.String(), a.Description))
		if err != nil || advice == "" {
			continue
		}
		a.Recommendation = advice
	}
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}
