package cmd

import (
	"fmt"

	"golang-tax-audit-service/cmd/auditor/config"
	"golang-tax-audit-service/internal/reporter"
	"golang-tax-audit-service/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the history command
var (
	historyClient string
	historyLimit  int
	historyFormat string
	historyDB     string
	compareYears  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past audit runs for a client",
	Long: `History lists the audit runs recorded for a client, newest first,
or aggregates them per calendar year with --compare-years.

Examples:
  auditor history --client "Acme Inc"
  auditor history --client "Acme Inc" --limit 5 --output-format json
  auditor history --client "Acme Inc" --compare-years`,

	PreRunE: validateHistoryFlags,
	RunE:    runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyClient, "client", "c", "", "client name (required)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of runs to show")
	historyCmd.Flags().StringVarP(&historyFormat, "output-format", "f", "console", "output format: console, json")
	historyCmd.Flags().StringVar(&historyDB, "db", config.DefaultDBPath(), "audit history database path")
	historyCmd.Flags().BoolVar(&compareYears, "compare-years", false, "aggregate runs per calendar year")

	historyCmd.MarkFlagRequired("client")
}

func validateHistoryFlags(cmd *cobra.Command, args []string) error {
	if historyClient == "" {
		return fmt.Errorf("client name is required")
	}
	if historyLimit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if historyFormat != "console" && historyFormat != "json" {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", historyFormat)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	auditStore, err := store.Open(historyDB)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	reportGenerator, err := reporter.NewReporter(&reporter.Config{
		Format: reporter.Format(historyFormat),
		Output: cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	if compareYears {
		summaries, err := auditStore.YearComparison(historyClient)
		if err != nil {
			return err
		}
		return reportGenerator.WriteYearComparison(historyClient, summaries)
	}

	records, err := auditStore.AuditHistory(historyClient, historyLimit)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d audit runs for %s\n", len(records), historyClient)
	}

	return reportGenerator.WriteHistory(historyClient, records)
}
