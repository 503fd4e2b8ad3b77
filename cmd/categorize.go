package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/cli"
	"github.com/nsightlabs/spendintel/internal/engine"
)

var (
	flagCategorizeAll bool
	flagMinConfidence float64
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Predict categories for uncategorized expenses",
	RunE:  runCategorize,
}

func init() {
	categorizeCmd.Flags().BoolVar(&flagCategorizeAll, "all", false, "Score already-categorized rows too")
	categorizeCmd.Flags().Float64Var(&flagMinConfidence, "min-confidence", 0, "Dim predictions below this confidence")
	rootCmd.AddCommand(categorizeCmd)
}

func runCategorize(_ *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Registry.Close()

	records, err := loadExpenses()
	if err != nil {
		return err
	}

	targets := records
	if !flagCategorizeAll {
		targets = nil
		for _, r := range records {
			if !r.HasCategory() {
				targets = append(targets, r)
			}
		}
	}
	if len(targets) == 0 {
		fmt.Println("\n  Nothing to categorize.")
		return nil
	}

	preds, err := eng.Categorize(targets)
	if err != nil {
		if errors.Is(err, engine.ErrModelNotTrained) {
			return fmt.Errorf("no categorization model in the registry; run `spendintel train` first")
		}
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("CATEGORIZATION  %d expenses", len(targets))))
	fmt.Println()

	rows := make([][]string, 0, len(targets))
	for i, r := range targets {
		category := preds[i].Category
		confidence := cli.FormatPercent(preds[i].Confidence)
		if flagMinConfidence > 0 && preds[i].Confidence < flagMinConfidence {
			category = cli.Muted(category)
			confidence = cli.Warn(confidence)
		}
		rows = append(rows, []string{
			r.Date.Format("2006-01-02"),
			truncate(r.Vendor, 28),
			r.Department,
			cli.FormatAmount(r.Amount, r.Currency),
			category,
			confidence,
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Vendor", "Department", "Amount", "Category", "Confidence"},
		Rows:    rows,
	}))

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
