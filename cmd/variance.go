package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/cli"
	"github.com/nsightlabs/spendintel/internal/logger"
	"github.com/nsightlabs/spendintel/internal/model"
	"github.com/nsightlabs/spendintel/internal/pipeline"
	"github.com/nsightlabs/spendintel/internal/source"
)

var flagBudgets string

var varianceCmd = &cobra.Command{
	Use:   "variance",
	Short: "Budget vs actual spend per allocation",
	RunE:  runVariance,
}

func init() {
	varianceCmd.Flags().StringVarP(&flagBudgets, "budgets", "b", "budgets.csv", "Budget allocation CSV path")
	rootCmd.AddCommand(varianceCmd)
}

func runVariance(_ *cobra.Command, _ []string) error {
	log := logger.New(flagQuiet)

	records, err := loadExpenses()
	if err != nil {
		return err
	}

	cur, err := model.ParseCurrency(flagCurrency)
	if err != nil {
		return err
	}

	budgets, report, err := source.ReadBudgets(flagBudgets, cur)
	if err != nil {
		return err
	}
	for _, re := range report.Rejected {
		log.Warn().Int("line", re.Line).Err(re.Err).Msg("rejected budget row")
	}
	if len(budgets) == 0 {
		fmt.Println("\n  No budget allocations found.")
		return nil
	}

	lines := pipeline.BudgetVariance(records, budgets)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BUDGET VARIANCE  %d allocations", len(lines))))
	fmt.Println()

	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		variance := cli.FormatSigned(l.Variance, l.Group.Currency)
		if l.OverBudget {
			variance = cli.Alert(variance)
		}
		rows = append(rows, []string{
			l.Group.String(),
			l.PeriodStart + " to " + l.PeriodEnd,
			cli.FormatAmount(l.Allocated, l.Group.Currency),
			cli.FormatAmount(l.Actual, l.Group.Currency),
			variance,
			fmt.Sprintf("%+.1f%%", l.VariancePct),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Group", "Period", "Allocated", "Actual", "Variance", "Pct"},
		Rows:    rows,
	}))

	return nil
}
