package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/cli"
	"github.com/nsightlabs/spendintel/internal/engine"
)

var flagThreshold float64

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Flag anomalous expenses",
	RunE:  runAnomalies,
}

func init() {
	anomaliesCmd.Flags().Float64VarP(&flagThreshold, "threshold", "t", -1, "Severity threshold in [0,1] (default from config)")
	rootCmd.AddCommand(anomaliesCmd)
}

func runAnomalies(_ *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Registry.Close()

	records, err := loadExpenses()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("\n  No expense records found.")
		return nil
	}

	threshold := flagThreshold
	if threshold < 0 {
		threshold = eng.Config.Anomaly.Threshold
	}

	flags, err := eng.DetectAnomalies(records, threshold)
	if err != nil {
		if errors.Is(err, engine.ErrModelNotTrained) {
			return fmt.Errorf("no anomaly detector in the registry; run `spendintel train` first")
		}
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ANOMALIES  threshold %.2f", threshold)))
	fmt.Println()

	if len(flags) == 0 {
		fmt.Println("  No anomalies at this threshold.")
		return nil
	}

	rows := make([][]string, 0, len(flags))
	for _, f := range flags {
		severity := cli.FormatScore(f.Severity)
		if f.Severity >= 0.8 {
			severity = cli.Alert(severity)
		} else if f.Severity >= 0.5 {
			severity = cli.Warn(severity)
		}
		rows = append(rows, []string{
			f.Date.Format("2006-01-02"),
			f.Group.String(),
			cli.FormatMoney(f.Amount, f.Group.Currency),
			severity,
			f.Reason,
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Group", "Amount", "Severity", "Reason"},
		Rows:    rows,
	}))
	fmt.Printf("\n  Detector version %s\n", cli.Muted(flags[0].DetectorVersion))

	return nil
}
