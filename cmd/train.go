package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/cli"
	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/logger"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train categorizer, forecasters, and anomaly detector",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(_ *cobra.Command, _ []string) error {
	log := logger.New(flagQuiet)

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

	fmt.Println()
	fmt.Println(cli.RenderTitle("TRAINING"))
	fmt.Println()

	catArt, err := eng.TrainCategorizer(records)
	switch {
	case err == nil:
		rows := make([][]string, 0, len(catArt.Metrics.Candidates))
		for _, c := range catArt.Metrics.Candidates {
			name := c.Name
			if name == catArt.Metrics.Selected {
				name += " *"
			}
			rows = append(rows, []string{
				name,
				cli.FormatPercent(c.CVMean),
				cli.FormatScore(c.CVStd),
				cli.FormatPercent(c.TestAccuracy),
				fmt.Sprintf("%dms", c.TrainMillis),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Categorizer candidates",
			Headers: []string{"Candidate", "CV Mean", "CV Std", "Holdout", "Fit"},
			Rows:    rows,
		}))
		fmt.Printf("\n  Version %s trained on %s labeled records\n\n",
			catArt.VersionID, cli.FormatNumber(int64(catArt.TrainingSize)))
	case isInsufficient(err):
		log.Warn().Err(err).Msg("categorizer skipped")
	default:
		return err
	}

	groups, err := eng.TrainForecasters(records)
	if err != nil && !isInsufficient(err) {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Msg("forecaster training stopped early")
	}
	fmt.Printf("  Forecasters trained for %d groups\n", len(groups))

	detArt, err := eng.FitDetector(records)
	switch {
	case err == nil:
		fmt.Printf("  Anomaly detector %s fitted on %s records\n",
			detArt.VersionID, cli.FormatNumber(int64(detArt.TrainingSize)))
	case isInsufficient(err):
		log.Warn().Err(err).Msg("anomaly detector skipped")
	default:
		return err
	}

	return nil
}

func isInsufficient(err error) bool {
	var insufficient *engine.InsufficientTrainingDataError
	return errors.As(err, &insufficient)
}
