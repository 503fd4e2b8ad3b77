package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/cli"
	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/engine/feature"
	"github.com/nsightlabs/spendintel/internal/model"
)

var (
	flagForecastDept     string
	flagForecastCategory string
	flagForecastCurrency string
	flagHorizon          int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast spending for a department/category/currency group",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().StringVarP(&flagForecastDept, "department", "d", "", "Department of the group")
	forecastCmd.Flags().StringVar(&flagForecastCategory, "category", "", "Category of the group")
	forecastCmd.Flags().StringVar(&flagForecastCurrency, "group-currency", "USD", "Currency of the group")
	forecastCmd.Flags().IntVarP(&flagHorizon, "horizon", "H", 0, "Months ahead (default from config)")
	forecastCmd.MarkFlagRequired("department")
	forecastCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(_ *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Registry.Close()

	cur, err := model.ParseCurrency(flagForecastCurrency)
	if err != nil {
		return err
	}
	key := model.GroupKey{
		Department: flagForecastDept,
		Category:   flagForecastCategory,
		Currency:   cur,
	}

	horizon := flagHorizon
	if horizon <= 0 {
		horizon = eng.Config.Forecast.HorizonBuckets
	}

	result, err := eng.ForecastGroup(key, horizon)
	if err != nil {
		var unknown *engine.UnknownGroupError
		if errors.As(err, &unknown) {
			return fmt.Errorf("no forecaster for group %s; run `spendintel train` on data containing it", key)
		}
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FORECAST  %s  next %dmo", key, horizon)))
	fmt.Println()

	// Recent history gives the forecast table context when the
	// expense file is readable; the forecast itself needs no data.
	if records, err := loadExpenses(); err == nil {
		series := feature.BucketMonthly(records, key)
		if len(series) > 0 {
			totals := make([]float64, len(series))
			for i, p := range series {
				totals[i] = p.Total
			}
			fmt.Printf("  History %s %s\n\n", cli.RenderSparkline(totals), cli.Muted(fmt.Sprintf("%d months", len(series))))
		}
	}

	rows := make([][]string, 0, len(result.Points))
	for _, p := range result.Points {
		rows = append(rows, []string{
			p.Bucket.Format("2006-01"),
			cli.FormatMoney(p.Point, cur),
			cli.FormatMoney(p.Lower, cur),
			cli.FormatMoney(p.Upper, cur),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Month", "Projected", "Lower", "Upper"},
		Rows:    rows,
	}))

	return nil
}
