package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/cli"
	"github.com/nsightlabs/spendintel/internal/model"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List model versions in the registry",
	RunE:  runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(_ *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Registry.Close()

	fmt.Println()
	fmt.Println(cli.RenderTitle("MODEL REGISTRY"))
	fmt.Println()

	kinds := []model.ModelKind{model.KindCategorization, model.KindForecasting, model.KindAnomaly}
	total := 0
	for _, kind := range kinds {
		versions, err := eng.Registry.ListVersions(kind)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			continue
		}
		total += len(versions)

		rows := make([][]string, 0, len(versions))
		for _, v := range versions {
			group := "-"
			if v.Group != nil {
				group = v.Group.String()
			}
			rows = append(rows, []string{
				v.VersionID,
				group,
				cli.FormatNumber(int64(v.TrainingSize)),
				v.CreatedAt.Format("2006-01-02 15:04"),
			})
		}

		fmt.Print(cli.RenderTable(cli.Table{
			Title:   string(kind),
			Headers: []string{"Version", "Group", "Samples", "Created"},
			Rows:    rows,
		}))
		fmt.Println()
	}

	if total == 0 {
		fmt.Println("  Registry is empty; run `spendintel train` first.")
	}

	return nil
}
