package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nsightlabs/spendintel/internal/config"
	"github.com/nsightlabs/spendintel/internal/logger"
	"github.com/nsightlabs/spendintel/internal/model"
	"github.com/nsightlabs/spendintel/internal/pipeline"
	"github.com/nsightlabs/spendintel/internal/registry"
	"github.com/nsightlabs/spendintel/internal/source"
)

var (
	flagConfig   string
	flagRegistry string
	flagExpenses string
	flagCurrency string
	flagQuiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "spendintel",
	Short: "Expense Intelligence Engine CLI",
	Long:  "Categorize expenses, forecast group spending, and flag anomalies from versioned models.",
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "", "Model registry database path")
	rootCmd.PersistentFlags().StringVarP(&flagExpenses, "expenses", "e", "expenses.csv", "Expense CSV path")
	rootCmd.PersistentFlags().StringVarP(&flagCurrency, "currency", "c", "USD", "Default currency for rows without one")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// loadConfig reads the config file, applying the --registry override.
func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	if flagRegistry != "" {
		cfg.Registry.Path = flagRegistry
	}
	return cfg, nil
}

// newEngine opens the registry and bundles it with the loaded config.
// The caller must Close the returned registry.
func newEngine() (*pipeline.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	reg, err := registry.Open(cfg.RegistryPath())
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	return &pipeline.Engine{Registry: reg, Config: cfg}, nil
}

// loadExpenses is the shared ingestion path used by all commands.
// Rejected rows are logged and skipped; only an unreadable file fails.
func loadExpenses() ([]model.ExpenseRecord, error) {
	log := logger.New(flagQuiet)

	cur, err := model.ParseCurrency(flagCurrency)
	if err != nil {
		return nil, err
	}

	records, report, err := source.ReadExpenses(flagExpenses, cur)
	if err != nil {
		return nil, err
	}

	for _, re := range report.Rejected {
		log.Warn().Int("line", re.Line).Err(re.Err).Msg("rejected expense row")
	}
	log.Info().
		Int("accepted", report.Accepted).
		Int("rejected", len(report.Rejected)).
		Str("path", flagExpenses).
		Msg("expenses loaded")

	return records, nil
}
