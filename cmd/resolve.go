package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cityatlas/resolver-cli/internal/ingest"
	"github.com/cityatlas/resolver-cli/internal/model"
)

var (
	resolveRecords   string
	resolveOverrides string
	resolveOut       string
	resolveLimit     int
	resolveCache     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run the full resolution pipeline on a record CSV",
	Long: `Reads building records from a CSV, geocodes each one, matches it to an
OSM building footprint, and writes the resolution report as JSON.

Examples:
  # Resolve all records
  resolver-cli resolve --records buildings.csv --out report.json

  # With manual overrides and a record limit
  resolver-cli resolve --records buildings.csv --overrides overrides.csv --limit 10`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		records, err := loadRecords(resolveRecords, resolveLimit)
		if err != nil {
			return err
		}

		env, err := initPipeline(resolveCache, resolveOverrides)
		if err != nil {
			return eris.Wrap(err, "resolve: init pipeline")
		}
		defer env.Close()

		report, err := env.Pipeline.Run(ctx, records)
		if err != nil {
			return eris.Wrap(err, "resolve: run pipeline")
		}

		if err := report.Write(resolveOut); err != nil {
			return eris.Wrap(err, "resolve: write report")
		}

		zap.L().Info("resolution complete",
			zap.String("out", resolveOut),
			zap.String("summary", report.Summary()),
		)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRecords, "records", "", "path to record CSV (required)")
	resolveCmd.Flags().StringVar(&resolveOverrides, "overrides", "", "path to manual override CSV")
	resolveCmd.Flags().StringVar(&resolveOut, "out", "report.json", "path for the resolution report")
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "max records to process (0 = all)")
	resolveCmd.Flags().StringVar(&resolveCache, "cache", "", "cache database path (overrides config)")
	_ = resolveCmd.MarkFlagRequired("records")
	rootCmd.AddCommand(resolveCmd)
}

// loadRecords reads the record CSV and applies the limit.
func loadRecords(path string, limit int) ([]model.Record, error) {
	records, err := ingest.ReadRecords(path)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: read records")
	}
	zap.L().Info("parsed records", zap.Int("count", len(records)))

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

// loadOverrides reads the override CSV when a path is given.
func loadOverrides(path string) (map[string]model.Override, error) {
	if path == "" {
		return nil, nil
	}
	overrides, err := ingest.ReadOverrides(path)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: read overrides")
	}
	zap.L().Info("parsed overrides", zap.Int("count", len(overrides)))
	return overrides, nil
}
