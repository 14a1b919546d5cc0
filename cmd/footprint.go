package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cityatlas/resolver-cli/internal/model"
)

var (
	footprintRecords   string
	footprintGeocodes  string
	footprintOverrides string
	footprintOut       string
	footprintLimit     int
	footprintCache     string
)

var footprintCmd = &cobra.Command{
	Use:   "footprint",
	Short: "Run only the footprint-matching stage",
	Long: `Matches records to OSM building footprints using geocode resolutions
produced by the geocode command, and writes the resolution report as JSON.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		records, err := loadRecords(footprintRecords, footprintLimit)
		if err != nil {
			return err
		}

		geocodes, err := loadGeocodes(footprintGeocodes)
		if err != nil {
			return err
		}

		env, err := initPipeline(footprintCache, footprintOverrides)
		if err != nil {
			return eris.Wrap(err, "footprint: init pipeline")
		}
		defer env.Close()

		report, err := env.Pipeline.Footprints(ctx, records, geocodes)
		if err != nil {
			return eris.Wrap(err, "footprint: run stage")
		}

		if err := report.Write(footprintOut); err != nil {
			return eris.Wrap(err, "footprint: write report")
		}

		zap.L().Info("footprint matching complete",
			zap.String("out", footprintOut),
			zap.String("summary", report.Summary()),
		)
		return nil
	},
}

func init() {
	footprintCmd.Flags().StringVar(&footprintRecords, "records", "", "path to record CSV (required)")
	footprintCmd.Flags().StringVar(&footprintGeocodes, "geocodes", "", "path to geocode resolutions JSON (required)")
	footprintCmd.Flags().StringVar(&footprintOverrides, "overrides", "", "path to manual override CSV")
	footprintCmd.Flags().StringVar(&footprintOut, "out", "report.json", "path for the resolution report")
	footprintCmd.Flags().IntVar(&footprintLimit, "limit", 0, "max records to process (0 = all)")
	footprintCmd.Flags().StringVar(&footprintCache, "cache", "", "cache database path (overrides config)")
	_ = footprintCmd.MarkFlagRequired("records")
	_ = footprintCmd.MarkFlagRequired("geocodes")
	rootCmd.AddCommand(footprintCmd)
}

// loadGeocodes reads geocode resolutions written by the geocode command.
func loadGeocodes(path string) ([]model.GeocodeResolution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: read geocodes")
	}
	var out []model.GeocodeResolution
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "cmd: decode geocodes")
	}
	zap.L().Info("parsed geocodes", zap.Int("count", len(out)))
	return out, nil
}
