package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	geocodeRecords string
	geocodeOut     string
	geocodeLimit   int
	geocodeCache   string
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Run only the geocoding stage",
	Long: `Geocodes every record and writes the per-record geocode resolutions as
JSON. The output can be fed to the footprint command to run the spatial
stage separately.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		records, err := loadRecords(geocodeRecords, geocodeLimit)
		if err != nil {
			return err
		}

		env, err := initPipeline(geocodeCache, "")
		if err != nil {
			return eris.Wrap(err, "geocode: init pipeline")
		}
		defer env.Close()

		resolutions, err := env.Pipeline.Geocode(ctx, records)
		if err != nil {
			return eris.Wrap(err, "geocode: run stage")
		}

		if err := writeJSON(geocodeOut, resolutions); err != nil {
			return eris.Wrap(err, "geocode: write output")
		}

		resolved := 0
		for _, r := range resolutions {
			if r.Resolved() {
				resolved++
			}
		}
		zap.L().Info("geocoding complete",
			zap.Int("records", len(resolutions)),
			zap.Int("resolved", resolved),
			zap.String("out", geocodeOut),
		)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeRecords, "records", "", "path to record CSV (required)")
	geocodeCmd.Flags().StringVar(&geocodeOut, "out", "geocodes.json", "path for the geocode resolutions")
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "max records to process (0 = all)")
	geocodeCmd.Flags().StringVar(&geocodeCache, "cache", "", "cache database path (overrides config)")
	_ = geocodeCmd.MarkFlagRequired("records")
	rootCmd.AddCommand(geocodeCmd)
}

// writeJSON writes v as indented JSON with a trailing newline.
func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
