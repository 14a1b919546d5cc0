package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cityatlas/resolver-cli/internal/cache"
)

var cacheStatsPath string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cached response counts per stage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path := cfg.Cache.Path
		if cacheStatsPath != "" {
			path = cacheStatsPath
		}

		store, err := cache.Open(path)
		if err != nil {
			return eris.Wrap(err, "cache: open store")
		}
		defer store.Close() //nolint:errcheck

		for _, stage := range []cache.Stage{cache.StageGeocode, cache.StageSpatial} {
			n, err := store.Count(ctx, stage)
			if err != nil {
				return eris.Wrapf(err, "cache: count %s", stage)
			}
			fmt.Fprintf(os.Stdout, "%-8s %d\n", stage, n)
		}
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheStatsPath, "cache", "", "cache database path (overrides config)")
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
