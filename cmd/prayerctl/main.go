package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smukkama/prayer-server/internal/logging"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/upstream"
	"github.com/smukkama/prayer-server/pkg/config"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	cityFlag string
	latFlag  float64
	lonFlag  float64
)

var rootCmd = &cobra.Command{
	Use:   "prayerctl",
	Short: "Prayer server command line tools",
	Long:  "prayerctl queries prayer times, places, the Hijri calendar and the qibla, and manages the prayer server database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cityFlag, "city", "", "City name (defaults to SCHEDULER_DEFAULT_CITY)")
	rootCmd.PersistentFlags().Float64Var(&latFlag, "lat", 0, "Latitude, used together with --lon")
	rootCmd.PersistentFlags().Float64Var(&lonFlag, "lon", 0, "Longitude, used together with --lat")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called before every command)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if level == "" {
		level = "warn"
	}
	logger = logging.Setup("development", level)
	return nil
}

// placeFromFlags resolves --lat/--lon, then --city, then the configured default
func placeFromFlags(cmd *cobra.Command) prayer.Place {
	flags := cmd.Flags()
	if flags.Changed("lat") && flags.Changed("lon") {
		name := cityFlag
		if name == "" {
			name = fmt.Sprintf("%.4f,%.4f", latFlag, lonFlag)
		}
		return prayer.CoordsPlace(name, latFlag, lonFlag)
	}
	if cityFlag != "" {
		return prayer.CityPlace(cityFlag)
	}
	return prayer.CityPlace(cfg.Scheduler.DefaultCity)
}

func newUpstream(baseURL string) *upstream.Client {
	s := cfg.Sources
	return upstream.NewClient(baseURL, s.UserAgent, s.RequestsPerMinute, s.HTTPTimeout, logger)
}
