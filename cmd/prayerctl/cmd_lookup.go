package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/prayer-server/internal/geocode"
	"github.com/smukkama/prayer-server/internal/qibla"
	"github.com/smukkama/prayer-server/internal/upstream"
)

var qiblaHeading float64

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search places by name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar <year> <month>",
	Short: "Print a Gregorian month with its Hijri dates and holidays",
	Args:  cobra.ExactArgs(2),
	RunE:  runCalendar,
}

var qiblaCmd = &cobra.Command{
	Use:   "qibla <lat> <lon>",
	Short: "Print the qibla bearing from a position",
	Args:  cobra.ExactArgs(2),
	RunE:  runQibla,
}

func init() {
	qiblaCmd.Flags().Float64Var(&qiblaHeading, "heading", 0, "Current compass heading in degrees")
	rootCmd.AddCommand(searchCmd, calendarCmd, qiblaCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sources.HTTPTimeout)
	defer cancel()

	resolver := geocode.NewResolver(newUpstream(cfg.Sources.NominatimURL), cfg.Sources.NominatimLanguage, upstream.NopCache{}, 0, logger)
	results, err := resolver.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no places found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%s\n", r.ShortName(), r.Lat, r.Lon, r.DisplayName)
	}
	return w.Flush()
}

func runCalendar(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil || month < 1 || month > 12 {
		return fmt.Errorf("invalid month %q", args[1])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scheduler.FetchTimeout)
	defer cancel()

	days, err := newSource().HijriCalendar(ctx, year, time.Month(month))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Gregorian, d.Hijri, strings.Join(d.Holidays, ", "))
	}
	return w.Flush()
}

func runQibla(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude %q", args[0])
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude %q", args[1])
	}

	bearing := qibla.Bearing(lat, lon)
	fmt.Printf("bearing   %.1f°\n", bearing)
	fmt.Printf("distance  %.0f km\n", qibla.Distance(lat, lon))

	if cmd.Flags().Changed("heading") {
		fmt.Printf("off by    %.1f°\n", qibla.AngularDistance(qiblaHeading, bearing))
		if qibla.Aligned(qiblaHeading, bearing) {
			fmt.Println("facing the qibla")
		}
	}
	return nil
}
