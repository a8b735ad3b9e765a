package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/source"
	"github.com/smukkama/prayer-server/internal/upstream"
)

var (
	timesDate string
)

var timesCmd = &cobra.Command{
	Use:   "times",
	Short: "Print the prayer times of a day",
	Long: `Print the six time-points of a day for a place.

Examples:
  prayerctl times --city Cairo
  prayerctl times --lat 21.42 --lon 39.83 --date 2026-03-10
`,
	RunE: runTimes,
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print the next prayer and the time remaining",
	RunE:  runNext,
}

func init() {
	timesCmd.Flags().StringVar(&timesDate, "date", "", "Date as YYYY-MM-DD (defaults to today)")
	rootCmd.AddCommand(timesCmd, nextCmd)
}

func newSource() *source.Client {
	return source.NewClient(newUpstream(cfg.Sources.AladhanURL), cfg.Sources.Method, upstream.NopCache{}, 0, logger)
}

func runTimes(cmd *cobra.Command, args []string) error {
	date := time.Now()
	if timesDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", timesDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		date = parsed
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scheduler.FetchTimeout)
	defer cancel()

	sched, err := newSource().Fetch(ctx, placeFromFlags(cmd), date)
	if err != nil {
		return err
	}

	state := prayer.Evaluate(prayer.Input{Today: sched, Now: time.Now()})
	fmt.Printf("%s  %s  %s\n\n", sched.Place(), sched.DateKey(), sched.Hijri())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, e := range prayer.Timeline(sched, nil, state) {
		marker := ""
		if e.Next {
			marker = "<- next"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Raw, marker)
	}
	return w.Flush()
}

func runNext(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scheduler.FetchTimeout)
	defer cancel()

	src := newSource()
	place := placeFromFlags(cmd)
	now := time.Now()

	today, err := src.Fetch(ctx, place, now)
	if err != nil {
		return err
	}
	tomorrow, err := src.Fetch(ctx, place, today.Date().AddDate(0, 0, 1))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch tomorrow's schedule")
	}

	state := prayer.Evaluate(prayer.Input{Today: today, Tomorrow: tomorrow, Now: now})
	if state.Status != prayer.StatusActive {
		fmt.Println(state.RemainingString())
		return nil
	}

	suffix := ""
	if state.NextDay {
		suffix = " (tomorrow)"
	}
	fmt.Printf("%s at %s%s, in %s\n", state.Name, state.Time, suffix, state.RemainingString())
	return nil
}
