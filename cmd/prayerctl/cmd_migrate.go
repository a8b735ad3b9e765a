package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/prayer-server/internal/database"
)

var alertsLimit int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recently fired alerts from the history",
	RunE:  runAlerts,
}

func init() {
	alertsCmd.Flags().IntVarP(&alertsLimit, "limit", "n", 20, "Number of alerts to list")
	rootCmd.AddCommand(migrateCmd, alertsCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := database.Connect(cmd.Context(), cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(cmd.Context(), logger); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runAlerts(cmd *cobra.Command, args []string) error {
	db, err := database.Connect(cmd.Context(), cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	alerts, err := db.RecentAlerts(cmd.Context(), alertsLimit)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.FiredAt.Local().Format(time.DateTime), a.Prayer, a.AdjustedTime, a.Place, a.Hijri)
	}
	return w.Flush()
}
