package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"classroom-roster/internal/domain/roster"
	"classroom-roster/internal/infrastructure/database"
	"classroom-roster/pkg/logger"

	"github.com/spf13/cobra"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Read-only roster reports straight from the database",
}

var reportClassesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Student and rating counts per active class",
	Run:   runReportClasses,
}

var reportYearCmd = &cobra.Command{
	Use:   "year [school-year]",
	Short: "Number of students rated in a school year (default: current)",
	Args:  cobra.MaximumNArgs(1),
	Run:   runReportYear,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "print JSON instead of a table")
	reportCmd.AddCommand(reportClassesCmd)
	reportCmd.AddCommand(reportYearCmd)
}

func newReport() *database.RosterReport {
	report, err := database.NewRosterReport(mustConnect())
	if err != nil {
		logger.Error("Failed to open report: %v", err)
		os.Exit(1)
	}
	return report
}

func runReportClasses(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	rows, err := newReport().ClassSummaries(ctx)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		cobra.CheckErr(enc.Encode(rows))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tCELL\tSTUDENTS\tRATINGS\tAVERAGE")
	for _, row := range rows {
		avg := "-"
		if row.AverageRating != nil {
			avg = fmt.Sprintf("%.2f", *row.AverageRating)
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%d\t%d\t%s\n", row.Name, row.Row, row.Column, row.ActiveStudents, row.ActiveRatings, avg)
	}
	w.Flush()
}

func runReportYear(cmd *cobra.Command, args []string) {
	year := roster.SchoolYearFor(time.Now())
	if len(args) == 1 {
		year = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	n, err := newReport().StudentsInSchoolYear(ctx, year)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if reportJSON {
		cobra.CheckErr(json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"school_year": year,
			"students":    n,
		}))
		return
	}
	fmt.Printf("%s: %d students rated\n", year, n)
}
