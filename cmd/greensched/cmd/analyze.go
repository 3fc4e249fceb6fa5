package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/huyongqii/green-energy/pkg/record"
	"github.com/huyongqii/green-energy/pkg/store"
)

var analyzeDB string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [record.csv]",
	Short: "Summarize a run's snapshot record",
	Long: `Compute utilization, job, and node-state statistics from the snapshot
record written by a simulation run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDB, "db", "", "also summarize job results from a run database")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := "power_control_record.csv"
	if len(args) > 0 {
		path = args[0]
	}

	records, err := record.ReadCSV(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no snapshot rows", path)
	}

	summary := record.Summarize(records)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Snapshot rows", fmt.Sprintf("%d", summary.Rows))
	table.Append("Average utilization", fmt.Sprintf("%.4f", summary.AvgUtilization))
	table.Append("Max utilization", fmt.Sprintf("%.4f", summary.MaxUtilization))
	table.Append("Average running jobs", fmt.Sprintf("%.2f", summary.AvgRunningJobs))
	table.Append("Max running jobs", fmt.Sprintf("%d", summary.MaxRunningJobs))
	table.Append("Average waiting jobs", fmt.Sprintf("%.2f", summary.AvgWaitingJobs))
	table.Append("Max waiting jobs", fmt.Sprintf("%d", summary.MaxWaitingJobs))
	table.Append("Average computing nodes", fmt.Sprintf("%.2f", summary.AvgComputingNodes))
	table.Append("Average idle nodes", fmt.Sprintf("%.2f", summary.AvgIdleNodes))
	table.Append("Average sleeping nodes", fmt.Sprintf("%.2f", summary.AvgSleepingNodes))
	table.Append("Average powered-off nodes", fmt.Sprintf("%.2f", summary.AvgPoweredOffNodes))
	table.Render()

	if analyzeDB != "" {
		return analyzeJobResults(analyzeDB)
	}
	return nil
}

func analyzeJobResults(dbPath string) error {
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.ListJobResults()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("\nNo job results in database")
		return nil
	}

	var totalWait float64
	maxWait := 0.0
	for _, r := range results {
		totalWait += r.WaitTime
		if r.WaitTime > maxWait {
			maxWait = r.WaitTime
		}
	}

	fmt.Println()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Finished jobs", fmt.Sprintf("%d", len(results)))
	table.Append("Average wait time", fmt.Sprintf("%.1f s", totalWait/float64(len(results))))
	table.Append("Max wait time", fmt.Sprintf("%.1f s", maxWait))
	table.Render()
	return nil
}
