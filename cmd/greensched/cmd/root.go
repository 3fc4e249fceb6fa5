package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "greensched",
	Short: "Energy-aware cluster-simulation scheduler",
	Long: `greensched simulates an FCFS, load-balanced job scheduler combined with a
node power controller that sleeps and wakes compute nodes to reduce energy
use without starving the job queue.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; defaults apply when omitted)")
}
