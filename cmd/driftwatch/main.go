package main

import (
	"fmt"
	"os"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "DriftWatch - Permission Snapshot & Change Detection",
	Long: `DriftWatch crawls a tenant's content hierarchy, snapshots who can
access what, and watches for drift against approved baselines.

Workflow:
- crawl: discover sites, folders, and files
- collect: gather and classify the permissions on each resource
- baseline: freeze an approved permission state per site
- detect: compare current state against active baselines
- changes: review the recorded change ledger
- notify: deliver queued change notifications

State lives in ~/.driftwatch/driftwatch.db.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize database for all commands except help
		if cmd.Name() != "help" && cmd.Name() != "driftwatch" {
			_ = godotenv.Load()
			if err := database.Initialize(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

var verboseFlag bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(recipientCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
