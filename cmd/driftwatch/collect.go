package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/output"
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect permissions on discovered resources (permission pass)",
	Long: `Fetches the grants on every folder and file found by 'crawl',
classifies each grantee, and updates the snapshot. Scope to one site
with --site.`,
	Run: func(cmd *cobra.Command, args []string) {
		siteID, _ := cmd.Flags().GetString("site")

		log := newLogger()
		defer log.Sync()

		c, err := newCrawler(cmd.Context(), log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

		fmt.Println("ℹ Starting permission collection...")
		result, err := c.CollectPermissions(context.Background(), siteID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✓ Permission collection complete (job %s)\n", result.JobID)
		fmt.Printf("  Resources: %d\n", result.Total)
		fmt.Printf("  Processed: %d\n", result.Processed)
		fmt.Printf("  With unique permissions: %d\n", result.UniqueFound)
		if result.Skipped > 0 {
			fmt.Printf("  Without permission data: %d\n", result.Skipped)
		}
		if result.Errors > 0 {
			fmt.Printf("  Errors:    %d (see logs)\n", result.Errors)
		}

		if outMgr, err := output.NewManager(); err == nil {
			if path, err := outMgr.SaveCrawlSummary("permissions", result); err == nil {
				fmt.Printf("\n✓ Summary saved to: %s\n", path)
			}
		}
	},
}

var collectStatusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show progress of a collection job",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			s, err := database.GetCollectionStatus(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load job: %v\n", err)
				os.Exit(1)
			}
			printStatus(s.JobID, s.Phase, s.Status, s.Processed, s.Total, s.Errors, s.Message)
			return
		}

		cfg, err := config.Get()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		s, err := database.LatestCollectionStatus(cfg.TenantID)
		if err != nil {
			fmt.Println("No collection jobs recorded")
			return
		}
		printStatus(s.JobID, s.Phase, s.Status, s.Processed, s.Total, s.Errors, s.Message)
	},
}

func printStatus(jobID, phase, status string, processed, total, errors int, message string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Job:\t%s\n", jobID)
	fmt.Fprintf(w, "Phase:\t%s\n", phase)
	fmt.Fprintf(w, "Status:\t%s\n", status)
	if total > 0 {
		fmt.Fprintf(w, "Progress:\t%d/%d\n", processed, total)
	} else {
		fmt.Fprintf(w, "Processed:\t%d\n", processed)
	}
	fmt.Fprintf(w, "Errors:\t%d\n", errors)
	if message != "" {
		fmt.Fprintf(w, "Message:\t%s\n", message)
	}
	w.Flush()
}

func init() {
	collectCmd.Flags().String("site", "", "Restrict collection to one site id")
	collectCmd.AddCommand(collectStatusCmd)
}
