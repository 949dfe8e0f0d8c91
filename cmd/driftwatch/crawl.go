package main

import (
	"context"
	"fmt"
	"os"

	"github.com/driftwatch/driftwatch/internal/output"
	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Discover the content hierarchy (structure pass)",
	Long: `Walks every site of the tenant (or one site with --site) and records
each discovered site, folder, and file. Run this before 'collect'.`,
	Run: func(cmd *cobra.Command, args []string) {
		siteID, _ := cmd.Flags().GetString("site")

		log := newLogger()
		defer log.Sync()

		c, err := newCrawler(cmd.Context(), log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

		fmt.Println("ℹ Starting structure crawl...")
		result, err := c.CrawlStructure(context.Background(), siteID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Crawl failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✓ Structure crawl complete (job %s)\n", result.JobID)
		fmt.Printf("  Sites:   %d\n", result.SitesFound)
		fmt.Printf("  Folders: %d\n", result.FoldersFound)
		fmt.Printf("  Files:   %d\n", result.FilesFound)
		if result.OrphansHealed > 0 {
			fmt.Printf("  Reparented orphans: %d\n", result.OrphansHealed)
		}
		if result.Errors > 0 {
			fmt.Printf("  Errors:    %d (see logs)\n", result.Errors)
		}

		if outMgr, err := output.NewManager(); err == nil {
			if path, err := outMgr.SaveCrawlSummary("structure", result); err == nil {
				fmt.Printf("\n✓ Summary saved to: %s\n", path)
			}
		}
	},
}

func init() {
	crawlCmd.Flags().String("site", "", "Restrict the crawl to one site id")
}
