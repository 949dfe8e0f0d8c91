package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/output"
	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Review the change ledger",
}

var changesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded changes",
	Run: func(cmd *cobra.Command, args []string) {
		siteID, _ := cmd.Flags().GetString("site")
		baselineID, _ := cmd.Flags().GetInt64("baseline-id")
		daysFlag, _ := cmd.Flags().GetInt("days")
		unreviewed, _ := cmd.Flags().GetBool("unreviewed")

		filter := database.ChangeFilter{
			SiteID:     siteID,
			BaselineID: baselineID,
		}
		if daysFlag > 0 {
			filter.Since = time.Now().Add(-time.Duration(daysFlag) * 24 * time.Hour)
		}
		if unreviewed {
			f := false
			filter.Reviewed = &f
		}

		changes, err := database.ListChanges(filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list changes: %v\n", err)
			os.Exit(1)
		}

		if len(changes) == 0 {
			fmt.Println("No changes found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tRESOURCE\tPRINCIPAL\tREVIEWED\tDETECTED")
		fmt.Fprintln(w, "--\t----\t--------\t---------\t--------\t--------")
		for _, change := range changes {
			reviewed := ""
			if change.Reviewed {
				reviewed = "✓"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				change.ID,
				change.ChangeType,
				truncate(change.ResourceName, 35),
				truncate(change.PrincipalName, 30),
				reviewed,
				change.DetectedAt.Format("2006-01-02 15:04"),
			)
		}
		w.Flush()
	},
}

var changesReviewCmd = &cobra.Command{
	Use:   "review <change_id>[,<change_id>...]",
	Short: "Mark changes as reviewed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reviewedBy, _ := cmd.Flags().GetString("by")
		notes, _ := cmd.Flags().GetString("notes")

		if reviewedBy == "" {
			fmt.Fprintf(os.Stderr, "Error: --by is required\n")
			os.Exit(1)
		}

		var ids []int64
		for _, part := range strings.Split(args[0], ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid change id: %s\n", part)
				os.Exit(1)
			}
			ids = append(ids, id)
		}

		flipped, err := database.MarkChangesReviewed(ids, reviewedBy, notes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to mark reviewed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("✓ Marked %d change(s) reviewed\n", flipped)
		if int(flipped) < len(ids) {
			fmt.Printf("  %d were already reviewed\n", len(ids)-int(flipped))
		}
	},
}

var changesReportCmd = &cobra.Command{
	Use:   "report <site_id>",
	Short: "Write a markdown change report for a site",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		siteID := args[0]
		daysFlag, _ := cmd.Flags().GetInt("days")

		filter := database.ChangeFilter{SiteID: siteID}
		if daysFlag > 0 {
			filter.Since = time.Now().Add(-time.Duration(daysFlag) * 24 * time.Hour)
		}

		changes, err := database.ListChanges(filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list changes: %v\n", err)
			os.Exit(1)
		}
		if len(changes) == 0 {
			fmt.Println("No changes to report")
			return
		}

		outMgr, err := output.NewManager()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to prepare output: %v\n", err)
			os.Exit(1)
		}
		path, err := outMgr.GenerateChangeReport(siteID, changes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Report written to: %s\n", path)
	},
}

func init() {
	changesListCmd.Flags().String("site", "", "Filter by site id")
	changesListCmd.Flags().Int64("baseline-id", 0, "Filter by baseline")
	changesListCmd.Flags().Int("days", 0, "Only changes from the last N days")
	changesListCmd.Flags().Bool("unreviewed", false, "Show only unreviewed changes")

	changesReviewCmd.Flags().String("by", "", "Reviewer name (required)")
	changesReviewCmd.Flags().String("notes", "", "Review notes")

	changesReportCmd.Flags().Int("days", 0, "Only changes from the last N days")

	changesCmd.AddCommand(changesListCmd)
	changesCmd.AddCommand(changesReviewCmd)
	changesCmd.AddCommand(changesReportCmd)
}
