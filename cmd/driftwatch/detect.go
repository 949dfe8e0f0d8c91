package main

import (
	"fmt"
	"os"

	"github.com/driftwatch/driftwatch/internal/detect"
	"github.com/driftwatch/driftwatch/internal/notify"
	"github.com/driftwatch/driftwatch/internal/output"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect permission drift against active baselines",
	Long: `Compares each monitored site's current permission snapshot against its
active baseline and records every difference in the change ledger. With
--notify, new changes are also queued for delivery to matching recipients.

Detect one site with --site, or every monitored site by default.`,
	Run: func(cmd *cobra.Command, args []string) {
		siteID, _ := cmd.Flags().GetString("site")
		notifyFlag, _ := cmd.Flags().GetBool("notify")

		log := newLogger()
		defer log.Sync()

		var notifier *notify.Service
		if notifyFlag {
			if notifier = newNotifyService(log); notifier == nil {
				fmt.Fprintln(os.Stderr, "Warning: SMTP not configured; changes will be recorded without notifications")
			}
		}
		svc := detect.NewService(newBaselineManager(log), notifier, log)

		var results []detect.SiteResult
		if siteID != "" {
			r, err := svc.DetectSite(siteID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
				os.Exit(1)
			}
			results = []detect.SiteResult{*r}
		} else {
			var err error
			results, err = svc.DetectAll()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}

		if len(results) == 0 {
			fmt.Println("No sites with active baselines; create one with 'baseline create --activate'")
			return
		}

		outMgr, _ := output.NewManager()
		for _, r := range results {
			switch r.Outcome {
			case detect.OutcomeNoBaseline:
				fmt.Printf("- %s: no active baseline\n", r.SiteID)
			case detect.OutcomeNoChanges:
				fmt.Printf("✓ %s: no changes\n", r.SiteID)
			case detect.OutcomeChangesDetected:
				fmt.Printf("⚠ %s: %d change(s) recorded (%d added, %d removed, %d modified)\n",
					r.SiteID, r.ChangesLogged,
					r.Summary.AddedCount, r.Summary.RemovedCount, r.Summary.ModifiedCount)
				if r.Notified > 0 {
					fmt.Printf("  Queued %d notification(s)\n", r.Notified)
				}
			}

			if outMgr != nil {
				hasChanges := r.Outcome == detect.OutcomeChangesDetected
				if path, err := outMgr.SaveDetectionResult(r.SiteID, r, hasChanges); err == nil && hasChanges {
					fmt.Printf("  Result saved to: %s\n", path)
				}
			}
		}
	},
}

func init() {
	detectCmd.Flags().String("site", "", "Detect a single site")
	detectCmd.Flags().Bool("notify", false, "Queue notifications for new changes")
}
