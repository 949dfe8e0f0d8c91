package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage the notification queue",
}

var notifyProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Deliver due notifications",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		log := newLogger()
		defer log.Sync()

		svc := newNotifyService(log)
		if svc == nil {
			fmt.Fprintf(os.Stderr, "SMTP not configured; set SMTP_HOST, SMTP_USER, SMTP_PASSWORD\n")
			os.Exit(1)
		}

		sent, failed, err := svc.ProcessQueue(context.Background(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Queue processing failed: %v\n", err)
			os.Exit(1)
		}

		if sent == 0 && failed == 0 {
			fmt.Println("No notifications due")
			return
		}
		fmt.Printf("✓ Sent %d notification(s)", sent)
		if failed > 0 {
			fmt.Printf(", %d failed (rescheduled or exhausted)", failed)
		}
		fmt.Println()
	},
}

var notifyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue contents",
	Run: func(cmd *cobra.Command, args []string) {
		statusFlag, _ := cmd.Flags().GetString("filter")
		sinceHours, _ := cmd.Flags().GetInt("since-hours")

		var since time.Time
		if sinceHours > 0 {
			since = time.Now().Add(-time.Duration(sinceHours) * time.Hour)
		}

		jobs, err := database.ListNotifications(models.NotificationStatus(statusFlag), since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list notifications: %v\n", err)
			os.Exit(1)
		}

		if len(jobs) == 0 {
			fmt.Println("Notification queue is empty")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRECIPIENT\tSUBJECT\tSTATUS\tRETRIES\tSCHEDULED")
		fmt.Fprintln(w, "--\t---------\t-------\t------\t-------\t---------")
		for _, job := range jobs {
			retries := fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries)
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				job.ID,
				job.RecipientEmail,
				truncate(job.Subject, 40),
				job.Status,
				retries,
				job.ScheduledFor.Format("2006-01-02 15:04"),
			)
		}
		w.Flush()
	},
}

func init() {
	notifyProcessCmd.Flags().Int("limit", 50, "Maximum deliveries per run")

	notifyStatusCmd.Flags().String("filter", "", "Filter by status: pending, sending, sent, failed")
	notifyStatusCmd.Flags().Int("since-hours", 0, "Only jobs created in the last N hours")

	notifyCmd.AddCommand(notifyProcessCmd)
	notifyCmd.AddCommand(notifyStatusCmd)
}
