package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const statusRetention = 24 * time.Hour

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous detection and notification delivery",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: `Runs until interrupted:
- change detection across monitored sites on the detection interval
- notification queue delivery on the notification interval
- daily digests and progress-record cleanup once a day

Intervals come from the config file or CHANGE_DETECTION_INTERVAL and
NOTIFICATION_CHECK_INTERVAL (seconds).`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Get()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}

		log := newLogger()
		defer log.Sync()

		detectSvc := newDetectService(log)
		notifySvc := newNotifyService(log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		detectionInterval := time.Duration(cfg.DetectionIntervalSeconds) * time.Second
		notifyInterval := time.Duration(cfg.NotificationIntervalSeconds) * time.Second

		fmt.Printf("Daemon started (detection every %s, delivery every %s)\n",
			detectionInterval, notifyInterval)

		detectTicker := time.NewTicker(detectionInterval)
		defer detectTicker.Stop()
		notifyTicker := time.NewTicker(notifyInterval)
		defer notifyTicker.Stop()
		dailyTicker := time.NewTicker(24 * time.Hour)
		defer dailyTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nDaemon stopped")
				return

			case <-detectTicker.C:
				results, err := detectSvc.DetectAll()
				if err != nil {
					log.Error("detection run had failures", zap.Error(err))
				}
				for _, r := range results {
					if r.ChangesLogged > 0 {
						log.Info("changes recorded",
							zap.String("site_id", r.SiteID), zap.Int("changes", r.ChangesLogged))
					}
				}

			case <-notifyTicker.C:
				if notifySvc == nil {
					continue
				}
				sent, failed, err := notifySvc.ProcessQueue(ctx, 50)
				if err != nil {
					log.Error("queue processing failed", zap.Error(err))
				}
				if sent > 0 || failed > 0 {
					log.Info("queue processed", zap.Int("sent", sent), zap.Int("failed", failed))
				}

			case <-dailyTicker.C:
				if notifySvc != nil {
					if queued, err := notifySvc.SendDigests(time.Now().Add(-24 * time.Hour)); err != nil {
						log.Error("digest queueing failed", zap.Error(err))
					} else if queued > 0 {
						log.Info("digests queued", zap.Int("count", queued))
					}
				}
				if pruned, err := database.PruneCollectionStatuses(statusRetention); err != nil {
					log.Warn("status pruning failed", zap.Error(err))
				} else if pruned > 0 {
					log.Info("old progress records pruned", zap.Int64("count", pruned))
				}
			}
		}
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
}
