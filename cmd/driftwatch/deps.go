package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/driftwatch/driftwatch/internal/baseline"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/crawler"
	"github.com/driftwatch/driftwatch/internal/detect"
	"github.com/driftwatch/driftwatch/internal/graph"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/notify"
	"go.uber.org/zap"
)

// Shared constructors for the command layer. Each command builds only what it
// needs; nothing here touches the network until a pass actually runs.

func newLogger() *zap.Logger {
	return logging.New(verboseFlag)
}

func newCrawler(ctx context.Context, log *zap.Logger) (*crawler.Crawler, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}
	if !config.HasGraphConfigured() {
		return nil, fmt.Errorf("content API credentials not configured; run: driftwatch setup")
	}

	client := graph.NewClient(ctx, graph.Config{
		TenantID:     cfg.TenantID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, log)

	return crawler.New(client, crawler.DefaultConfig(cfg.TenantID), log), nil
}

func newBaselineManager(log *zap.Logger) *baseline.Manager {
	return baseline.NewManager(log)
}

// newNotifyService returns nil when SMTP is not configured; callers treat a
// nil notifier as "record changes, send nothing".
func newNotifyService(log *zap.Logger) *notify.Service {
	if !config.HasSMTPConfigured() {
		return nil
	}
	cfg, err := config.Get()
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil || port <= 0 {
		port = 465
	}
	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     port,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	return notify.NewService(sender, log)
}

func newDetectService(log *zap.Logger) *detect.Service {
	return detect.NewService(newBaselineManager(log), newNotifyService(log), log)
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid id: %s\n", arg)
		os.Exit(1)
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
