package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure DriftWatch credentials",
	Long: `Interactive setup wizard for configuring DriftWatch.

This command will guide you through setting up:
- Content API credentials (tenant id, client id, client secret)
- SMTP settings for notification delivery

Settings are stored in ~/.driftwatch/config.json. Environment variables
(DRIFTWATCH_*, SMTP_*) override the file at runtime.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("DriftWatch Setup")
		fmt.Println("================")
		fmt.Println()

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not load existing config: %v\n", err)
			cfg = &config.Config{}
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Content API")
		fmt.Println("-----------")
		fmt.Println("App registration with Sites.Read.All application permission.")
		prompt(reader, "Tenant ID", &cfg.TenantID, false)
		prompt(reader, "Client ID", &cfg.ClientID, false)
		prompt(reader, "Client secret", &cfg.ClientSecret, true)
		fmt.Println()

		fmt.Println("SMTP Delivery")
		fmt.Println("-------------")
		fmt.Println("Used to deliver change notifications. Leave blank to skip.")
		prompt(reader, "SMTP host", &cfg.SMTPHost, false)
		prompt(reader, "SMTP port (465 for implicit TLS)", &cfg.SMTPPort, false)
		prompt(reader, "SMTP user", &cfg.SMTPUser, false)
		prompt(reader, "SMTP password", &cfg.SMTPPassword, true)
		prompt(reader, "From address", &cfg.SMTPFrom, false)
		fmt.Println()

		if err := config.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save configuration: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Configuration saved successfully!")
		fmt.Printf("Config file: %s\n", config.GetConfigPath())
		fmt.Println()

		fmt.Println("Configured Services:")
		if config.HasGraphConfigured() {
			fmt.Println("  [x] Content API")
		} else {
			fmt.Println("  [ ] Content API")
		}
		if config.HasSMTPConfigured() {
			fmt.Println("  [x] SMTP delivery")
		} else {
			fmt.Println("  [ ] SMTP delivery")
		}

		fmt.Println()
		if config.HasGraphConfigured() {
			fmt.Println("Ready to crawl. Start with: driftwatch crawl")
		} else {
			fmt.Println("Note: Content API credentials are required for crawling.")
		}
	},
}

// prompt shows the current value masked when secret and updates it in place
// unless the answer is blank.
func prompt(reader *bufio.Reader, label string, dst *string, secret bool) {
	current := "Not configured"
	if *dst != "" {
		if secret {
			current = mask(*dst)
		} else {
			current = *dst
		}
	}
	fmt.Printf("%s [%s]: ", label, current)

	value, _ := reader.ReadString('\n')
	value = strings.TrimSpace(value)
	if value != "" {
		*dst = value
	}
}

func mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
