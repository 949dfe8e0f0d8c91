package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/notify"
	"github.com/spf13/cobra"
)

var recipientCmd = &cobra.Command{
	Use:   "recipient",
	Short: "Manage notification recipients",
}

var recipientAddCmd = &cobra.Command{
	Use:     "add <email>",
	Aliases: []string{"update"},
	Short:   "Subscribe an email address, or update an existing subscription",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email := args[0]
		name, _ := cmd.Flags().GetString("name")
		site, _ := cmd.Flags().GetString("site")
		frequency, _ := cmd.Flags().GetString("frequency")
		types, _ := cmd.Flags().GetStringSlice("types")

		if frequency != "immediate" && frequency != "daily" {
			fmt.Fprintf(os.Stderr, "Error: --frequency must be immediate or daily\n")
			os.Exit(1)
		}

		typesJSON := ""
		if len(types) > 0 {
			data, err := json.Marshal(types)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid types: %v\n", err)
				os.Exit(1)
			}
			typesJSON = string(data)
		}

		var siteID *string
		if site != "" {
			siteID = &site
		}

		recipient := &models.Recipient{
			SiteID:            siteID,
			RecipientEmail:    email,
			RecipientName:     name,
			NotificationTypes: typesJSON,
			Frequency:         frequency,
		}
		if err := database.UpsertRecipient(recipient); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to add recipient: %v\n", err)
			os.Exit(1)
		}

		scope := "all sites"
		if site != "" {
			scope = "site " + site
		}
		fmt.Printf("✓ Subscribed %s (%s, %s)\n", email, scope, frequency)
	},
}

var recipientRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Unsubscribe an email address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email := args[0]
		site, _ := cmd.Flags().GetString("site")

		var siteID *string
		if site != "" {
			siteID = &site
		}

		if err := database.DeactivateRecipient(email, siteID); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to remove recipient: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Unsubscribed %s\n", email)
	},
}

var recipientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipients",
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		recipients, err := database.ListRecipients(!all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list recipients: %v\n", err)
			os.Exit(1)
		}

		if len(recipients) == 0 {
			fmt.Println("No recipients configured")
			fmt.Printf("Add one with: driftwatch recipient add <email> --types %s\n", notify.TypePermissionChange)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tSCOPE\tFREQUENCY\tTYPES\tACTIVE")
		fmt.Fprintln(w, "-----\t----\t-----\t---------\t-----\t------")
		for _, r := range recipients {
			scope := "all sites"
			if r.SiteID != nil {
				scope = truncate(*r.SiteID, 30)
			}
			types := r.NotificationTypes
			if types == "" {
				types = "all"
			}
			active := ""
			if r.IsActive {
				active = "✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.RecipientEmail, r.RecipientName, scope, r.Frequency, truncate(types, 40), active)
		}
		w.Flush()
	},
}

func init() {
	recipientAddCmd.Flags().StringP("name", "n", "", "Recipient display name")
	recipientAddCmd.Flags().String("site", "", "Limit subscription to one site id")
	recipientAddCmd.Flags().String("frequency", "immediate", "Delivery frequency: immediate or daily")
	recipientAddCmd.Flags().StringSlice("types", nil, "Notification types (default: all)")

	recipientRemoveCmd.Flags().String("site", "", "Site-scoped subscription to remove")

	recipientListCmd.Flags().Bool("all", false, "Include inactive recipients")

	recipientCmd.AddCommand(recipientAddCmd)
	recipientCmd.AddCommand(recipientRemoveCmd)
	recipientCmd.AddCommand(recipientListCmd)
}
