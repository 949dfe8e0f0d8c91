package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/driftwatch/driftwatch/internal/baseline"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/spf13/cobra"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage approved permission baselines",
}

var baselineCreateCmd = &cobra.Command{
	Use:   "create <site_id>",
	Short: "Freeze the site's current permissions as a baseline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		siteID := args[0]
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		createdBy, _ := cmd.Flags().GetString("created-by")
		activate, _ := cmd.Flags().GetBool("activate")

		if name == "" {
			fmt.Fprintf(os.Stderr, "Error: --name is required\n")
			os.Exit(1)
		}

		log := newLogger()
		defer log.Sync()

		mgr := newBaselineManager(log)
		b, err := mgr.Create(baseline.CreateOptions{
			SiteID:      siteID,
			Name:        name,
			Description: description,
			CreatedBy:   createdBy,
			Activate:    activate,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create baseline: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("✓ Created baseline: %s (ID: %d)\n", b.BaselineName, b.ID)
		if stats, err := mgr.Stats(b.ID); err == nil {
			fmt.Printf("  %d permissions across %d resources (%d principals)\n",
				stats.TotalPermissions, stats.UniqueResources, stats.UniquePrincipals)
		}
		if activate {
			fmt.Println("  Baseline is now active; 'detect' will monitor this site")
		}
	},
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List baselines",
	Run: func(cmd *cobra.Command, args []string) {
		siteID, _ := cmd.Flags().GetString("site")
		all, _ := cmd.Flags().GetBool("all")

		baselines, err := database.ListBaselines(siteID, all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list baselines: %v\n", err)
			os.Exit(1)
		}

		if len(baselines) == 0 {
			fmt.Println("No baselines found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSITE\tACTIVE\tCREATED BY\tCREATED")
		fmt.Fprintln(w, "--\t----\t----\t------\t----------\t-------")
		for _, b := range baselines {
			active := ""
			if b.IsActive {
				active = "✓"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				b.ID,
				truncate(b.BaselineName, 30),
				truncate(b.SiteID, 30),
				active,
				b.CreatedBy,
				b.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		w.Flush()
	},
}

var baselineShowCmd = &cobra.Command{
	Use:   "show <baseline_id>",
	Short: "Show baseline statistics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		stats, err := newBaselineManager(log).Stats(parseID(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load baseline: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Baseline:\t%d\n", stats.BaselineID)
		fmt.Fprintf(w, "Site:\t%s\n", stats.SiteID)
		fmt.Fprintf(w, "Captured:\t%s\n", stats.CapturedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Permissions:\t%d\n", stats.TotalPermissions)
		fmt.Fprintf(w, "Resources:\t%d\n", stats.UniqueResources)
		fmt.Fprintf(w, "Principals:\t%d (%d users, %d groups)\n",
			stats.UniquePrincipals, stats.UserCount, stats.GroupCount)
		fmt.Fprintf(w, "Broken inheritance:\t%d resource(s)\n", stats.BrokenInheritance)
		w.Flush()

		if len(stats.PermissionLevels) > 0 {
			fmt.Println("\nPermission levels:")
			for level, count := range stats.PermissionLevels {
				fmt.Printf("  %s: %d\n", level, count)
			}
		}
	},
}

var baselineCompareCmd = &cobra.Command{
	Use:   "compare <baseline_id>",
	Short: "Compare a baseline against the current snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		result, err := newBaselineManager(log).Compare(parseID(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Comparison failed: %v\n", err)
			os.Exit(1)
		}

		s := result.Summary
		fmt.Printf("Baseline permissions: %d\n", s.TotalBaseline)
		fmt.Printf("Current permissions:  %d\n", s.TotalCurrent)
		fmt.Println()
		if !s.HasChanges() {
			fmt.Println("✓ No changes detected")
			return
		}

		fmt.Printf("⚠ Changes detected: %d added, %d removed, %d modified (%d unchanged)\n",
			s.AddedCount, s.RemovedCount, s.ModifiedCount, s.UnchangedCount)

		for _, e := range result.Added {
			fmt.Printf("  + %s: %s (%s)\n", e.ResourceName, e.PrincipalName, e.PermissionLevel)
		}
		for _, e := range result.Removed {
			fmt.Printf("  - %s: %s (%s)\n", e.ResourceName, e.PrincipalName, e.PermissionLevel)
		}
		for _, m := range result.Modified {
			if m.InheritanceOnly() {
				state := "restored"
				if m.NewInheritance {
					state = "broken"
				}
				fmt.Printf("  ~ %s: %s (inheritance %s)\n", m.ResourceName, m.PrincipalName, state)
				continue
			}
			fmt.Printf("  ~ %s: %s (%s -> %s)\n",
				m.ResourceName, m.PrincipalName, m.OldPermissionLevel, m.NewPermissionLevel)
		}
	},
}

var baselineActivateCmd = &cobra.Command{
	Use:   "activate <baseline_id>",
	Short: "Make a baseline the site's active one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		b, err := newBaselineManager(log).Activate(parseID(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to activate baseline: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Activated baseline %d for site %s\n", b.ID, b.SiteID)
	},
}

var baselineDeactivateCmd = &cobra.Command{
	Use:   "deactivate <baseline_id>",
	Short: "Deactivate a baseline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		b, err := newBaselineManager(log).Deactivate(parseID(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to deactivate baseline: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Deactivated baseline %d; site %s is no longer monitored\n", b.ID, b.SiteID)
	},
}

var baselineDeleteCmd = &cobra.Command{
	Use:   "delete <baseline_id>",
	Short: "Delete a baseline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		defer log.Sync()

		id := parseID(args[0])
		if err := newBaselineManager(log).Delete(id); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete baseline: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Deleted baseline %d\n", id)
	},
}

func init() {
	baselineCreateCmd.Flags().StringP("name", "n", "", "Baseline name (required)")
	baselineCreateCmd.Flags().StringP("description", "d", "", "Baseline description")
	baselineCreateCmd.Flags().String("created-by", "", "Who approved this baseline")
	baselineCreateCmd.Flags().Bool("activate", true, "Activate immediately (--activate=false to keep inactive)")

	baselineListCmd.Flags().String("site", "", "Filter by site id")
	baselineListCmd.Flags().Bool("all", true, "Include inactive baselines (--all=false for active only)")

	baselineCmd.AddCommand(baselineCreateCmd)
	baselineCmd.AddCommand(baselineListCmd)
	baselineCmd.AddCommand(baselineShowCmd)
	baselineCmd.AddCommand(baselineCompareCmd)
	baselineCmd.AddCommand(baselineActivateCmd)
	baselineCmd.AddCommand(baselineDeactivateCmd)
	baselineCmd.AddCommand(baselineDeleteCmd)
}
