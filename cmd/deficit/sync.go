// ABOUTME: CLI commands for Charm-based sync when the charm backend is selected.
// ABOUTME: Supports link, unlink, status, now, reset, and wipe operations.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/charm"
	"github.com/harperreed/deficit/internal/config"
	"github.com/harperreed/deficit/internal/storage"
)

var errNotCharm = errors.New("sync needs the charm backend: set \"backend\": \"charm\" in the config or DEFICIT_BACKEND=charm")

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync the ledger across devices",
	Long: `Sync the ledger across devices using Charm Cloud.

Only available with the charm backend. Your data is E2E encrypted with
your SSH key before upload.

COMMANDS:

  link        Link this device to your Charm account
  unlink      Disconnect this device from Charm
  status      Show sync status and account info
  now         Pull and push immediately
  reset       Reset local data and restore from cloud (destructive)
  wipe        Delete cloud and local data (destructive)

Data syncs automatically after each write.`,
}

// charmStore returns the open store as a Charm client.
func charmStore() (*charm.Client, error) {
	c, ok := store.(*charm.Client)
	if !ok {
		return nil, errNotCharm
	}
	return c, nil
}

func runCharm(args ...string) error {
	c := exec.Command("charm", args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

var syncLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link this device to Charm",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := charmStore()
		if err != nil {
			return err
		}
		if err := runCharm("link"); err != nil {
			return fmt.Errorf("failed to link: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}

		color.Green("\n✓ Device linked to Charm")
		if err := client.Sync(); err != nil {
			color.Yellow("⚠ Initial sync failed: %v", err)
		} else {
			color.Green("✓ Initial sync complete")
		}
		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Disconnect from Charm",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := charmStore(); err != nil {
			return err
		}
		if err := runCharm("unlink"); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}
		color.Green("✓ Device unlinked from Charm")
		fmt.Println("Your local data is preserved.")
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := charmStore()
		if err != nil {
			return err
		}

		id, err := client.ID()
		if err != nil {
			color.Yellow("Not linked to Charm")
			fmt.Println("\nRun 'deficit sync link' to connect to Charm.")
			return nil
		}

		days, _ := store.Entries(storage.DailyPrefix)
		meals, _ := store.Entries(storage.FoodPrefix)

		fmt.Println("Charm ID:", id)
		if client.IsReadOnly() {
			color.Yellow("Read-only: another process holds the database")
		}
		color.Green("✓ Connected to Charm")
		fmt.Printf("  Days:  %d\n", len(days))
		fmt.Printf("  Meals: %d\n", len(meals))
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Sync immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := charmStore()
		if err != nil {
			return err
		}
		if err := client.Sync(); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		color.Green("✓ Synced")
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Rebuild local data from the cloud",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := charmStore()
		if err != nil {
			return err
		}
		if !confirm("This will DELETE local data and restore it from Charm Cloud.", "reset") {
			return nil
		}
		if err := client.Reset(); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		color.Green("✓ Local data restored from cloud")
		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all cloud and local data",
	Annotations: map[string]string{
		"store": "none",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GetBackend() != config.BackendCharm {
			return errNotCharm
		}
		if !confirm("This will PERMANENTLY DELETE all cloud backups and local data.", "wipe") {
			return nil
		}

		cloud, local, err := charm.Wipe()
		if err != nil {
			return fmt.Errorf("wipe failed: %w", err)
		}
		color.Green("✓ Data wiped successfully")
		fmt.Printf("  Cloud backups deleted: %d\n", cloud)
		fmt.Printf("  Local files deleted: %d\n", local)
		return nil
	},
}

// confirm asks the user to type word before a destructive operation.
func confirm(warning, word string) bool {
	fmt.Println(warning)
	fmt.Printf("Type '%s' to confirm: ", word)
	var answer string
	_, _ = fmt.Scanln(&answer)
	if answer != word {
		fmt.Println("Canceled.")
		return false
	}
	return true
}

func init() {
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncUnlinkCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncResetCmd)
	syncCmd.AddCommand(syncWipeCmd)
	rootCmd.AddCommand(syncCmd)
}
