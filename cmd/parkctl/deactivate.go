package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/curbdata/parking-aggregator/internal/domain"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <spot-id>",
	Short: "Hide a spot from queries without deleting its record",
	Long: `Deactivate marks a spot inactive in the store. Inactive spots are
invisible to availability queries, reports, and confirmations, but keep
their record; an ingestion run that re-observes the location reactivates
it.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeactivate,
}

func init() {
	deactivateCmd.Flags().String("reporter", "parkctl", "reporter identifier")
	deactivateCmd.Flags().Bool("json", false, "print the deactivated spot as JSON")
	rootCmd.AddCommand(deactivateCmd)
}

// deactivator is the store capability behind this command. Both bundled
// stores implement it; the domain port itself stays read/upsert-only.
type deactivator interface {
	Deactivate(ctx context.Context, id string) error
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	reporter, _ := cmd.Flags().GetString("reporter")
	asJSON, _ := cmd.Flags().GetBool("json")
	spotID := args[0]

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	store, ok := e.store.(deactivator)
	if !ok {
		return fmt.Errorf("store %T does not support deactivation", e.store)
	}

	spot, err := e.store.GetByID(cmd.Context(), spotID)
	if err != nil {
		return err
	}
	if err := store.Deactivate(cmd.Context(), spotID); err != nil {
		return err
	}

	// Best-effort event; the deactivation itself already succeeded.
	notifier, closeNotifier := newNotifier(e)
	defer closeNotifier() //nolint:errcheck // producer close on exit
	event := domain.SpotEvent{
		Type:       domain.EventSpotDeleted,
		Spot:       spot,
		ReporterID: reporter,
		OccurredAt: time.Now().UTC(),
	}
	if err := notifier.Publish(cmd.Context(), event); err != nil {
		e.logger.Error("event publish failed", "type", event.Type, "spot_id", spotID, "error", err)
	}

	if asJSON {
		return printJSON(spot)
	}
	fmt.Printf("spot %s deactivated\n", spotID)
	return nil
}
