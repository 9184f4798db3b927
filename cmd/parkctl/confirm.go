package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <spot-id>",
	Short: "Confirm a discovered spot exists",
	Long: `Confirm adds one confirmation to a spot. A spot that collects enough
confirmations is promoted to verified and its confidence raised to match
surveyed sources.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfirm,
}

func init() {
	confirmCmd.Flags().String("reporter", "parkctl", "reporter identifier")
	confirmCmd.Flags().Bool("json", false, "print the updated spot as JSON")
	rootCmd.AddCommand(confirmCmd)
}

func runConfirm(cmd *cobra.Command, args []string) error {
	reporter, _ := cmd.Flags().GetString("reporter")
	asJSON, _ := cmd.Flags().GetBool("json")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	svc, closeNotifier := newDiscovery(e)
	defer closeNotifier() //nolint:errcheck // producer close on exit

	spot, err := svc.Confirm(cmd.Context(), args[0], reporter)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(spot)
	}

	state := "unverified"
	if spot.Verified {
		state = "verified"
	}
	fmt.Printf("spot %s: %d confirmation(s), %s (confidence %.2f)\n",
		spot.ID, spot.UserConfirmations, state, spot.Confidence)
	return nil
}
