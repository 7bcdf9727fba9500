package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/denysvitali/ha-smartcharge/cmd/root"
	"github.com/denysvitali/ha-smartcharge/smartcharge"
)

var (
	dryRun     bool
	jsonOutput bool
)

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Decide once whether the EV should charge now",
	Long: `Read the charger and battery state from Home Assistant, compare the
current hour against the cheapest hours before departure and switch the
charger on or off accordingly. Meant to be invoked hourly by cron.`,
	Example: `  # Hourly from cron
  5 * * * * ha-smartcharge run

  # See what would happen without touching the charger
  ha-smartcharge run --dry-run --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := root.NewService(smartcharge.WithDryRun(dryRun))
		if err != nil {
			return err
		}

		decision, err := service.Run(cmd.Context(), time.Now())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		}
		fmt.Printf("%s: %s\n", decision.Outcome, decision.Reason)
		return nil
	},
}

func init() {
	RunCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the command instead of sending it to Home Assistant")
	RunCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the decision as JSON")

	root.RootCmd.AddCommand(RunCmd)
}

// RunOnce is used by the scheduled command: one pass, errors logged.
func RunOnce(ctx context.Context, service *smartcharge.Service) {
	if _, err := service.Run(ctx, time.Now()); err != nil {
		root.GetLogger().Errorf("Smart charge run failed: %v", err)
	}
}
