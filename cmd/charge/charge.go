package charge

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/denysvitali/ha-smartcharge/cmd/root"
)

var ChargeCmd = &cobra.Command{
	Use:       "charge [on|off]",
	Short:     "Turn the charger switch on or off",
	Long:      `Manually switch the EV charger through Home Assistant, bypassing the price decision.`,
	Example:   `  ha-smartcharge charge on`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		hub, err := root.NewHub()
		if err != nil {
			return err
		}

		on := args[0] == "on"
		log := root.GetLogger()
		log.Debugf("Turning charging %s", args[0])

		if err := hub.SetCharging(cmd.Context(), on); err != nil {
			return fmt.Errorf("failed to turn charging %s: %w", args[0], err)
		}

		fmt.Printf("✅ Charging turned %s\n", args[0])
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(ChargeCmd)
}
