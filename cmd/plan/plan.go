package plan

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/denysvitali/ha-smartcharge/cmd/root"
	"github.com/denysvitali/ha-smartcharge/prices"
	"github.com/denysvitali/ha-smartcharge/smartcharge"
)

var batteryPercent int

var (
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the cheapest hours until the next departure",
	Long: `Fetch the prices and the battery level and print the reachable hours
until the next departure, marking the ones that would be used for charging.
No command is sent to Home Assistant and the smart charging flag is ignored.`,
	Example: `  # Plan with the battery level reported by Home Assistant
  ha-smartcharge plan

  # Plan for a given battery level
  ha-smartcharge plan --battery 35`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := root.NewService()
		if err != nil {
			return err
		}

		var battery *int
		if cmd.Flags().Changed("battery") {
			if batteryPercent < 0 || batteryPercent > 100 {
				return fmt.Errorf("--battery must be between 0 and 100")
			}
			battery = &batteryPercent
		}

		p, err := service.Plan(cmd.Context(), time.Now(), battery)
		if err != nil {
			return err
		}

		printPlan(p)
		return nil
	},
}

func init() {
	PlanCmd.Flags().IntVar(&batteryPercent, "battery", 0, "battery level in percent (default: read from Home Assistant)")

	root.RootCmd.AddCommand(PlanCmd)
}

// printPlan prints the reachable hours using lipgloss's table
func printPlan(p *smartcharge.Plan) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Charging plan at %s", p.Now.Format("2006-01-02 15:04"))))
	fmt.Printf("Hours to departure: %d, hours needed: %d\n\n", p.Window.HoursAvailable, p.Window.HoursNeeded)

	if p.Window.MustChargeNow() {
		fmt.Println(selectedStyle.Render("Too few hours available, charging would start immediately"))
		fmt.Println()
	}

	var rows [][]string
	for _, pt := range p.Reachable {
		day := "today"
		if pt.Day == prices.Tomorrow {
			day = "tomorrow"
		}
		charge := "-"
		if p.Selected(pt) {
			charge = "✅"
		}
		rows = append(rows, []string{
			day,
			fmt.Sprintf("%02d:00", pt.Hour),
			fmt.Sprintf("%.4f", pt.Price),
			charge,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("DAY", "HOUR", "SEK/kWh", "CHARGE").
		StyleFunc(func(row, col int) lipgloss.Style {
			baseStyle := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return baseStyle.Bold(true)
			}
			if row >= 0 && row < len(rows) && rows[row][3] == "-" {
				return baseStyle.Inherit(dimStyle)
			}
			if col > 1 {
				return baseStyle.AlignHorizontal(lipgloss.Center)
			}
			return baseStyle
		}).
		Rows(rows...)

	fmt.Println(t)
}
