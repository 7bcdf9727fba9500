package scheduled

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/denysvitali/ha-smartcharge/cmd/root"
	"github.com/denysvitali/ha-smartcharge/cmd/run"
	"github.com/denysvitali/ha-smartcharge/smartcharge"
)

var (
	cronSchedule string
	dryRun       bool
)

var ScheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "Run the charging decision on a cron schedule",
	Long: `Keep running and repeat the charging decision according to a cron
schedule. Useful in containers where no system cron is available.`,
	Example: `  # Five minutes past every hour (default)
  ha-smartcharge scheduled

  # Every 15 minutes
  ha-smartcharge scheduled --cron "*/15 * * * *"`,
	RunE: runScheduled,
}

func init() {
	ScheduledCmd.Flags().StringVar(&cronSchedule, "cron", "5 * * * *", "cron schedule")
	ScheduledCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the command instead of sending it to Home Assistant")

	root.RootCmd.AddCommand(ScheduledCmd)
}

func runScheduled(cmd *cobra.Command, args []string) error {
	waitForTimeSync()

	service, err := root.NewService(smartcharge.WithDryRun(dryRun))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer func() { _ = s.Shutdown() }()

	job, err := s.NewJob(
		gocron.CronJob(cronSchedule, false),
		gocron.NewTask(func() {
			run.RunOnce(ctx, service)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	log := root.GetLogger()
	log.Infof("Starting scheduled smart charging with cron: %s", cronSchedule)
	s.Start()

	if next, err := job.NextRun(); err == nil {
		log.Infof("Next run at %s", next.Format(time.DateTime))
	}

	<-ctx.Done()
	log.Info("Shutting down scheduler")
	return nil
}

// waitForTimeSync blocks until the clock looks set; price lookups are
// keyed by date.
func waitForTimeSync() {
	epochPlus1Year := time.Unix(0, 0).Add(365 * 24 * time.Hour)
	for time.Now().Before(epochPlus1Year) {
		root.GetLogger().Debug("Waiting for time to be set...")
		time.Sleep(1 * time.Second)
	}
}
