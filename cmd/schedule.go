package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/batch"
	"github.com/spigell/strivebot/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run batches periodically without confirmation",
	PreRun: func(cmd *cobra.Command, _ []string) {
		viper.BindPFlag("export.enabled", cmd.Flags().Lookup("export"))
	},
	Run: func(_ *cobra.Command, _ []string) {
		runSchedule()
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringP("spec", "s", "", "cron spec or descriptor, e.g. \"@every 6h\"")
	scheduleCmd.Flags().Bool("run-on-start", true, "run a batch immediately")
	scheduleCmd.Flags().Bool("export", false, "export processed postings to delimited files")

	viper.BindPFlag("schedule.spec", scheduleCmd.Flags().Lookup("spec"))
	viper.BindPFlag("schedule.run-on-start", scheduleCmd.Flags().Lookup("run-on-start"))
}

func runSchedule() {
	logger, config := setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the application", zap.Error(err))
	}
	defer a.Close()

	scheduler, err := schedule.New(config.Schedule.Spec, config.Schedule.RunOnStart, a.scheduledRun, logger)
	if err != nil {
		logger.Fatal("creating the scheduler", zap.Error(err))
	}

	logger.Info("starting the strivebot scheduler", zap.String("version", version))
	scheduler.Run(ctx)
}

// scheduledRun reloads both sources so edits between runs are picked up.
func (a *application) scheduledRun(ctx context.Context) error {
	if err := a.loadCandidates(ctx); err != nil {
		return err
	}

	postings, err := a.loadJobs(ctx)
	if err != nil {
		return err
	}

	postings, err = a.filters(false).RunFilters(ctx, postings)
	if err != nil {
		return fmt.Errorf("filtering: %w", err)
	}
	if postings.Len() == 0 {
		a.logger.Info("nothing to process", zap.String("reason", "no postings left after filters"))
		return nil
	}

	last, err := a.runBatch(batchContext(ctx), postings)
	var running *batch.AlreadyRunningError
	if errors.As(err, &running) {
		a.logger.Warn("previous batch is still running, skipping", zap.String("state", string(running.State)))
		return nil
	}
	if err != nil {
		return err
	}

	if last.Summary != nil && last.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d postings failed", last.Summary.Failed, last.Summary.Jobs)
	}
	return nil
}

// batchContext detaches a batch from the scheduler's signal context. The
// first interrupt stops the scheduler and asks the orchestrator to finish the
// current job; only a second interrupt aborts in-flight calls.
func batchContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
