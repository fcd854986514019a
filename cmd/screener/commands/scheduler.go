package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astock-tools/screener/internal/scheduler"
	"github.com/astock-tools/screener/internal/scheduler/jobs"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the nightly ingest and screening jobs",
	Long: `Starts the cron scheduler and blocks until interrupted.

Jobs:
  daily_ingest     weekdays 17:30  instrument sync + bar top-up
  daily_screening  weekdays 18:30  rps, trend and combined strategies

Example:
  go run ./cmd/screener scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	s := scheduler.New(a.log)
	if err := s.AddJob(jobs.NewIngestJob(a.collector, a.cfg.Provider, a.log)); err != nil {
		return err
	}
	if err := s.AddJob(jobs.NewScreeningJob(a.runner, a.log)); err != nil {
		return err
	}

	s.Start()
	defer s.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.log.WithField("signal", sig.String()).Info("Shutdown signal received")

	return nil
}
