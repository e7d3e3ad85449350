package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridfeed/internal/scheduler"
	"gridfeed/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the job scheduler",
	Long: `Starts the scheduler with the nightly ingestion job. A trigger
that fires while the previous run is still in flight is skipped, never
queued.

Example:
  go run ./cmd/gridfeed scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sched := scheduler.New(rt.log)

	ingestionJob := jobs.NewIngestionJob(rt.runner, rt.cal, rt.cfg, rt.log)
	if err := sched.AddJob(ingestionJob); err != nil {
		return err
	}

	sched.Start()

	PrintHeader("Scheduler")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  Job       : %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()

	PrintSeparator()
	for name, stats := range sched.GetJobStats() {
		fmt.Printf("  %s: %d runs, %.0f%% success\n", name, stats.TotalRuns, stats.SuccessRate*100)
	}

	PrintSuccess("Scheduler stopped")
	return nil
}
