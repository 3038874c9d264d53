package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dnguyenv/conductor/internal/control"
	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/pipeline/runner"
)

var (
	jobName     string
	startFlag   string
	endFlag     string
	noResume    bool
	workers     int
	backfillOpt bool
	forceFlag   bool
	noTimeouts  bool
	retryFailed bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the execution plan over a date or date range",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&jobName, "job", "default", "job name for checkpoint identity")
	runCmd.Flags().StringVar(&startFlag, "start", "", "start date (YYYY-MM-DD), defaults to today")
	runCmd.Flags().StringVar(&endFlag, "end", "", "end date (YYYY-MM-DD), defaults to start")
	runCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore existing checkpoint progress")
	runCmd.Flags().IntVar(&workers, "workers", 0, "parallel date workers (default from config)")
	runCmd.Flags().BoolVar(&backfillOpt, "backfill", false, "backfill mode: bypass the historical cutoff")
	runCmd.Flags().BoolVar(&forceFlag, "force", false, "disable fingerprint-based skipping")
	runCmd.Flags().BoolVar(&noTimeouts, "no-timeouts", false, "disable unit wall-clock timeouts")
	runCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "re-run only the dates recorded as failed in the checkpoint")
}

func parseRange() (domain.DateRange, error) {
	start := domain.Today()
	if startFlag != "" {
		var err error
		start, err = domain.ParseDate(startFlag)
		if err != nil {
			return domain.DateRange{}, err
		}
	}
	end := start
	if endFlag != "" {
		var err error
		end, err = domain.ParseDate(endFlag)
		if err != nil {
			return domain.DateRange{}, err
		}
	}
	return domain.NewDateRange(start, end)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if planBuilder == nil {
		return errors.New("no processing units linked into this binary")
	}

	r, err := parseRange()
	if err != nil {
		return err
	}

	if noTimeouts {
		cfg.Pipeline.Runner.DisableTimeouts = true
	}
	if workers > 0 {
		cfg.Pipeline.Backfill.Workers = workers
	}
	cfg.Pipeline.Backfill.Resume = !noResume

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipe, err := control.New(ctx, *cfg)
	if err != nil {
		return err
	}
	defer pipe.Close(context.Background())
	pipe.StartServer()

	levels, err := planBuilder(pipe)
	if err != nil {
		return err
	}

	opts := domain.RunOptions{
		BackfillMode:   backfillOpt,
		ForceReprocess: forceFlag,
	}

	backfill, err := pipe.NewBackfill(jobName, levels, cfg.Pipeline.Backfill)
	if err != nil {
		return err
	}

	var report *runner.Report
	if retryFailed {
		report, err = backfill.RetryFailures(ctx, r, opts)
	} else {
		report, err = backfill.Run(ctx, r, opts)
	}
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d dates failed; rerun with --retry-failed to retry them", report.Failed)
	}
	return nil
}

func printReport(report *runner.Report) {
	slog.Info("run report",
		"job", report.Job,
		"range", report.Range.String(),
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.SkippedAll,
	)
	for date, err := range report.Failures {
		slog.Error("date failed", "date", date, "error", err)
	}
	if _, err := fmt.Fprintf(os.Stdout,
		"job %s %s: %d processed, %d succeeded, %d failed, %d skipped\n",
		report.Job, report.Range, report.Processed, report.Succeeded,
		report.Failed, report.SkippedAll); err != nil {
		slog.Warn("failed to write report", "error", err)
	}
}
