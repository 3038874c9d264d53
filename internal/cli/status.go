package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dnguyenv/conductor/internal/control"
	"github.com/dnguyenv/conductor/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress for a job and date range",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&jobName, "job", "default", "job name")
	statusCmd.Flags().StringVar(&startFlag, "start", "", "range start (YYYY-MM-DD)")
	statusCmd.Flags().StringVar(&endFlag, "end", "", "range end (YYYY-MM-DD)")
	_ = statusCmd.MarkFlagRequired("start")
	_ = statusCmd.MarkFlagRequired("end")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := parseRange()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipe, err := control.New(ctx, *cfg)
	if err != nil {
		return err
	}
	defer pipe.Close(ctx)

	key := domain.CheckpointKey{JobName: jobName, Range: r}
	cp, stats, err := pipe.Checkpoints().Summary(ctx, key)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		fmt.Printf("no checkpoint for job %s range %s\n", jobName, r)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("job:             %s\n", cp.JobName)
	fmt.Printf("range:           %s\n", r)
	fmt.Printf("created:         %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("last updated:    %s\n", cp.LastUpdated.Format("2006-01-02 15:04:05"))
	fmt.Printf("last successful: %s\n", orNone(cp.LastSuccessfulDate))
	fmt.Printf("progress:        %d/%d days (%d ok, %d failed, %d skipped)\n",
		stats.Processed, stats.TotalDays, stats.Successful, stats.Failed, stats.Skipped)

	if resume, ok := cp.ResumeDate(); ok {
		fmt.Printf("resume from:     %s\n", resume)
	} else {
		fmt.Println("resume from:     complete")
	}

	for _, d := range cp.Failed {
		fmt.Printf("failed %s: %s\n", d, cp.FailureReasons[d])
	}
	return nil
}

func orNone(d domain.Date) string {
	if d.IsZero() {
		return "none"
	}
	return string(d)
}
