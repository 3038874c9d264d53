package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dnguyenv/conductor/internal/control"
	"github.com/dnguyenv/conductor/internal/core/domain"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the checkpoint for a job and date range",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().StringVar(&jobName, "job", "default", "job name")
	resetCmd.Flags().StringVar(&startFlag, "start", "", "range start (YYYY-MM-DD)")
	resetCmd.Flags().StringVar(&endFlag, "end", "", "range end (YYYY-MM-DD)")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "skip confirmation")
	_ = resetCmd.MarkFlagRequired("start")
	_ = resetCmd.MarkFlagRequired("end")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := parseRange()
	if err != nil {
		return err
	}

	if !resetYes {
		fmt.Printf("clear checkpoint for job %s range %s? [y/N] ", jobName, r)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "y" {
			fmt.Println("aborted")
			return nil
		}
	}

	ctx := context.Background()
	pipe, err := control.New(ctx, *cfg)
	if err != nil {
		return err
	}
	defer pipe.Close(ctx)

	key := domain.CheckpointKey{JobName: jobName, Range: r}
	if err := pipe.Checkpoints().Clear(ctx, key); err != nil {
		return err
	}
	fmt.Printf("checkpoint cleared for job %s range %s\n", jobName, r)
	return nil
}
