package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/contentflow/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run [context]",
	Short: "Run the pipeline once and print its trace",
	Long: `Plans a sequence for the given request, drives it to completion and
prints the run trace. Interrupting the command stops the run; it can be
resumed later through the API when DATABASE_URL points at a file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runPipeline(cmd, cfg, strings.Join(args, " "))
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, text string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.service.Start(ctx, text)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s\n", resp.RunID, strings.Join(resp.Sequence, " -> "))

	if err := a.service.Wait(ctx); err != nil {
		a.service.Stop()
		// The in-flight step still owns the state; let it finish before reading it.
		_ = a.service.Wait(context.Background())
	}

	run, err := a.service.GetRun(context.Background(), resp.RunID)
	if err != nil {
		return err
	}
	if run.State != nil {
		for _, msg := range run.State.Messages {
			fmt.Fprintln(out, msg)
		}
	}
	fmt.Fprintf(out, "status: %s\n", run.Run.Status)
	return nil
}
