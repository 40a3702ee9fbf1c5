package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [context]",
	Short: "Print the step sequence planned for a request",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	_, p, err := newPlanner(cfg, reg)
	if err != nil {
		return err
	}

	seq, err := p.Plan(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	for _, step := range seq {
		fmt.Fprintln(cmd.OutOrStdout(), step)
	}
	return nil
}
