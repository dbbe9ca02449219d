package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent",
	Long: `Connects to the coordinator and serves backup commands until the
process is stopped or the connection retry budget is exhausted.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	cmd.Printf("shelter-agent %s (agent id %s)\n", version, a.agentID)

	err = a.agent.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		cmd.Println("shutting down")
		return nil
	case errors.Is(err, domain.ErrChannelDisabled):
		return fmt.Errorf("coordinator unreachable, giving up: %w", err)
	default:
		return err
	}
}
