package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRunCmd(app *App) *cobra.Command {
	var maxCycles int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop",
		Long: `Runs the autonomous trading loop until interrupted.

In paper mode the loop replays the configured CSV bar series and stops when
it is exhausted. In live mode it polls the broker on the configured tick
interval. Ctrl-C stops the loop cleanly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coordinator, err := buildEngine(ctx, app)
			if err != nil {
				output.Error("Engine startup failed: %v", err)
				return err
			}

			if !output.IsJSON() {
				color.Cyan("▶ Trading loop started (%s mode, %s)", app.Config.Trading.Mode, app.Config.Trading.Symbol)
			}

			if err := coordinator.Run(ctx, maxCycles); err != nil && err != context.Canceled {
				output.Error("Trading loop stopped: %v", err)
				return err
			}

			status := coordinator.Status()
			if output.IsJSON() {
				return output.JSON(status)
			}
			printStatus(output, status)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "stop after N ticks (0 = unlimited)")
	return cmd
}
