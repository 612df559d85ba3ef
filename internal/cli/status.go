package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ensemble-trader/internal/store"
	"ensemble-trader/internal/trading"
	"ensemble-trader/pkg/utils"
)

// printStatus renders an in-process engine status summary.
func printStatus(output *Output, status trading.Status) {
	output.Println()
	output.Bold("Engine Status")
	output.Printf("  State:          %s\n", status.State)
	output.Printf("  Ticks:          %d\n", status.Ticks)
	output.Printf("  Active Version: %d (test accuracy %.4f)\n", status.ActiveVersion.ID, status.ActiveVersion.TestAccuracy)
	if status.AccuracyOK {
		output.Printf("  Rolling Acc:    %.4f\n", status.Accuracy)
	} else {
		output.Printf("  Rolling Acc:    warming up\n")
	}
	if status.ShadowVersion != nil {
		output.Printf("  Shadow Version: %d\n", status.ShadowVersion.ID)
	}
	output.Println()

	output.Bold("Risk")
	output.Printf("  Capital:     %s\n", utils.FormatCurrency(status.Risk.Capital))
	output.Printf("  Peak Equity: %s\n", utils.FormatCurrency(status.Risk.PeakEquity))
	output.Printf("  Drawdown:    %s\n", utils.FormatPercent(status.Risk.Drawdown*100))
	if status.Risk.TradingHalted {
		output.Error("  Trading:     HALTED")
	} else {
		output.Success("  Trading:     active")
	}
	output.Println()

	if status.Position != nil {
		output.Bold("Open Position")
		output.Printf("  %s %d %s @ %.2f (stop %.2f, target %.2f)\n",
			status.Position.Side, status.Position.Quantity, status.Position.Symbol,
			status.Position.EntryPrice, status.Position.StopLoss, status.Position.TakeProfit)
		output.Println()
	}

	output.Dim("  Broker circuit: %s (%d calls, %d failures)",
		status.Breaker.State, status.Breaker.TotalRequests, status.Breaker.TotalFailures)
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last persisted engine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			ctx := context.Background()

			snap, err := app.Store.GetLatestRiskSnapshot(ctx)
			if err != nil {
				return err
			}
			versions, err := app.Store.GetVersions(ctx)
			if err != nil {
				return err
			}

			var accSnaps []store.AccuracySnapshot
			for _, v := range versions {
				if v.Status == "ACTIVE" {
					accSnaps, err = app.Store.GetAccuracySnapshots(ctx, v.ID, 1)
					if err != nil {
						return err
					}
					break
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"risk":     snap,
					"versions": versions,
					"accuracy": accSnaps,
				})
			}

			if snap == nil {
				output.Warning("No engine state recorded yet. Run 'trader run' first.")
				return nil
			}

			color.Cyan("📊 Engine State (as of %s)", snap.UpdatedAt.Format(time.RFC3339))
			output.Println()
			output.Printf("  Capital:     %s\n", utils.FormatCurrency(snap.Capital))
			output.Printf("  Peak Equity: %s\n", utils.FormatCurrency(snap.PeakEquity))
			output.Printf("  Drawdown:    %s\n", utils.FormatPercent(snap.Drawdown*100))
			if snap.TradingHalted {
				output.Error("  Trading:     HALTED")
			} else {
				output.Success("  Trading:     active")
			}
			if len(accSnaps) > 0 {
				output.Printf("  Rolling Acc: %.4f over %d samples\n", accSnaps[0].Accuracy, accSnaps[0].Samples)
			}
			output.Println()

			if len(versions) > 0 {
				table := NewTable(output, "VERSION", "STATUS", "TRAIN ACC", "TEST ACC", "CREATED")
				for _, v := range versions {
					table.AddRow(
						fmt.Sprintf("%d", v.ID),
						string(v.Status),
						fmt.Sprintf("%.4f", v.TrainAccuracy),
						fmt.Sprintf("%.4f", v.TestAccuracy),
						v.CreatedAt.Format("2006-01-02 15:04"),
					)
				}
				table.Render()
			}
			return nil
		},
	}
}

func newTradesCmd(app *App) *cobra.Command {
	var limit int
	var symbol string

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Show recent closed trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			trades, err := app.Store.GetTrades(context.Background(), store.TradeFilter{
				Symbol: symbol,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Warning("No trades recorded.")
				return nil
			}

			color.Cyan("📒 Trades (%d)", len(trades))
			output.Println()

			table := NewTable(output, "CLOSED", "SYMBOL", "SIDE", "QTY", "ENTRY", "EXIT", "PNL", "REASON", "VER")
			var totalPnL float64
			for _, t := range trades {
				totalPnL += t.PnL
				table.AddRow(
					t.ClosedAt.Format("2006-01-02"),
					t.Symbol,
					string(t.Side),
					fmt.Sprintf("%d", t.Quantity),
					fmt.Sprintf("%.2f", t.EntryPrice),
					fmt.Sprintf("%.2f", t.ExitPrice),
					output.ColoredString(output.PnLColor(t.PnL), utils.FormatPnL(t.PnL)),
					t.Reason,
					fmt.Sprintf("%d", t.VersionID),
				)
			}
			table.Render()
			output.Println()
			output.Printf("  Total PnL: %s\n", output.ColoredString(output.PnLColor(totalPnL), utils.FormatPnL(totalPnL)))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum trades to show")
	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by symbol")
	return cmd
}

func newVersionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "Show the model version registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			versions, err := app.Store.GetVersions(context.Background())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(versions)
			}
			if len(versions) == 0 {
				output.Warning("No model versions recorded.")
				return nil
			}

			color.Cyan("🧬 Model Versions")
			output.Println()

			table := NewTable(output, "ID", "STATUS", "TRAIN ACC", "TEST ACC", "CREATED")
			for _, v := range versions {
				status := string(v.Status)
				switch v.Status {
				case "ACTIVE":
					status = output.Green(status)
				case "SHADOW":
					status = output.Yellow(status)
				case "RETIRED":
					status = output.ColoredString(ColorDim, status)
				}
				table.AddRow(
					fmt.Sprintf("%d", v.ID),
					status,
					fmt.Sprintf("%.4f", v.TrainAccuracy),
					fmt.Sprintf("%.4f", v.TestAccuracy),
					v.CreatedAt.Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	}
}
