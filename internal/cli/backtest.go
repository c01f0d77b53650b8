package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-trader/internal/backtest"
	"stock-trader/internal/models"
	"stock-trader/internal/strategy"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run and inspect backtests",
	}
	cmd.AddCommand(newBacktestRunCmd(app))
	return cmd
}

func newBacktestRunCmd(app *App) *cobra.Command {
	var (
		startFlag   string
		endFlag     string
		symbolsFlag string
		cashFlag    float64
		topFlag     int
		allocFlag   float64
		outFlag     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a date range against historical bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startFlag)
			if err != nil {
				return fmt.Errorf("parsing --start: %w", err)
			}
			end, err := time.Parse("2006-01-02", endFlag)
			if err != nil {
				return fmt.Errorf("parsing --end: %w", err)
			}
			symbols := parseSymbols(symbolsFlag)
			if len(symbols) == 0 {
				return fmt.Errorf("--symbols is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			// The simulator needs bars one day past the end to resolve the
			// last day's orders.
			if err := app.loadBars(ctx, symbols, start, end.AddDate(0, 0, 1)); err != nil {
				return err
			}
			app.Cache.CacheValidSymbols(symbols)

			var recorder backtest.ActionRecorder
			if app.Store != nil {
				recorder = app.Store
			}
			ledger := backtest.NewLedger(app.Source, recorder, app.Logger)
			executor := backtest.NewExecutor(ledger, app.Logger)

			simID, err := executor.Start(ctx, backtest.RunConfig{
				Start:       start,
				End:         end,
				InitialCash: cashFlag,
				Strategy: strategy.NewMostActive(app.Cache, strategy.MostActiveConfig{
					Top:        topFlag,
					Allocation: allocFlag,
				}),
			})
			if err != nil {
				return err
			}

			result, err := executor.Wait(simID)
			if err != nil {
				return err
			}
			printResult(cmd, result)

			if outFlag != "" {
				f, err := os.Create(outFlag)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outFlag, err)
				}
				defer f.Close()
				if err := backtest.WriteSnapshotsCSV(f, result); err != nil {
					return fmt.Errorf("writing %s: %w", outFlag, err)
				}
				cmd.Printf("snapshots written to %s\n", outFlag)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "first simulated day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endFlag, "end", "", "last simulated day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&symbolsFlag, "symbols", "", "comma-separated symbol universe")
	cmd.Flags().Float64Var(&cashFlag, "cash", 100000, "initial cash")
	cmd.Flags().IntVar(&topFlag, "top", 3, "most-active symbols to buy per day")
	cmd.Flags().Float64Var(&allocFlag, "allocation", 1000, "cash committed per buy")
	cmd.Flags().StringVar(&outFlag, "out", "", "write daily snapshots to a CSV file")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("symbols")

	return cmd
}

func printResult(cmd *cobra.Command, result *backtest.Result) {
	cmd.Printf("simulation %s\n", result.SimulationID)
	if result.Cancelled {
		cmd.Println("status: cancelled")
	}
	cmd.Printf("days simulated: %d\n", len(result.Snapshots))
	cmd.Printf("initial cash:   %.2f\n", result.InitialCash)
	cmd.Printf("final equity:   %.2f\n", result.FinalEquity)
	cmd.Printf("total return:   %.2f%%\n", result.TotalReturn)
	cmd.Printf("max drawdown:   %.2f%%\n", result.MaxDrawdown)
}

func parseSymbols(flag string) []models.Symbol {
	var symbols []models.Symbol
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			symbols = append(symbols, models.Symbol(strings.ToUpper(part)))
		}
	}
	return symbols
}
