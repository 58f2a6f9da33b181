package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ShadowTrade/internal/di"
	"ShadowTrade/internal/usecase"
	"ShadowTrade/pkg/config"
	"ShadowTrade/pkg/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "app",
		Short:         "Private strategy evaluation and backtesting over MPC",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(
		newServeCmd(&configPath),
		newWorkerCmd(&configPath),
		newBacktestCmd(&configPath),
		newSweepCmd(&configPath),
		newLiveCmd(&configPath),
	)
	return root
}

// bootstrap loads config, lets the caller adjust it, and wires the app.
func bootstrap(configPath string, adjust func(*config.Config)) (*server.App, func(), error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	if adjust != nil {
		adjust(cfg)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(configPath *string) *cobra.Command {
	var simulateMPC bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the backtest workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath, func(c *config.Config) {
				if cmd.Flags().Changed("simulate-mpc") {
					c.Server.SimulateMPC = simulateMPC
				}
			})
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()
			return app.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&simulateMPC, "simulate-mpc", false, "expose the in-process MPC simulator under /mpc")
	return cmd
}

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the backtest workers and the record sink",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()
			return app.Worker(ctx)
		},
	}
}

func newBacktestCmd(configPath *string) *cobra.Command {
	var (
		symbol   string
		interval string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one backtest and print its public summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if interval == "" {
				interval = app.Config.Backtest.DefaultInterval
			}
			if count <= 0 {
				count = app.Config.Backtest.DefaultCount
			}

			ctx, stop := signalContext()
			defer stop()
			report, err := app.Backtest(ctx, usecase.RunRequest{
				Symbol:   symbol,
				Interval: interval,
				Count:    count,
				Params:   app.Strategy,
			})
			if err != nil {
				return err
			}

			out := struct {
				Record      any `json:"record"`
				Computation any `json:"computation"`
			}{
				Record:      report.PublicRecord(),
				Computation: report.Computation,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "BTCUSDT", "trading pair")
	cmd.Flags().StringVar(&interval, "interval", "", "kline interval (default from config)")
	cmd.Flags().IntVar(&count, "count", 0, "number of candles (default from config)")
	return cmd
}

func newSweepCmd(configPath *string) *cobra.Command {
	var (
		symbol     string
		interval   string
		count      int
		oversold   []float64
		overbought []float64
		top        int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Rank oversold/overbought pairs by total return (local output only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if interval == "" {
				interval = app.Config.Backtest.DefaultInterval
			}
			if count <= 0 {
				count = app.Config.Backtest.DefaultCount
			}

			ctx, stop := signalContext()
			defer stop()
			results, err := app.Sweep(ctx, usecase.RunRequest{
				Symbol:   symbol,
				Interval: interval,
				Count:    count,
				Params:   app.Strategy,
			}, usecase.SweepGrid{Oversold: oversold, Overbought: overbought})
			if err != nil {
				return err
			}

			type row struct {
				Oversold   float64 `json:"oversold"`
				Overbought float64 `json:"overbought"`
				Record     any     `json:"record,omitempty"`
				Error      string  `json:"error,omitempty"`
			}
			rows := make([]row, 0, len(results))
			for i, r := range results {
				if top > 0 && i >= top {
					break
				}
				out := row{Oversold: r.Oversold, Overbought: r.Overbought}
				if r.Err != nil {
					out.Error = r.Err.Error()
				} else {
					out.Record = r.Report.PublicRecord()
				}
				rows = append(rows, out)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "SOLUSDT", "trading pair")
	cmd.Flags().StringVar(&interval, "interval", "", "kline interval (default from config)")
	cmd.Flags().IntVar(&count, "count", 0, "number of candles (default from config)")
	cmd.Flags().Float64SliceVar(&oversold, "oversold", []float64{20, 25, 30, 35}, "oversold levels to try")
	cmd.Flags().Float64SliceVar(&overbought, "overbought", []float64{65, 70, 75, 80}, "overbought levels to try")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print, 0 for all")
	return cmd
}

func newLiveCmd(configPath *string) *cobra.Command {
	var symbol, interval string
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Paper-trade on the live kline stream, emitting public signals only",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if symbol == "" {
				symbol = app.Config.Live.Symbol
			}
			if interval == "" {
				interval = app.Config.Live.Interval
			}

			ctx, stop := signalContext()
			defer stop()
			return app.Live(ctx, symbol, interval)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "trading pair (default from config)")
	cmd.Flags().StringVar(&interval, "interval", "", "kline interval (default from config)")
	return cmd
}
