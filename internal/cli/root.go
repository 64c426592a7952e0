// Package cli wires configuration, market data, storage and the simulator
// behind the command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"backtest-core/internal/logx"
	"backtest-core/pkg/config"
)

const version = "v0.3.0"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest moving-average trading strategies",
		Long:  `backtest replays historical candles through virtual brokers, one per strategy configuration, and reports the profit of each.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			*cfg = *loaded
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.LogLevel = "debug"
			}
			logx.SetupWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}

	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(newSimulateCmd(cfg))
	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "backtest %s\n", version)
		},
	}
}
