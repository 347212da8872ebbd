package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/venueflow/internal/cli"
	"github.com/aretw0/venueflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "venueflow",
	Short: "venueflow drives the stage configuration of peer-review venues",
	Long: `venueflow applies stage configuration events to venue request forms,
materializes the workflow definitions they describe and records an activity
note for every event.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the configuration)")
	rootCmd.PersistentFlags().Bool("json", false, "Write results as JSON")
}

// loadConfig reads the configuration named by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			return cfg, nil, err
		}
	}
	return cfg, cfg.Logger(), nil
}

// buildRuntime loads the configuration and wires the engine.
func buildRuntime(cmd *cobra.Command) (*cli.Runtime, config.Config, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	rt, err := cli.Build(cmd.Context(), cfg, logger)
	return rt, cfg, err
}

func output(cmd *cobra.Command) cli.Output {
	asJSON, _ := cmd.Flags().GetBool("json")
	return cli.Output{W: cmd.OutOrStdout(), JSON: asJSON}
}

func closeRuntime(rt *cli.Runtime) {
	if err := rt.Close(context.Background()); err != nil {
		rt.Logger.Warn("close failed", "err", err)
	}
}
