package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/venueflow/internal/cli"
	"github.com/aretw0/venueflow/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves stage events, activity, definitions and metrics over HTTP until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(rt)

		addr := cfg.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.Serve(ctx, rt, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides http_addr)")
}
