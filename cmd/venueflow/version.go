package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/venueflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of venueflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "venueflow version %s\n", strings.TrimSpace(venueflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
