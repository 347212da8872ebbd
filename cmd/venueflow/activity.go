package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/venueflow/internal/presentation/graph"
	"github.com/aretw0/venueflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity FORM",
	Short: "Show the activity records of a request form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(rt)

		records, err := rt.Engine.Activity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, records)
		}
		return tui.NewRenderer(cmd.OutOrStdout()).Activity(records)
	},
}

var definitionsCmd = &cobra.Command{
	Use:   "definitions [PREFIX]",
	Short: "List workflow definitions",
	Long:  `Lists the workflow definitions whose identifier starts with PREFIX, as JSON or as a Mermaid graph.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(rt)

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		defs, err := rt.Engine.Definitions(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		if mermaid, _ := cmd.Flags().GetBool("graph"); mermaid {
			_, err := fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(defs))
			return err
		}
		return writeJSON(cmd, defs)
	},
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(activityCmd, definitionsCmd)
	definitionsCmd.Flags().Bool("graph", false, "Print a Mermaid flowchart instead of JSON")
}
