package main

import (
	"github.com/aretw0/venueflow/internal/cli"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply BATCH",
	Short: "Apply the stage events of a batch file",
	Long: `Creates the forms of a YAML or JSON batch file that do not exist yet, registers
its entities and handles its events in file order against the configured store.
Applying the same file twice is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := cli.LoadBatch(args[0])
		if err != nil {
			return err
		}
		rt, _, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(rt)

		_, err = cli.Apply(cmd.Context(), rt, batch, output(cmd))
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate BATCH",
	Short: "Dry-run a batch file against a scratch store",
	Long:  `Plans and applies every event of a batch in memory and reports the outcomes. The configured store is not touched.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := cli.LoadBatch(args[0])
		if err != nil {
			return err
		}
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, err = cli.Validate(cmd.Context(), cfg, logger, batch, output(cmd))
		return err
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay DIR",
	Short: "Replay stage event documents from a directory",
	Long: `Reads Markdown, YAML or JSON event documents from DIR and handles them in
sequence order for each form. The forms must already exist in the configured store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(rt)

		if path, _ := cmd.Flags().GetString("seed"); path != "" {
			batch, err := cli.LoadBatch(path)
			if err != nil {
				return err
			}
			if _, err := rt.Seed(cmd.Context(), batch); err != nil {
				return err
			}
		}
		form, _ := cmd.Flags().GetString("form")
		_, err = cli.Replay(cmd.Context(), rt, args[0], form, output(cmd))
		return err
	},
}

func init() {
	rootCmd.AddCommand(applyCmd, validateCmd, replayCmd)
	replayCmd.Flags().String("form", "", "Replay only this form")
	replayCmd.Flags().String("seed", "", "Batch file whose forms and entities are created first")
}
