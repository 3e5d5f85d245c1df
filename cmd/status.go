package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session health: cases, runs, store and model readiness",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		snap := env.Health.Collect(ctx)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		formatHealth(os.Stdout, snap, monitoring.NewAlerter().Evaluate(snap))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
