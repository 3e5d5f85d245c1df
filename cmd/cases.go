package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/model"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect and manage evaluation cases",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		specialty, _ := cmd.Flags().GetString("specialty")
		list := env.Cases.List(cases.Filter{Status: model.CaseStatus(status), Specialty: specialty})
		if len(list) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No cases found.")
			return nil
		}
		formatCasesList(os.Stdout, list, env.Flags.Has)
		return nil
	},
}

var casesShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a case as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		c, ok := env.Cases.Get(args[0])
		if !ok {
			return eris.Wrapf(model.ErrCaseNotFound, "cases show %s", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			model.Case
			Status model.CaseStatus `json:"status"`
			Runs   int              `json:"runs"`
		}{c, c.Status(), len(env.Ledger.ForCase(c.Key))})
	},
}

var casesDeleteCmd = &cobra.Command{
	Use:   "delete <key>...",
	Short: "Delete cases; their runs stay in the ledger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		var synced model.Sync
		for _, key := range args {
			s := env.Cases.Delete(cmd.Context(), key)
			synced = synced.Merge(s)
			_, _ = fmt.Fprintf(os.Stdout, "%s case %s (%s)\n", successText("deleted"), key, syncLabel(s))
		}
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

func init() {
	casesListCmd.Flags().String("status", "", "filter by status (complete, truth_only, note_only)")
	casesListCmd.Flags().String("specialty", "", "filter by specialty")

	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesShowCmd)
	casesCmd.AddCommand(casesDeleteCmd)
	rootCmd.AddCommand(casesCmd)
}
