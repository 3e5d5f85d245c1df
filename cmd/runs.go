package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/aggregate"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/report"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the test run ledger",
	Long:  "Commands for listing, viewing, deleting, summarizing and exporting test runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List test runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		caseKey, _ := cmd.Flags().GetString("case")
		prompt, _ := cmd.Flags().GetString("prompt")
		limit, _ := cmd.Flags().GetInt("limit")

		runs := filterRuns(env.Ledger.List(), caseKey, prompt, limit)
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		run, ok := findRun(env.Ledger.List(), args[0])
		if !ok {
			return eris.Errorf("runs show: no run %s", args[0])
		}
		formatRunDetail(os.Stdout, run)
		return nil
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Delete runs from the ledger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		var synced model.Sync
		for _, id := range args {
			if run, ok := findRun(env.Ledger.List(), id); ok {
				id = run.ID
			}
			s := env.Ledger.Delete(cmd.Context(), id)
			synced = synced.Merge(s)
			_, _ = fmt.Fprintf(os.Stdout, "%s run %s (%s)\n", successText("deleted"), truncateID(id), syncLabel(s))
		}
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics per prompt or per case",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		runs := env.Ledger.List()
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		if compare, _ := cmd.Flags().GetString("compare"); compare != "" {
			a, b, ok := strings.Cut(compare, ",")
			if !ok || a == "" || b == "" {
				return eris.New("runs stats: --compare expects two prompt names: A,B")
			}
			formatComparison(os.Stdout, aggregate.Compare(runs, a, b))
			return nil
		}

		by, _ := cmd.Flags().GetString("by")
		switch by {
		case "prompt":
			formatPromptStats(os.Stdout, aggregate.ByPrompt(runs))
		case "case":
			formatCaseStats(os.Stdout, aggregate.ByCase(runs))
		default:
			return eris.Errorf("runs stats: --by must be prompt or case, got %q", by)
		}
		return nil
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Export runs and their summaries to a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Create(args[0])
		if err != nil {
			return eris.Wrap(err, "runs export: create file")
		}
		defer f.Close() //nolint:errcheck

		runs := env.Ledger.List()
		if err := report.Write(f, runs); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s %d run(s) to %s\n", successText("exported"), len(runs), args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("case", "", "filter by case key")
	runsListCmd.Flags().String("prompt", "", "filter by prompt name")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().String("by", "prompt", "group by prompt or case")
	runsStatsCmd.Flags().String("compare", "", "compare two prompts' latest results per case: A,B")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}

// filterRuns keeps runs matching caseKey and prompt, up to limit (0 means
// all). Order is preserved.
func filterRuns(runs []model.TestRun, caseKey, prompt string, limit int) []model.TestRun {
	var out []model.TestRun
	for _, r := range runs {
		if caseKey != "" && r.CaseKey != caseKey {
			continue
		}
		if prompt != "" && r.PromptName != prompt {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// findRun matches a full id or a unique prefix such as the truncated ids
// printed by runs list.
func findRun(runs []model.TestRun, id string) (model.TestRun, bool) {
	var found []model.TestRun
	for _, r := range runs {
		if r.ID == id {
			return r, true
		}
		if strings.HasPrefix(r.ID, id) {
			found = append(found, r)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return model.TestRun{}, false
}
