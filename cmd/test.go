package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/model"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run coding prompts against cases",
}

var testRunCmd = &cobra.Command{
	Use:   "run [case-key]...",
	Short: "Code cases with a prompt, score the predictions and record the runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "eval")
		if err != nil {
			return err
		}
		defer env.Close()

		promptName, _ := cmd.Flags().GetString("prompt")
		modelFlag, _ := cmd.Flags().GetString("model")
		all, _ := cmd.Flags().GetBool("all")

		keys := args
		if all {
			keys = nil
			for _, c := range env.Cases.ListComplete() {
				keys = append(keys, c.Key)
			}
		}
		if len(keys) == 0 {
			return fmt.Errorf("no cases to run: pass case keys or --all")
		}

		prompt, err := env.activePrompt(promptName)
		if err != nil {
			return err
		}
		modelID := env.activeModel(modelFlag)
		_, _ = fmt.Fprintf(os.Stdout, "Running %s on %d case(s) with %s\n", boldText(prompt.Name), len(keys), modelID)

		var failed int
		var synced model.Sync
		for _, it := range env.Runner.RunBatch(ctx, keys, prompt, modelID) {
			if it.Err != nil {
				failed++
				_, _ = fmt.Fprintf(os.Stdout, "%s %s [%s]: %v\n", failedText("failed"), it.CaseKey, model.ErrorKind(it.Err), it.Err)
				continue
			}
			synced = synced.Merge(it.Result.Sync)
			s := it.Result.Run.Score
			_, _ = fmt.Fprintf(os.Stdout, "%s %s primary %s, recall %.3f, precision %.3f (%s)\n",
				successText("scored"), it.CaseKey, matchLabel(s.PrimaryMatch), s.CPTRecall, s.CPTPrecision,
				syncLabel(it.Result.Sync))
		}
		printSyncWarning(os.Stderr, synced)
		if failed > 0 {
			return fmt.Errorf("%d of %d run(s) failed", failed, len(keys))
		}
		return nil
	},
}

func init() {
	testRunCmd.Flags().String("prompt", "", "prompt name (default: the active prompt)")
	testRunCmd.Flags().String("model", "", "model id (default: the model setting, then config)")
	testRunCmd.Flags().Bool("all", false, "run every complete case")

	testCmd.AddCommand(testRunCmd)
	rootCmd.AddCommand(testCmd)
}
