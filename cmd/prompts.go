package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage the prompt library",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		list := env.Library.List()
		if len(list) == 0 {
			list = []model.SavedPrompt{prompts.Default()}
		}
		active := env.Settings.GetOr(model.SettingActivePrompt, prompts.DefaultName)
		formatPromptsList(os.Stdout, list, active)
		return nil
	},
}

var promptsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a prompt from --file, --text or stdin; an existing name is replaced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		text, err := promptText(cmd, os.Stdin)
		if err != nil {
			return err
		}
		p, synced, err := env.Library.Save(cmd.Context(), args[0], text)
		if err != nil {
			return err
		}
		if activate, _ := cmd.Flags().GetBool("activate"); activate {
			synced = synced.Merge(env.Settings.Put(cmd.Context(), model.SettingActivePrompt, p.Name))
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s prompt %s (%s)\n", successText("saved"), boldText(p.Name), syncLabel(synced))
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		p, ok := env.Library.Get(args[0])
		if !ok {
			return eris.Wrapf(model.ErrPromptNotFound, "prompts delete %q", args[0])
		}
		synced := env.Library.Delete(cmd.Context(), p.ID)
		_, _ = fmt.Fprintf(os.Stdout, "%s prompt %s (%s)\n", successText("deleted"), p.Name, syncLabel(synced))
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Export the prompt library as YAML (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 0 {
			return env.Library.Export(os.Stdout)
		}
		f, err := os.Create(args[0])
		if err != nil {
			return eris.Wrap(err, "prompts export: create file")
		}
		defer f.Close() //nolint:errcheck
		if err := env.Library.Export(f); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s %d prompt(s) to %s\n", successText("exported"), env.Library.Len(), args[0])
		return nil
	},
}

var promptsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import prompts from YAML; existing names are replaced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "prompts import: open file")
		}
		defer f.Close() //nolint:errcheck

		n, synced, err := env.Library.Import(cmd.Context(), f)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s %d prompt(s) (%s)\n", successText("imported"), n, syncLabel(synced))
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

var promptsImproveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Ask the model for a revised prompt based on run history and flagged cases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "eval")
		if err != nil {
			return err
		}
		defer env.Close()

		name, _ := cmd.Flags().GetString("prompt")
		flagged, _ := cmd.Flags().GetStringSlice("flag")
		yes, _ := cmd.Flags().GetBool("yes")

		for _, key := range flagged {
			if _, ok := env.Cases.Get(key); !ok {
				return eris.Wrapf(model.ErrCaseNotFound, "prompts improve: flag %s", key)
			}
			env.Flags.Add(key)
		}

		base, err := env.activePrompt(name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Analyzing %d run(s) and %d flagged case(s) for %s...\n",
			env.Ledger.Len(), env.Flags.Len(), boldText(base.Name))

		candidate, err := env.Improver.Propose(ctx, base)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n", boldText("Candidate prompt"), candidate)

		if !yes && !confirm(os.Stdin, os.Stdout, "Accept this prompt?") {
			if err := env.Improver.Reject(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, warnText("discarded"))
			return nil
		}

		p, synced, err := env.Improver.Accept(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s %s and made it the active prompt (%s)\n",
			successText("saved"), boldText(p.Name), syncLabel(synced))
		printSyncWarning(os.Stderr, synced)
		return nil
	},
}

func init() {
	promptsSaveCmd.Flags().String("file", "", "read the prompt text from a file")
	promptsSaveCmd.Flags().String("text", "", "prompt text")
	promptsSaveCmd.Flags().Bool("activate", false, "make it the active prompt")

	promptsImproveCmd.Flags().String("prompt", "", "prompt to revise (default: the active prompt)")
	promptsImproveCmd.Flags().StringSlice("flag", nil, "case keys to flag for the analysis")
	promptsImproveCmd.Flags().BoolP("yes", "y", false, "accept the candidate without asking")

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsSaveCmd)
	promptsCmd.AddCommand(promptsDeleteCmd)
	promptsCmd.AddCommand(promptsExportCmd)
	promptsCmd.AddCommand(promptsImportCmd)
	promptsCmd.AddCommand(promptsImproveCmd)
	rootCmd.AddCommand(promptsCmd)
}

// promptText reads --text, then --file, then stdin.
func promptText(cmd *cobra.Command, stdin io.Reader) (string, error) {
	if text, _ := cmd.Flags().GetString("text"); text != "" {
		return text, nil
	}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrap(err, "prompts save: read file")
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "prompts save: read stdin")
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", eris.New("prompts save: empty prompt text")
	}
	return string(data), nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// formatPromptsList writes the library with the active prompt marked.
func formatPromptsList(out io.Writer, list []model.SavedPrompt, active string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tNAME\tID\tUPDATED\tCHARS")
	_, _ = fmt.Fprintln(w, "\t----\t--\t-------\t-----")
	for _, p := range list {
		mark := ""
		if p.Name == active {
			mark = "*"
		}
		updated := "-"
		if !p.UpdatedAt.IsZero() {
			updated = p.UpdatedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", mark, p.Name, orDash(truncateID(p.ID)), updated, len(p.Text))
	}
	_ = w.Flush()
}
