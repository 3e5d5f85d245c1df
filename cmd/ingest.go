package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/coding-eval/internal/ingest"
	"github.com/sells-group/coding-eval/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest gold-standard audits and clinical notes",
}

// -- ingest gold --

var ingestGoldCmd = &cobra.Command{
	Use:   "gold <file>...",
	Short: "Import audited codes from PDF, XLSX or JSON files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		specialty, _ := cmd.Flags().GetString("specialty")
		var failed int
		for _, path := range args {
			f, err := ingest.ReadFile(path)
			if err != nil {
				failed++
				_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", failedText("failed"), path, err)
				continue
			}
			res, err := env.Ingester.Gold(ctx, f, specialty)
			if err != nil {
				failed++
				_, _ = fmt.Fprintf(os.Stderr, "%s %s [%s]: %v\n", failedText("failed"), path, model.ErrorKind(err), err)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s %s: %d entries, %d applied (%s)\n",
				successText("imported"), res.Source, res.Entries, res.Applied, syncLabel(res.Sync))
			printSyncWarning(os.Stderr, res.Sync)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d gold file(s) failed", failed, len(args))
		}
		return nil
	},
}

// -- ingest notes --

var ingestNotesCmd = &cobra.Command{
	Use:   "notes <file>...",
	Short: "Ingest clinical notes (PDF or text); each is matched to a case by its record number",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes := env.Ingester.NotePaths(ctx, args)
		ok := printNoteOutcomes(os.Stdout, outcomes)
		if ok < len(outcomes) {
			return fmt.Errorf("%d of %d note(s) not ingested", len(outcomes)-ok, len(outcomes))
		}
		return nil
	},
}

// -- ingest watch --

var ingestWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest notes dropped into the inbox directory until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Ingest.InboxDir
		}
		_, _ = fmt.Fprintf(os.Stdout, "Watching %s for notes (Ctrl-C to stop)\n", boldText(dir))

		w := ingest.NewWatcher(env.Ingester, dir, time.Duration(cfg.Ingest.DebounceMs)*time.Millisecond,
			func(o ingest.NoteOutcome) { printNoteOutcomes(os.Stdout, []ingest.NoteOutcome{o}) })
		return w.Run(ctx)
	},
}

// printNoteOutcomes writes one line per note and returns how many succeeded.
func printNoteOutcomes(out io.Writer, outcomes []ingest.NoteOutcome) int {
	var ok int
	for _, o := range outcomes {
		if o.OK {
			ok++
			_, _ = fmt.Fprintf(out, "%s %s -> case %s (%s)\n", successText("ingested"), o.File, o.Key, syncLabel(o.Sync))
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %s [%s]: %v\n", failedText("skipped"), o.File, model.ErrorKind(o.Err), o.Err)
	}
	return ok
}

func init() {
	ingestGoldCmd.Flags().String("specialty", "", "specialty to set on new cases")
	ingestWatchCmd.Flags().String("dir", "", "inbox directory (default from config)")

	ingestCmd.AddCommand(ingestGoldCmd)
	ingestCmd.AddCommand(ingestNotesCmd)
	ingestCmd.AddCommand(ingestWatchCmd)
	rootCmd.AddCommand(ingestCmd)
}
