package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/sells-group/coding-eval/internal/aggregate"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/monitoring"
)

var (
	successText = color.New(color.FgGreen).SprintFunc()
	failedText  = color.New(color.FgRed).SprintFunc()
	warnText    = color.New(color.FgYellow).SprintFunc()
	boldText    = color.New(color.Bold).SprintFunc()
)

// syncLabel renders a write outcome for terminal output.
func syncLabel(s model.Sync) string {
	if s.Durable() {
		return successText("saved")
	}
	return warnText("local only")
}

// printSyncWarning explains a local-only write once per command.
func printSyncWarning(out io.Writer, s model.Sync) {
	if s.Durable() {
		return
	}
	_, _ = fmt.Fprintf(out, "%s changes are kept in this session only: %v\n", warnText("warning:"), s.Err)
}

func yesNo(ok bool) string {
	if ok {
		return successText("yes")
	}
	return failedText("no")
}

// formatCasesList writes a tabular list of cases to w.
func formatCasesList(out io.Writer, list []model.Case, flagged func(string) bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSTATUS\tSPECIALTY\tPRIMARY\tCPT\tNOTE\tFLAG")
	_, _ = fmt.Fprintln(w, "---\t------\t---------\t-------\t---\t----\t----")
	for _, c := range list {
		primary, cpt := "-", "-"
		if c.GroundTruth != nil {
			primary = orDash(c.GroundTruth.PrimaryCode)
			cpt = orDash(strings.Join(c.GroundTruth.ProcedureCodes, ","))
		}
		flag := ""
		if flagged != nil && flagged(c.Key) {
			flag = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Key,
			c.Status(),
			orDash(c.Specialty),
			primary,
			cpt,
			orDash(c.Metadata.NoteFilename),
			flag,
		)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.TestRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCASE\tPROMPT\tPRIMARY\tRECALL\tPRECISION\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t------\t---------\t-------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%.3f\t%s\n",
			truncateID(r.ID),
			r.CaseKey,
			truncate(r.PromptName, 24),
			matchLabel(r.Score.PrimaryMatch),
			aggregate.Round(r.Score.CPTRecall, 3),
			aggregate.Round(r.Score.CPTPrecision, 3),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunDetail writes one run with its code comparison.
func formatRunDetail(out io.Writer, r model.TestRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Case:\t%s\n", r.CaseKey)
	_, _ = fmt.Fprintf(w, "Prompt:\t%s\n", r.PromptName)
	_, _ = fmt.Fprintf(w, "Model:\t%s\n", r.Model)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "Primary:\t%s (gold %s, predicted %s)\n",
		matchLabel(r.Score.PrimaryMatch), orDash(r.Gold.PrimaryCode), orDash(r.Predicted.PrimaryCode))
	_, _ = fmt.Fprintf(w, "CPT recall:\t%.3f\n", aggregate.Round(r.Score.CPTRecall, 3))
	_, _ = fmt.Fprintf(w, "CPT precision:\t%.3f\n", aggregate.Round(r.Score.CPTPrecision, 3))
	_, _ = fmt.Fprintf(w, "Matched:\t%s\n", successText(orDash(strings.Join(r.Score.Matched, ", "))))
	_, _ = fmt.Fprintf(w, "Missed:\t%s\n", failedText(orDash(strings.Join(r.Score.Missed, ", "))))
	_, _ = fmt.Fprintf(w, "Hallucinated:\t%s\n", warnText(orDash(strings.Join(r.Score.Hallucinated, ", "))))
	_ = w.Flush()
	if r.Reasoning != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n%s\n", boldText("Reasoning"), r.Reasoning)
	}
}

// formatPromptStats writes one row per prompt with its trend delta.
func formatPromptStats(out io.Writer, summaries []aggregate.PromptSummary) {
	trend := aggregate.Trend(summaries)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROMPT\tTESTS\tPRIMARY%\tRECALL\tPRECISION\tOVERALL\tDELTA")
	_, _ = fmt.Fprintln(w, "------\t-----\t--------\t------\t---------\t-------\t-----")
	for i, s := range summaries {
		delta := "-"
		if i > 0 {
			delta = formatDelta(trend[i].Delta)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\t%.3f\t%.3f\t%.3f\t%s\n",
			truncate(s.PromptName, 24),
			s.Tests,
			aggregate.Percent(s.PrimaryMatchRate),
			aggregate.Round(s.MeanRecall, 3),
			aggregate.Round(s.MeanPrecision, 3),
			aggregate.Round(s.OverallScore, 3),
			delta,
		)
	}
	_ = w.Flush()
}

// formatCaseStats writes the best result per case.
func formatCaseStats(out io.Writer, summaries []aggregate.CaseSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CASE\tRUNS\tBEST PROMPT\tBEST SCORE\tBEST RUN")
	_, _ = fmt.Fprintln(w, "----\t----\t-----------\t----------\t--------")
	for _, c := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%.3f\t%s\n",
			c.CaseKey,
			len(c.Results),
			truncate(c.Best.PromptName, 24),
			aggregate.Round(c.BestScore, 3),
			truncateID(c.Best.ID),
		)
	}
	_ = w.Flush()
}

// formatComparison writes a head-to-head summary of two prompts.
func formatComparison(out io.Writer, cmp aggregate.Comparison) {
	_, _ = fmt.Fprintf(out, "%s vs %s over %d shared case(s): %s improved, %s regressed, %d unchanged\n",
		boldText(cmp.PromptA), boldText(cmp.PromptB), len(cmp.Cases),
		successText(cmp.Improved), failedText(cmp.Regressed), cmp.Unchanged)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CASE\tSCORE A\tSCORE B")
	for _, d := range cmp.Cases {
		_, _ = fmt.Fprintf(w, "%s\t%.3f\t%.3f\n", d.CaseKey, d.ScoreA, d.ScoreB)
	}
	_ = w.Flush()
}

// formatHealth writes a status snapshot.
func formatHealth(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Cases:\t%d (complete %d, truth only %d, note only %d)\n",
		snap.Cases,
		snap.CasesByStatus[string(model.CaseStatusComplete)],
		snap.CasesByStatus[string(model.CaseStatusTruthOnly)],
		snap.CasesByStatus[string(model.CaseStatusNoteOnly)],
	)
	_, _ = fmt.Fprintf(w, "Runs:\t%d\n", snap.Runs)
	_, _ = fmt.Fprintf(w, "Prompts:\t%d\n", snap.Prompts)
	_, _ = fmt.Fprintf(w, "Flagged:\t%d\n", snap.Flagged)
	_, _ = fmt.Fprintf(w, "Store:\t%s (breaker %s, %d failed call(s))\n",
		reachable(snap.StoreReachable), snap.StoreBreaker, snap.StoreFailures)
	_, _ = fmt.Fprintf(w, "Model:\t%s\n", yesNo(snap.ModelReady))
	_ = w.Flush()
	for _, a := range alerts {
		label := warnText(a.Severity)
		if a.Severity == "high" {
			label = failedText(a.Severity)
		}
		_, _ = fmt.Fprintf(out, "[%s] %s\n", label, a.Message)
	}
}

func reachable(ok bool) string {
	if ok {
		return successText("reachable")
	}
	return failedText("unreachable")
}

func matchLabel(ok bool) string {
	if ok {
		return successText("match")
	}
	return failedText("miss")
}

func formatDelta(d float64) string {
	s := fmt.Sprintf("%+.3f", aggregate.Round(d, 3))
	switch {
	case d > 0:
		return successText(s)
	case d < 0:
		return failedText(s)
	default:
		return s
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
