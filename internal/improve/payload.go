// Package improve builds prompt-refinement requests from run history and
// operator-flagged cases.
package improve

import (
	"fmt"
	"strings"

	"github.com/sells-group/coding-eval/internal/aggregate"
	"github.com/sells-group/coding-eval/internal/model"
)

const (
	// DefaultDetailRuns is the number of most recent runs listed in detail.
	DefaultDetailRuns = 10
	// DefaultExcerptChars is the note excerpt length for flagged cases.
	DefaultExcerptChars = 2000

	truncationMarker = "[... note truncated ...]"
)

// Guidelines are the fixed editing rules sent with every request.
var Guidelines = []string{
	"Generalize: improve the instructions so they apply to all notes, not just the examples shown.",
	"Do not overfit to specific codes; never hard-code the codes listed above into the prompt.",
	"Preserve the required output schema exactly: a JSON object with primary_code, secondary_codes, procedure_codes and reasoning.",
	"If flagged cases are present, prioritize changes that would fix them.",
}

// Request is the input to one improvement proposal. Runs are newest first.
type Request struct {
	CurrentPrompt string
	Runs          []model.TestRun
	Flagged       []model.Case
}

// PayloadOptions bounds the size of the payload.
type PayloadOptions struct {
	DetailRuns   int
	ExcerptChars int
}

func (o PayloadOptions) withDefaults() PayloadOptions {
	if o.DetailRuns <= 0 {
		o.DetailRuns = DefaultDetailRuns
	}
	if o.ExcerptChars <= 0 {
		o.ExcerptChars = DefaultExcerptChars
	}
	return o
}

// BuildPayload renders the analysis request as a single free-text
// instruction.
func BuildPayload(req Request, opts PayloadOptions) string {
	opts = opts.withDefaults()
	hs := aggregate.History(req.Runs)

	var b strings.Builder
	b.WriteString("You are improving a prompt used by an AI medical coder. ")
	b.WriteString("Analyze the test results below and rewrite the prompt to fix the failure patterns.\n\n")

	b.WriteString("## Current prompt\n")
	b.WriteString(req.CurrentPrompt)
	b.WriteString("\n\n")

	b.WriteString("## Performance summary\n")
	fmt.Fprintf(&b, "Total tests: %d\n", hs.Total)
	fmt.Fprintf(&b, "Primary diagnosis match rate: %.1f%%\n", aggregate.Percent(hs.PrimaryMatchRate))
	fmt.Fprintf(&b, "Missed procedure codes: %s\n", joinCodes(hs.Missed))
	fmt.Fprintf(&b, "Hallucinated procedure codes: %s\n\n", joinCodes(hs.Hallucinated))

	recent := req.Runs
	if len(recent) > opts.DetailRuns {
		recent = recent[:opts.DetailRuns]
	}
	if len(recent) > 0 {
		fmt.Fprintf(&b, "## Recent test runs (%d most recent)\n", len(recent))
		for i, r := range recent {
			fmt.Fprintf(&b, "%d. Case %s, prompt %q, primary match: %s\n", i+1, r.CaseKey, r.PromptName, yesNo(r.Score.PrimaryMatch))
			fmt.Fprintf(&b, "   Gold: primary %s; procedures %s\n", orNone(r.Gold.PrimaryCode), joinCodes(r.Gold.ProcedureCodes))
			fmt.Fprintf(&b, "   Predicted: primary %s; procedures %s\n", orNone(r.Predicted.PrimaryCode), joinCodes(r.Predicted.ProcedureCodes))
		}
		b.WriteString("\n")
	}

	if len(req.Flagged) > 0 {
		b.WriteString("## Flagged cases (highest priority)\n")
		for _, c := range req.Flagged {
			writeFlagged(&b, c, latestFor(req.Runs, c.Key), opts.ExcerptChars)
		}
	}

	b.WriteString("## Guidelines\n")
	for _, g := range Guidelines {
		b.WriteString("- ")
		b.WriteString(g)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn only the complete revised prompt text, with no commentary.\n")
	return b.String()
}

func writeFlagged(b *strings.Builder, c model.Case, latest *model.TestRun, excerptChars int) {
	fmt.Fprintf(b, "### Case %s\n", c.Key)
	if gt := c.GroundTruth; gt != nil {
		fmt.Fprintf(b, "Gold standard: primary %s; secondary %s; procedures %s\n",
			orNone(gt.PrimaryCode), joinCodes(gt.SecondaryCodes), joinCodes(gt.ProcedureCodes))
		if gt.Notes != "" {
			fmt.Fprintf(b, "Auditor notes: %s\n", gt.Notes)
		}
	} else {
		b.WriteString("Gold standard: not available\n")
	}

	if latest != nil {
		fmt.Fprintf(b, "Latest outcome (prompt %q): primary %s (match: %s); procedures %s; missed %s; hallucinated %s\n",
			latest.PromptName, orNone(latest.Predicted.PrimaryCode), yesNo(latest.Score.PrimaryMatch),
			joinCodes(latest.Predicted.ProcedureCodes), joinCodes(latest.Score.Missed), joinCodes(latest.Score.Hallucinated))
	} else {
		b.WriteString("Latest outcome: not yet tested\n")
	}

	if c.RawText != "" {
		b.WriteString("Note excerpt:\n")
		b.WriteString(Excerpt(c.RawText, excerptChars))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// Excerpt returns the first n characters of text, followed by a truncation
// marker when anything was cut.
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "\n" + truncationMarker
}

// latestFor returns the first run for key; runs are newest first.
func latestFor(runs []model.TestRun, key string) *model.TestRun {
	for i := range runs {
		if runs[i].CaseKey == key {
			return &runs[i]
		}
	}
	return nil
}

func joinCodes(codes []string) string {
	if len(codes) == 0 {
		return "none"
	}
	return strings.Join(codes, ", ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
