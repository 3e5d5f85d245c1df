// Package report exports the run ledger and its aggregates as a workbook.
package report

import (
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/coding-eval/internal/aggregate"
	"github.com/sells-group/coding-eval/internal/model"
)

// Sheet names.
const (
	SheetRuns    = "Runs"
	SheetPrompts = "Prompts"
	SheetCases   = "Cases"
)

var runHeader = []string{
	"Run ID", "Created At", "Case", "Prompt", "Model",
	"Primary Match", "CPT Recall", "CPT Precision",
	"Gold Primary", "Predicted Primary", "Gold CPT", "Predicted CPT",
	"Matched", "Missed", "Hallucinated", "Reasoning",
}

var promptHeader = []string{
	"Prompt", "Tests", "Primary Matches", "Primary Match %",
	"Mean Recall", "Mean Precision", "Overall Score", "Latest Run",
}

var caseHeader = []string{"Case", "Runs", "Best Prompt", "Best Score", "Best Run ID"}

// Build assembles the workbook for runs (newest first).
func Build(runs []model.TestRun) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetRuns)
	if err != nil {
		return nil, eris.Wrap(err, "report: add runs sheet")
	}
	addRow(sheet, runHeader)
	for _, r := range runs {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(r.CreatedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(r.CaseKey)
		row.AddCell().SetString(r.PromptName)
		row.AddCell().SetString(r.Model)
		row.AddCell().SetBool(r.Score.PrimaryMatch)
		row.AddCell().SetFloat(aggregate.Round(r.Score.CPTRecall, 3))
		row.AddCell().SetFloat(aggregate.Round(r.Score.CPTPrecision, 3))
		row.AddCell().SetString(r.Gold.PrimaryCode)
		row.AddCell().SetString(r.Predicted.PrimaryCode)
		row.AddCell().SetString(joinCodes(r.Gold.ProcedureCodes))
		row.AddCell().SetString(joinCodes(r.Predicted.ProcedureCodes))
		row.AddCell().SetString(joinCodes(r.Score.Matched))
		row.AddCell().SetString(joinCodes(r.Score.Missed))
		row.AddCell().SetString(joinCodes(r.Score.Hallucinated))
		row.AddCell().SetString(r.Reasoning)
	}

	sheet, err = f.AddSheet(SheetPrompts)
	if err != nil {
		return nil, eris.Wrap(err, "report: add prompts sheet")
	}
	addRow(sheet, promptHeader)
	for _, s := range aggregate.ByPrompt(runs) {
		row := sheet.AddRow()
		row.AddCell().SetString(s.PromptName)
		row.AddCell().SetInt(s.Tests)
		row.AddCell().SetInt(s.PrimaryMatches)
		row.AddCell().SetFloat(aggregate.Percent(s.PrimaryMatchRate))
		row.AddCell().SetFloat(aggregate.Round(s.MeanRecall, 3))
		row.AddCell().SetFloat(aggregate.Round(s.MeanPrecision, 3))
		row.AddCell().SetFloat(aggregate.Round(s.OverallScore, 3))
		row.AddCell().SetString(s.LatestRun.UTC().Format(time.RFC3339))
	}

	sheet, err = f.AddSheet(SheetCases)
	if err != nil {
		return nil, eris.Wrap(err, "report: add cases sheet")
	}
	addRow(sheet, caseHeader)
	for _, c := range aggregate.ByCase(runs) {
		row := sheet.AddRow()
		row.AddCell().SetString(c.CaseKey)
		row.AddCell().SetInt(len(c.Results))
		row.AddCell().SetString(c.Best.PromptName)
		row.AddCell().SetFloat(aggregate.Round(c.BestScore, 3))
		row.AddCell().SetString(c.Best.ID)
	}
	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, runs []model.TestRun) error {
	f, err := Build(runs)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write xlsx")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func joinCodes(codes []string) string {
	return strings.Join(codes, ", ")
}
