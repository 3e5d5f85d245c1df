// Package aggregate rolls the run ledger up by prompt and by case. Every
// function is pure and recomputes from the runs it is given.
package aggregate

import (
	"math"
	"slices"
	"time"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/scoring"
)

// PromptSummary aggregates all runs of one prompt name.
type PromptSummary struct {
	PromptName       string    `json:"prompt_name"`
	PromptText       string    `json:"prompt_text"`
	Tests            int       `json:"tests"`
	PrimaryMatches   int       `json:"primary_matches"`
	PrimaryMatchRate float64   `json:"primary_match_rate"`
	MeanRecall       float64   `json:"mean_recall"`
	MeanPrecision    float64   `json:"mean_precision"`
	OverallScore     float64   `json:"overall_score"`
	LatestRun        time.Time `json:"latest_run"`
}

// CaseSummary holds every run of one case, newest first, and the best of them.
type CaseSummary struct {
	CaseKey   string          `json:"case_key"`
	Results   []model.TestRun `json:"results"`
	Best      model.TestRun   `json:"best"`
	BestScore float64         `json:"best_score"`
}

// RunValue is the per-run figure used to rank results: 1 for a primary match
// plus procedure recall.
func RunValue(r model.TestRun) float64 {
	v := r.Score.CPTRecall
	if r.Score.PrimaryMatch {
		v++
	}
	return v
}

// RunPrecision derives precision from counts: distinct predicted procedure
// codes minus hallucinated ones, over distinct predicted codes.
func RunPrecision(r model.TestRun) float64 {
	predicted := scoring.CodeSet(r.Predicted.ProcedureCodes).Size()
	if predicted == 0 {
		return 0
	}
	return float64(predicted-len(r.Score.Hallucinated)) / float64(predicted)
}

// ByPrompt groups runs by prompt name. Groups are ordered by their most
// recent run, oldest first; ties keep first-seen order.
func ByPrompt(runs []model.TestRun) []PromptSummary {
	type acc struct {
		sum       PromptSummary
		recall    float64
		precision float64
	}
	index := make(map[string]int)
	var groups []*acc

	for _, r := range runs {
		i, ok := index[r.PromptName]
		if !ok {
			i = len(groups)
			index[r.PromptName] = i
			groups = append(groups, &acc{sum: PromptSummary{PromptName: r.PromptName}})
		}
		g := groups[i]
		g.sum.Tests++
		if r.Score.PrimaryMatch {
			g.sum.PrimaryMatches++
		}
		g.recall += r.Score.CPTRecall
		g.precision += RunPrecision(r)
		if g.sum.LatestRun.IsZero() || r.CreatedAt.After(g.sum.LatestRun) {
			g.sum.LatestRun = r.CreatedAt
			g.sum.PromptText = r.PromptText
		}
	}

	out := make([]PromptSummary, 0, len(groups))
	for _, g := range groups {
		n := float64(g.sum.Tests)
		s := g.sum
		s.PrimaryMatchRate = float64(s.PrimaryMatches) / n
		s.MeanRecall = g.recall / n
		s.MeanPrecision = g.precision / n
		s.OverallScore = (s.PrimaryMatchRate + s.MeanRecall) / 2
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b PromptSummary) int {
		return a.LatestRun.Compare(b.LatestRun)
	})
	return out
}

// ByCase groups runs by case key, in first-seen order. Each case's results are
// sorted newest first and the best result is the first one with the highest
// RunValue in that order.
func ByCase(runs []model.TestRun) []CaseSummary {
	index := make(map[string]int)
	var out []CaseSummary

	for _, r := range runs {
		i, ok := index[r.CaseKey]
		if !ok {
			i = len(out)
			index[r.CaseKey] = i
			out = append(out, CaseSummary{CaseKey: r.CaseKey})
		}
		out[i].Results = append(out[i].Results, r)
	}

	for i := range out {
		c := &out[i]
		slices.SortStableFunc(c.Results, func(a, b model.TestRun) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
		c.Best = c.Results[0]
		c.BestScore = RunValue(c.Best)
		for _, r := range c.Results[1:] {
			if v := RunValue(r); v > c.BestScore {
				c.Best, c.BestScore = r, v
			}
		}
	}
	return out
}

// Round rounds x to the given number of decimal places. Rates are displayed
// with 3 places, percentages with 1.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Percent renders a rate as a percentage rounded to one decimal.
func Percent(rate float64) float64 {
	return Round(rate*100, 1)
}
