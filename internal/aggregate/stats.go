package aggregate

import (
	"slices"

	"github.com/hashicorp/go-set/v2"

	"github.com/sells-group/coding-eval/internal/model"
)

// HistoryStats summarises a run history for the improvement request.
type HistoryStats struct {
	Total            int      `json:"total"`
	PrimaryMatches   int      `json:"primary_matches"`
	PrimaryMatchRate float64  `json:"primary_match_rate"`
	Missed           []string `json:"missed"`
	Hallucinated     []string `json:"hallucinated"`
}

// History totals runs and collects the de-duplicated missed and hallucinated
// procedure codes across all of them.
func History(runs []model.TestRun) HistoryStats {
	missed := set.New[string](0)
	hallucinated := set.New[string](0)
	var hs HistoryStats
	for _, r := range runs {
		hs.Total++
		if r.Score.PrimaryMatch {
			hs.PrimaryMatches++
		}
		missed.InsertSlice(r.Score.Missed)
		hallucinated.InsertSlice(r.Score.Hallucinated)
	}
	if hs.Total > 0 {
		hs.PrimaryMatchRate = float64(hs.PrimaryMatches) / float64(hs.Total)
	}
	hs.Missed = sortedSlice(missed)
	hs.Hallucinated = sortedSlice(hallucinated)
	return hs
}

// TrendPoint is one prompt version on the overall-score trend line.
type TrendPoint struct {
	PromptName   string  `json:"prompt_name"`
	OverallScore float64 `json:"overall_score"`
	Delta        float64 `json:"delta"`
}

// Trend computes the overall-score change between consecutive summaries, as
// ordered by ByPrompt. The first point has a zero delta.
func Trend(summaries []PromptSummary) []TrendPoint {
	out := make([]TrendPoint, 0, len(summaries))
	for i, s := range summaries {
		p := TrendPoint{PromptName: s.PromptName, OverallScore: s.OverallScore}
		if i > 0 {
			p.Delta = s.OverallScore - summaries[i-1].OverallScore
		}
		out = append(out, p)
	}
	return out
}

// CaseDelta compares two prompts on one case.
type CaseDelta struct {
	CaseKey string  `json:"case_key"`
	ScoreA  float64 `json:"score_a"`
	ScoreB  float64 `json:"score_b"`
}

// Comparison counts, over cases run under both prompts, how often prompt B's
// latest result beat, lost to or tied prompt A's latest result.
type Comparison struct {
	PromptA   string      `json:"prompt_a"`
	PromptB   string      `json:"prompt_b"`
	Improved  int         `json:"improved"`
	Regressed int         `json:"regressed"`
	Unchanged int         `json:"unchanged"`
	Cases     []CaseDelta `json:"cases"`
}

// Compare uses each prompt's latest run per case. Cases are listed in key
// order.
func Compare(runs []model.TestRun, a, b string) Comparison {
	latestA := latestByCase(runs, a)
	latestB := latestByCase(runs, b)

	cmp := Comparison{PromptA: a, PromptB: b}
	keys := make([]string, 0, len(latestA))
	for k := range latestA {
		if _, ok := latestB[k]; ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		d := CaseDelta{CaseKey: k, ScoreA: RunValue(latestA[k]), ScoreB: RunValue(latestB[k])}
		switch {
		case d.ScoreB > d.ScoreA:
			cmp.Improved++
		case d.ScoreB < d.ScoreA:
			cmp.Regressed++
		default:
			cmp.Unchanged++
		}
		cmp.Cases = append(cmp.Cases, d)
	}
	return cmp
}

func latestByCase(runs []model.TestRun, prompt string) map[string]model.TestRun {
	out := make(map[string]model.TestRun)
	for _, r := range runs {
		if r.PromptName != prompt {
			continue
		}
		if cur, ok := out[r.CaseKey]; !ok || r.CreatedAt.After(cur.CreatedAt) {
			out[r.CaseKey] = r
		}
	}
	return out
}

func sortedSlice(s *set.Set[string]) []string {
	out := s.Slice()
	slices.Sort(out)
	return out
}
