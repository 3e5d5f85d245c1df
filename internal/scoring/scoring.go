// Package scoring compares a predicted coding with the gold standard.
package scoring

import (
	"slices"
	"strings"

	"github.com/hashicorp/go-set/v2"

	"github.com/sells-group/coding-eval/internal/model"
)

// Normalize lower-cases and trims a code. Modifiers are kept, so "99214-25"
// and "99214" stay distinct.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// CodeSet returns the normalized, de-duplicated set of codes. Codes that are
// blank after trimming are dropped.
func CodeSet(codes []string) *set.Set[string] {
	s := set.New[string](len(codes))
	for _, c := range codes {
		if n := Normalize(c); n != "" {
			s.Insert(n)
		}
	}
	return s
}

// Score computes primary match, procedure recall/precision and the three set
// differences. Rates are 0 (never NaN) when the relevant set is empty.
func Score(gold model.GroundTruth, pred model.Prediction) model.Score {
	goldSet := CodeSet(gold.ProcedureCodes)
	predSet := CodeSet(pred.ProcedureCodes)

	matched := sorted(goldSet.Intersect(predSet))
	missed := sorted(goldSet.Difference(predSet))
	hallucinated := sorted(predSet.Difference(goldSet))

	return model.Score{
		PrimaryMatch: Normalize(gold.PrimaryCode) == Normalize(pred.PrimaryCode),
		CPTRecall:    ratio(len(matched), goldSet.Size()),
		CPTPrecision: ratio(len(matched), predSet.Size()),
		Matched:      matched,
		Missed:       missed,
		Hallucinated: hallucinated,
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func sorted(c set.Collection[string]) []string {
	out := c.(*set.Set[string]).Slice()
	slices.Sort(out)
	if out == nil {
		out = []string{}
	}
	return out
}
