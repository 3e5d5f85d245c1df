package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coding-eval/internal/model"
)

// caseColumns are the JSON-encoded parts of a case row. GroundTruth is nil
// when the gold half has not been ingested.
type caseColumns struct {
	GroundTruth []byte
	Metadata    []byte
}

func encodeCase(c model.Case) (caseColumns, error) {
	var cols caseColumns
	if c.GroundTruth != nil {
		gt, err := json.Marshal(c.GroundTruth)
		if err != nil {
			return cols, eris.Wrapf(err, "marshal ground truth for case %s", c.Key)
		}
		cols.GroundTruth = gt
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return cols, eris.Wrapf(err, "marshal metadata for case %s", c.Key)
	}
	cols.Metadata = meta
	return cols, nil
}

func decodeCase(c *model.Case, cols caseColumns) error {
	if len(cols.GroundTruth) > 0 {
		var gt model.GroundTruth
		if err := json.Unmarshal(cols.GroundTruth, &gt); err != nil {
			return eris.Wrapf(err, "unmarshal ground truth for case %s", c.Key)
		}
		c.GroundTruth = &gt
	}
	if len(cols.Metadata) > 0 {
		if err := json.Unmarshal(cols.Metadata, &c.Metadata); err != nil {
			return eris.Wrapf(err, "unmarshal metadata for case %s", c.Key)
		}
	}
	return nil
}

type runColumns struct {
	Score     []byte
	Predicted []byte
	Gold      []byte
}

func encodeRun(r model.TestRun) (runColumns, error) {
	var cols runColumns
	var err error
	if cols.Score, err = json.Marshal(r.Score); err != nil {
		return cols, eris.Wrapf(err, "marshal score for run %s", r.ID)
	}
	if cols.Predicted, err = json.Marshal(r.Predicted); err != nil {
		return cols, eris.Wrapf(err, "marshal prediction for run %s", r.ID)
	}
	if cols.Gold, err = json.Marshal(r.Gold); err != nil {
		return cols, eris.Wrapf(err, "marshal gold for run %s", r.ID)
	}
	return cols, nil
}

func decodeRun(r *model.TestRun, cols runColumns) error {
	if err := json.Unmarshal(cols.Score, &r.Score); err != nil {
		return eris.Wrapf(err, "unmarshal score for run %s", r.ID)
	}
	if err := json.Unmarshal(cols.Predicted, &r.Predicted); err != nil {
		return eris.Wrapf(err, "unmarshal prediction for run %s", r.ID)
	}
	if err := json.Unmarshal(cols.Gold, &r.Gold); err != nil {
		return eris.Wrapf(err, "unmarshal gold for run %s", r.ID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}
