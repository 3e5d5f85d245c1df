package model

import "time"

// Prediction is the model's coding output for one test run. It is only ever
// persisted embedded in a TestRun.
type Prediction struct {
	PrimaryCode    string   `json:"primary_code"`
	SecondaryCodes []string `json:"secondary_codes"`
	ProcedureCodes []string `json:"procedure_codes"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// Score compares one prediction with one gold standard.
type Score struct {
	PrimaryMatch bool     `json:"primary_match"`
	CPTRecall    float64  `json:"cpt_recall"`
	CPTPrecision float64  `json:"cpt_precision"`
	Matched      []string `json:"matched"`
	Missed       []string `json:"missed"`
	Hallucinated []string `json:"hallucinated"`
}

// TestRun is one immutable scored execution of a prompt against one case.
// Gold is a copy taken at run time, so later edits to the case never change
// history.
type TestRun struct {
	ID         string      `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	CaseKey    string      `json:"case_key"`
	Model      string      `json:"model"`
	PromptName string      `json:"prompt_name"`
	PromptText string      `json:"prompt_text"`
	Score      Score       `json:"score"`
	Predicted  Prediction  `json:"predicted"`
	Gold       GroundTruth `json:"gold"`
	Reasoning  string      `json:"reasoning,omitempty"`
}
