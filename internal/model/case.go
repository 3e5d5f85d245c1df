package model

import "time"

// CaseStatus describes which halves of a case have been ingested.
type CaseStatus string

const (
	CaseStatusComplete  CaseStatus = "complete"
	CaseStatusTruthOnly CaseStatus = "truth_only"
	CaseStatusNoteOnly  CaseStatus = "note_only"
)

// DeriveStatus computes a case status from the halves present. Cases are only
// created by ingesting one half, so (false, false) is unreachable.
func DeriveStatus(hasTruth, hasText bool) CaseStatus {
	switch {
	case hasTruth && hasText:
		return CaseStatusComplete
	case hasTruth:
		return CaseStatusTruthOnly
	default:
		return CaseStatusNoteOnly
	}
}

// GroundTruth is the auditor-verified coding for one case.
type GroundTruth struct {
	PrimaryCode    string   `json:"primary_code" yaml:"primary_code"`
	SecondaryCodes []string `json:"secondary_codes" yaml:"secondary_codes"`
	ProcedureCodes []string `json:"procedure_codes" yaml:"procedure_codes"`
	Notes          string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Clone returns a deep copy so stored runs never alias a case's slices.
func (g GroundTruth) Clone() GroundTruth {
	g.SecondaryCodes = append([]string(nil), g.SecondaryCodes...)
	g.ProcedureCodes = append([]string(nil), g.ProcedureCodes...)
	return g
}

// CaseMetadata records where each half of a case came from.
type CaseMetadata struct {
	GoldSource   string `json:"gold_source,omitempty"`
	GoldFileRef  string `json:"gold_file_ref,omitempty"`
	NoteFilename string `json:"note_filename,omitempty"`
}

// Case is the unit of evaluation: one patient encounter keyed by its record
// number, combining gold-standard codes and/or a clinical note.
type Case struct {
	Key         string       `json:"key"`
	Specialty   string       `json:"specialty,omitempty"`
	GroundTruth *GroundTruth `json:"ground_truth,omitempty"`
	RawText     string       `json:"raw_text,omitempty"`
	Metadata    CaseMetadata `json:"metadata"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasGroundTruth reports whether the gold half has been ingested.
func (c Case) HasGroundTruth() bool { return c.GroundTruth != nil }

// HasRawText reports whether the note half has been ingested.
func (c Case) HasRawText() bool { return c.RawText != "" }

// Status is always derived, never stored independently.
func (c Case) Status() CaseStatus {
	return DeriveStatus(c.HasGroundTruth(), c.HasRawText())
}

// Clone returns a deep copy of the case.
func (c Case) Clone() Case {
	if c.GroundTruth != nil {
		gt := c.GroundTruth.Clone()
		c.GroundTruth = &gt
	}
	return c
}

// AuditEntry is one gold-standard record as extracted from an audit document.
type AuditEntry struct {
	Identifier              string   `json:"identifier"`
	SourceFilenameReference string   `json:"source_filename_reference"`
	PrimaryCode             string   `json:"primary_code"`
	SecondaryCodes          []string `json:"secondary_codes"`
	ProcedureCodes          []string `json:"procedure_codes"`
	Notes                   string   `json:"notes"`
}

// GroundTruth converts the entry into the case's gold half.
func (e AuditEntry) GroundTruth() GroundTruth {
	return GroundTruth{
		PrimaryCode:    e.PrimaryCode,
		SecondaryCodes: append([]string(nil), e.SecondaryCodes...),
		ProcedureCodes: append([]string(nil), e.ProcedureCodes...),
		Notes:          e.Notes,
	}
}
