package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, CaseStatusComplete, DeriveStatus(true, true))
	assert.Equal(t, CaseStatusTruthOnly, DeriveStatus(true, false))
	assert.Equal(t, CaseStatusNoteOnly, DeriveStatus(false, true))
}

func TestCase_StatusFollowsHalves(t *testing.T) {
	c := Case{Key: "123"}
	c.RawText = "MRN: 123"
	assert.Equal(t, CaseStatusNoteOnly, c.Status())

	c.GroundTruth = &GroundTruth{PrimaryCode: "N20.0"}
	assert.Equal(t, CaseStatusComplete, c.Status())

	c.RawText = ""
	assert.Equal(t, CaseStatusTruthOnly, c.Status())
}

func TestCase_CloneIsDeep(t *testing.T) {
	c := Case{Key: "1", GroundTruth: &GroundTruth{ProcedureCodes: []string{"52356"}}}
	cp := c.Clone()
	cp.GroundTruth.ProcedureCodes[0] = "52000"
	cp.GroundTruth.PrimaryCode = "X"

	assert.Equal(t, "52356", c.GroundTruth.ProcedureCodes[0])
	assert.Empty(t, c.GroundTruth.PrimaryCode)
}

func TestAuditEntry_GroundTruthCopiesSlices(t *testing.T) {
	e := AuditEntry{Identifier: "7654321", PrimaryCode: "N20.0", ProcedureCodes: []string{"52356"}, Notes: "ok"}
	gt := e.GroundTruth()
	gt.ProcedureCodes[0] = "changed"

	assert.Equal(t, "52356", e.ProcedureCodes[0])
	assert.Equal(t, "N20.0", gt.PrimaryCode)
	assert.Equal(t, "ok", gt.Notes)
}
