package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/coding-eval/internal/model"
)

// goldColumns maps normalized header names onto AuditEntry fields.
var goldColumns = map[string]string{
	"identifier":                "identifier",
	"id":                        "identifier",
	"mrn":                       "identifier",
	"patient_id":                "identifier",
	"medical_record_number":     "identifier",
	"source_filename_reference": "source",
	"source_file":               "source",
	"filename":                  "source",
	"file":                      "source",
	"primary_code":              "primary",
	"primary":                   "primary",
	"primary_dx":                "primary",
	"primary_diagnosis":         "primary",
	"secondary_codes":           "secondary",
	"secondary":                 "secondary",
	"secondary_dx":              "secondary",
	"procedure_codes":           "procedures",
	"procedures":                "procedures",
	"cpt":                       "procedures",
	"cpt_codes":                 "procedures",
	"notes":                     "notes",
	"auditor_notes":             "notes",
	"comments":                  "notes",
}

// ParseGoldXLSX reads audit entries from the first sheet of a workbook. The
// first row is a header; code lists are separated by commas, semicolons,
// pipes or newlines.
func ParseGoldXLSX(data []byte) ([]model.AuditEntry, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for j, cell := range sheet.Rows[0].Cells {
		if field, ok := goldColumns[normalizeHeader(cell.String())]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = j
			}
		}
	}
	for _, required := range []string{"identifier", "primary"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("xlsx: missing %s column", required)
		}
	}

	var entries []model.AuditEntry
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(field string) string {
			j, ok := cols[field]
			if !ok || j >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[j])
		}
		e := model.AuditEntry{
			Identifier:              get("identifier"),
			SourceFilenameReference: get("source"),
			PrimaryCode:             get("primary"),
			SecondaryCodes:          splitCodes(get("secondary")),
			ProcedureCodes:          splitCodes(get("procedures")),
			Notes:                   get("notes"),
		}
		if e.Identifier == "" && e.PrimaryCode == "" && len(e.ProcedureCodes) == 0 {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", "#", "").Replace(h)
	return strings.Trim(h, "_")
}

func splitCodes(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
