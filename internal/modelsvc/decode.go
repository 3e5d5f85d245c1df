package modelsvc

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/coding-eval/internal/model"
)

var stringList = map[string]any{
	"type":  []any{"array", "null"},
	"items": map[string]any{"type": "string"},
}

var optionalString = map[string]any{"type": []any{"string", "null"}}

// entriesSchema describes the audit extraction response. Entries with an
// empty identifier are allowed through; the case repository skips them.
var entriesSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"identifier":                optionalString,
			"source_filename_reference": optionalString,
			"primary_code":              optionalString,
			"secondary_codes":           stringList,
			"procedure_codes":           stringList,
			"notes":                     optionalString,
		},
	},
}

var predictionSchema = map[string]any{
	"type":     "object",
	"required": []any{"primary_code", "procedure_codes"},
	"properties": map[string]any{
		"primary_code":    map[string]any{"type": "string"},
		"secondary_codes": stringList,
		"procedure_codes": stringList,
		"reasoning":       optionalString,
	},
}

// stripFences removes a surrounding markdown code fence, if any. Nothing else
// is trimmed from the response: prose around the JSON is a shape mismatch.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "{[") {
		// drop the info string, e.g. "json"
		text = text[nl+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// validate checks doc against schema and reports every violation.
func validate(schema map[string]any, doc []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return eris.Wrap(err, "invalid json")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return eris.New(strings.Join(msgs, "; "))
}

// decodeStrict strips fences, validates against schema and decodes into out.
// Any failure is an extraction parse failure.
func decodeStrict(text string, schema map[string]any, out any, what string) error {
	doc := []byte(stripFences(text))
	if len(doc) == 0 {
		return model.Tag(model.ErrExtractionParse, nil, "modelsvc: empty "+what+" response")
	}
	if err := validate(schema, doc); err != nil {
		return model.Tag(model.ErrExtractionParse, err, "modelsvc: "+what+" response")
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return model.Tag(model.ErrExtractionParse, err, "modelsvc: decode "+what)
	}
	return nil
}

func decodeEntries(text string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	if err := decodeStrict(text, entriesSchema, &entries, "audit entries"); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Identifier = strings.TrimSpace(entries[i].Identifier)
	}
	return entries, nil
}

func decodePrediction(text string) (model.Prediction, error) {
	var p model.Prediction
	if err := decodeStrict(text, predictionSchema, &p, "prediction"); err != nil {
		return model.Prediction{}, err
	}
	return p, nil
}
