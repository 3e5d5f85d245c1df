// Package extract derives case identifiers from unstructured document text.
package extract

import "regexp"

// identifierPatterns are tried in order; the first match wins. Audit
// documents use the "id #" form (hash and colon optional), clinical notes
// fall through to the looser record-number forms, and the bare seven-digit fallback accepts some false
// positives (dates, phone fragments) in exchange for coverage.
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bid\s*#?\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bMRN\s*[:#]?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bMedical\s+Record\s+(?:Number|#)\s*:?\s*(\d+)`),
	regexp.MustCompile(`\b(\d{7})\b`),
}

// Identifier returns the patient record number found in text.
func Identifier(text string) (string, bool) {
	for _, re := range identifierPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}
