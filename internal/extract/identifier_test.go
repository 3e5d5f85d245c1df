package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"audit id hash", "Patient ID #42 seen for follow-up", "42", true},
		{"id hash no space", "id#9981", "9981", true},
		{"id spaced hash", "ID # 12345", "12345", true},
		{"id colon without hash", "ID: 42", "42", true},
		{"id bare", "id 42", "42", true},
		{"id hash colon", "Id #: 314", "314", true},
		{"mrn colon", "MRN: 7654321", "7654321", true},
		{"mrn no colon", "mrn 55501", "55501", true},
		{"medical record number", "Medical Record Number: 889900", "889900", true},
		{"medical record hash", "medical record # 4411", "4411", true},
		{"seven digit fallback", "Encounter for 1234567 on file", "1234567", true},
		{"eight digits is not a fallback match", "Account 12345678", "", false},
		{"nothing", "No identifiers in this note.", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Identifier(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifier_Precedence(t *testing.T) {
	// The id # form wins over a bare seven-digit number even when the
	// number appears first.
	got, ok := Identifier("Phone 5551234. Audit id #42.")
	assert.True(t, ok)
	assert.Equal(t, "42", got)

	got, ok = Identifier("Ref 7777777, MRN: 31337")
	assert.True(t, ok)
	assert.Equal(t, "31337", got)

	got, ok = Identifier("MRN: 7654321, ID: 42")
	assert.True(t, ok)
	assert.Equal(t, "42", got)

	got, ok = Identifier("Medical Record Number 808 MRN 909")
	assert.True(t, ok)
	assert.Equal(t, "909", got)
}

func TestIdentifier_WordBoundary(t *testing.T) {
	// "paid #5" must not be read as "id #5".
	got, ok := Identifier("Copay paid #5 at desk")
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = Identifier("Fluid 500 given")
	assert.False(t, ok)
	assert.Empty(t, got)
}
