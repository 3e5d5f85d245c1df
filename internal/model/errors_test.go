package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"wrapped sentinel", eris.Wrap(ErrMissingCredential, "modelsvc: run coding"), "missing_credential"},
		{"tagged", Tag(ErrPersistenceUnavailable, errors.New("dial tcp: refused"), "store: upsert case"), "persistence_unavailable"},
		{"fmt wrapped", fmt.Errorf("ingest: %w", ErrExtractionParse), "extraction_parse_failure"},
		{"unknown", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestTag_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Tag(ErrUpstreamCall, cause, "modelsvc: run coding")

	assert.ErrorIs(t, err, ErrUpstreamCall)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "modelsvc: run coding: upstream call failure: connection reset by peer", err.Error())
}

func TestSync_Merge(t *testing.T) {
	boom := errors.New("boom")

	assert.Equal(t, Committed(), Sync{}.Merge(Committed()))
	assert.True(t, Committed().Merge(Committed()).Durable())

	merged := Committed().Merge(LocalOnly(boom)).Merge(Committed())
	assert.False(t, merged.Durable())
	assert.Equal(t, boom, merged.Err)

	first := LocalOnly(boom).Merge(LocalOnly(errors.New("second")))
	assert.Equal(t, boom, first.Err)
}
