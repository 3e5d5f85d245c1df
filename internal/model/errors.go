package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Error taxonomy. Wrap these with eris.Wrap and match with errors.Is.
var (
	ErrExtractionParse        = eris.New("extraction parse failure")
	ErrIdentifierNotFound     = eris.New("identifier not found")
	ErrMissingCredential      = eris.New("missing credential")
	ErrUpstreamCall           = eris.New("upstream call failure")
	ErrPersistenceUnavailable = eris.New("persistence unavailable")
	ErrInFlight               = eris.New("request already in flight")
	ErrCaseNotFound           = eris.New("case not found")
	ErrCaseIncomplete         = eris.New("case is not complete")
	ErrNoCandidate            = eris.New("no candidate prompt")
	ErrPromptNotFound         = eris.New("prompt not found")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrMissingCredential, "missing_credential"},
	{ErrExtractionParse, "extraction_parse_failure"},
	{ErrUpstreamCall, "upstream_call_failure"},
	{ErrPersistenceUnavailable, "persistence_unavailable"},
	{ErrIdentifierNotFound, "identifier_not_found"},
	{ErrInFlight, "in_flight"},
	{ErrCaseNotFound, "case_not_found"},
	{ErrCaseIncomplete, "case_incomplete"},
	{ErrNoCandidate, "no_candidate"},
	{ErrPromptNotFound, "prompt_not_found"},
}

// ErrorKind maps err onto its taxonomy label, or "internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// taggedError carries both a taxonomy sentinel and the underlying cause.
type taggedError struct {
	kind  error
	cause error
	msg   string
}

// Tag classifies cause under kind. errors.Is matches either of them.
func Tag(kind, cause error, msg string) error {
	return &taggedError{kind: kind, cause: cause, msg: msg}
}

func (e *taggedError) Error() string {
	s := e.kind.Error()
	if e.msg != "" {
		s = e.msg + ": " + s
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *taggedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}
