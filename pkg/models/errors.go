package models

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// ErrorKind classifies an extraction failure
type ErrorKind string

const (
	ErrorKindUnknown      ErrorKind = "unknown"
	ErrorKindPrivate      ErrorKind = "private"
	ErrorKindUnavailable  ErrorKind = "unavailable"
	ErrorKindAuthRequired ErrorKind = "auth_required"
	ErrorKindForbidden    ErrorKind = "forbidden"
	ErrorKindNotFound     ErrorKind = "not_found"
)

// ExtractionError is returned by extraction backends that can classify their own failures
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type kindRule struct {
	kind  ErrorKind
	match func(msg string) bool
}

// Order matters: a message such as "Private video. Sign in if you've been granted access"
// must classify as private, not auth_required.
var kindRules = []kindRule{
	{ErrorKindPrivate, func(msg string) bool { return strings.Contains(msg, "Private video") }},
	{ErrorKindUnavailable, func(msg string) bool { return strings.Contains(msg, "Video unavailable") }},
	{ErrorKindAuthRequired, func(msg string) bool {
		return strings.Contains(msg, "Sign in") || strings.Contains(strings.ToLower(msg), "login")
	}},
	{ErrorKindForbidden, func(msg string) bool { return strings.Contains(msg, "HTTP Error 403") }},
	{ErrorKindNotFound, func(msg string) bool { return strings.Contains(msg, "HTTP Error 404") }},
}

// ClassifyMessage matches free-text backend output against known failure phrases
func ClassifyMessage(msg string) ErrorKind {
	rule, ok := lo.Find(kindRules, func(r kindRule) bool {
		return r.match(msg)
	})
	if !ok {
		return ErrorKindUnknown
	}
	return rule.kind
}

// KindOf returns the structured kind carried by err, falling back to message classification
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) && extractionErr.Kind != "" && extractionErr.Kind != ErrorKindUnknown {
		return extractionErr.Kind
	}
	return ClassifyMessage(err.Error())
}
