package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call so callers can decide between retrying,
// re-authenticating and surfacing the server's message.
type Kind string

const (
	// KindAuth means the session could not be refreshed.
	KindAuth Kind = "auth"
	// KindValidation is a 4xx whose detail should be shown verbatim.
	KindValidation Kind = "validation"
	// KindTransient covers transport failures, timeouts and 5xx responses.
	KindTransient Kind = "transient"
	// KindDomain carries a server error code the workflow reacts to.
	KindDomain Kind = "domain"
)

// Server error codes the sync workflow reacts to.
const (
	CodeTableFull       = "TABLE_FULL"
	CodeNoSubmissions   = "NO_SUBMISSIONS"
	CodeAIUnavailable   = "AI_UNAVAILABLE"
	CodeNotSeated       = "NOT_SEATED"
	CodeInvalidJoinCode = "INVALID_JOIN_CODE"
)

var domainCodes = map[string]bool{
	CodeTableFull:       true,
	CodeNoSubmissions:   true,
	CodeAIUnavailable:   true,
	CodeNotSeated:       true,
	CodeInvalidJoinCode: true,
}

// Error is returned by every Client call that did not succeed.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("%s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasCode reports whether err carries the given server error code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func classify(status int, code, message string) *Error {
	e := &Error{Status: status, Code: code, Message: message}
	switch {
	case domainCodes[code]:
		e.Kind = KindDomain
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status >= 500:
		e.Kind = KindTransient
	default:
		e.Kind = KindValidation
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}
