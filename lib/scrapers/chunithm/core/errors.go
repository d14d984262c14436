package core

import (
	"errors"
	"fmt"
)

// Error codes printed on the portal's error page.
const (
	ErrorCodeGeneric = 100001
	// the session was invalidated, usually because the account logged in elsewhere
	ErrorCodeInvalidSession = 200004
	// the session outlived its maximum age
	ErrorCodeConnectionTimeExpired = 200002
	// a submitted player name contains a word the portal refuses
	ErrorCodeNameContainsForbiddenWord = 110102
)

// ErrMaintenance is returned when the portal answers 503, this happens
// during scheduled maintenance and is never retried.
var ErrMaintenance = errors.New("chunithm-net is under maintenance")

// ErrInvalidCredential is returned when the stored login cookie can no
// longer be exchanged for a session. the caller must discard the
// stored session and ask the user to log in again.
var ErrInvalidCredential = errors.New("login cookie is invalid or expired")

// ServiceError is an error reported by the portal's own error page.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chunithm-net error code %d", e.Code)
	}
	return fmt.Sprintf("chunithm-net error code %d: %s", e.Code, e.Message)
}

// SessionInvalid reports whether the error means the session must be
// refreshed through the authentication gateway.
func (e *ServiceError) SessionInvalid() bool {
	return e.Code == ErrorCodeInvalidSession || e.Code == ErrorCodeConnectionTimeExpired
}

func (e *ServiceError) ForbiddenWord() bool {
	return e.Code == ErrorCodeNameContainsForbiddenWord
}

// TransportError wraps network failures and unexpected HTTP statuses.
type TransportError struct {
	Method string
	URL    string
	// 0 when no response was received
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means an element the parser relies on was missing or
// malformed, the page layout most likely changed upstream.
type ParseError struct {
	Page  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.Page, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnknownDifficultyError is returned for a difficulty marker that does
// not map to any known difficulty.
type UnknownDifficultyError struct {
	Slug string
}

func (e *UnknownDifficultyError) Error() string {
	return fmt.Sprintf("unknown difficulty %q", e.Slug)
}

// ValidationError is returned when caller input breaks a local rule or
// the portal rejected it with a readable reason.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
