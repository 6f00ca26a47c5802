// Package domainerrors defines the coded errors returned by ledger commands.
//
// Every rejection a caller can trigger is one of these codes; services never
// surface free-form failures. Stores return sentinel errors
// (pkg/platform/sentinel) and services translate them into coded errors here,
// so the transport layer can map codes to responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code discriminates rejection kinds. The set is closed: a malformed command
// is always expressible as one of these.
type Code string

const (
	// Identity registry rejections.
	CodeAlreadyRegistered Code = "already_registered"
	CodeInvalidRole       Code = "invalid_role"
	CodeInvalidName       Code = "invalid_name"
	CodeAlreadyVerified   Code = "already_verified"

	// Command validator rejections.
	CodeNotRegistered Code = "not_registered"
	CodeNotVerified   Code = "not_verified"
	CodeWrongRole     Code = "wrong_role"
	CodeNotOwner      Code = "not_owner"
	CodeNotAuthorized Code = "not_authorized"

	// Product registry rejections.
	CodeInvalidInput         Code = "invalid_input"
	CodeRecipientNotVerified Code = "recipient_not_verified"
	CodeInvalidTransition    Code = "invalid_transition"
	CodeAlreadyFlagged       Code = "already_flagged"

	// Shared.
	CodeNotFound   Code = "not_found"
	CodeBadRequest Code = "bad_request"
	CodeInternal   Code = "internal"
)

// Error is a coded domain error. Message is for operators and logs; callers
// should branch on Code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error while keeping it
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability:
// dErrors.Is(err, dErrors.CodeNotFound).
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
