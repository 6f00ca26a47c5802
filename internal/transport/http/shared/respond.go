// Package shared centralizes JSON response and error translation so every
// handler speaks the same envelope.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "supplytrace/pkg/domain-errors"
)

// statusByCode maps the command error taxonomy onto HTTP statuses. Every
// command maps to one request/response pair; the code travels in the body so
// callers can branch without parsing messages.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeInvalidName:  http.StatusBadRequest,
	dErrors.CodeInvalidRole:  http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeBadRequest:   http.StatusBadRequest,

	dErrors.CodeNotRegistered: http.StatusForbidden,
	dErrors.CodeNotVerified:   http.StatusForbidden,
	dErrors.CodeWrongRole:     http.StatusForbidden,
	dErrors.CodeNotOwner:      http.StatusForbidden,
	dErrors.CodeNotAuthorized: http.StatusForbidden,

	dErrors.CodeNotFound: http.StatusNotFound,

	dErrors.CodeAlreadyRegistered:    http.StatusConflict,
	dErrors.CodeAlreadyVerified:      http.StatusConflict,
	dErrors.CodeAlreadyFlagged:       http.StatusConflict,
	dErrors.CodeInvalidTransition:    http.StatusConflict,
	dErrors.CodeRecipientNotVerified: http.StatusConflict,
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded domain error into its response. Unknown
// errors collapse to a bare internal envelope; the core produces no
// free-form text for callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, errorEnvelope{Error: string(dErrors.CodeInternal)})
		return
	}
	var message string
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	WriteJSON(w, status, errorEnvelope{Error: string(code), Message: message})
}
