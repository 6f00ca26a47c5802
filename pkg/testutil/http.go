// Package testutil carries the HTTP plumbing shared by handler and router
// tests: request builders, a recorder runner, and assertions over the error
// envelope the API returns.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ErrorEnvelope mirrors the wire shape of a rejected command: the machine
// code in "error" and an optional human-readable "message".
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewJSONRequest builds a request whose body is the JSON encoding of v.
// A nil v produces a bodyless request with the JSON content type still set.
func NewJSONRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()

	var body io.Reader
	if v != nil {
		raw, err := json.Marshal(v)
		require.NoError(t, err, "encode request body")
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest builds a bodyless request.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a request around a raw body string, for cases
// where the test needs malformed JSON on the wire.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest runs req through handler and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ReadBody drains the recorded response body.
func ReadBody(t *testing.T, rr *httptest.ResponseRecorder) []byte {
	t.Helper()
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err, "read response body")
	return body
}

// UnmarshalResponse decodes the recorded body into T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(ReadBody(t, rr), &result), "decode response body")
	return &result
}

// UnmarshalErrorResponse decodes the recorded body as an error envelope.
func UnmarshalErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(ReadBody(t, rr), &envelope), "decode error envelope")
	return envelope
}

// AssertStatus checks the recorded status code.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code")
}

// AssertStatusOK checks for 200 OK.
func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertErrorCode checks the "error" field of the envelope.
func AssertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedCode, UnmarshalErrorResponse(t, rr).Error, "unexpected error code")
}

// AssertStatusAndError checks the status code and the envelope's error code
// together, the usual shape of a rejection assertion.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	AssertStatus(t, rr, expectedStatus)
	AssertErrorCode(t, rr, expectedCode)
}

// AssertJSONContains checks one key of the decoded response body without
// committing the test to the full response type.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal(ReadBody(t, rr), &result), "decode response body")
	assert.Equal(t, expected, result[key], "unexpected value for key %q", key)
}
