// Package testutil provides request builders and response assertions for
// handler tests.
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

// internalErrorCode mirrors the code the API writes for unexpected failures.
const internalErrorCode = "internal_error"

// ErrorBody is the API error envelope.
type ErrorBody struct {
	Error       string  `json:"error"`
	Description *string `json:"error_description"`
}

// NewJSONRequest creates a request whose body is body encoded as JSON.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody sends body verbatim, for malformed or hand-written JSON.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the response body into T. The body is left
// unread so a test can decode it again.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response: %s", rr.Body.String())
	return &result
}

// UnmarshalErrorResponse decodes the error envelope.
func UnmarshalErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	return *UnmarshalResponse[ErrorBody](t, rr)
}

// AssertStatusAndError checks the status and the envelope's error code. A
// description must accompany every client-facing error.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code, "unexpected status code")
	body := UnmarshalErrorResponse(t, rr)
	assert.Equal(t, expectedCode, body.Error, "unexpected error code")
	if assert.NotNil(t, body.Description, "error_description missing") {
		assert.NotEmpty(t, *body.Description)
	}
}

// AssertInternalError checks for a 500 whose envelope carries no detail and
// whose body does not mention any of the hidden strings.
func AssertInternalError(t *testing.T, rr *httptest.ResponseRecorder, hidden ...string) {
	t.Helper()
	assert.Equal(t, http.StatusInternalServerError, rr.Code, "unexpected status code")
	body := UnmarshalErrorResponse(t, rr)
	assert.Equal(t, internalErrorCode, body.Error)
	assert.Nil(t, body.Description, "internal errors carry no description")
	for _, h := range hidden {
		assert.NotContains(t, rr.Body.String(), h)
	}
}
