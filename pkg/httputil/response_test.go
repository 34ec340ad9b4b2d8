package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neosign/identity/pkg/errors"
)

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusOK, "user created and verification email sent")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "user created and verification email sent", decodeMessage(t, rec))
}

func TestWriteError_AppErrorKeepsStatusAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	WriteError(rec, req, apperrors.NotFound("user not found"), "authen/login", testLogger(&bytes.Buffer{}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", decodeMessage(t, rec))
}

func TestWriteError_UnexpectedErrorIsRedacted(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	WriteError(rec, req, errors.New("pq: relation users does not exist"), "authen/login", testLogger(&buf))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "an unexpected error occurred", decodeMessage(t, rec))
	// The real cause and the call-site tag land in the log, not the response.
	assert.Contains(t, buf.String(), "relation users does not exist")
	assert.Contains(t, buf.String(), "authen/login")
}

func TestWriteError_InternalAppErrorIsRedacted(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/user", nil)

	WriteError(rec, req, apperrors.Internal(errors.New("kaboom")), "user/get", testLogger(&buf))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "an unexpected error occurred", decodeMessage(t, rec))
	assert.Contains(t, buf.String(), "kaboom")
}
