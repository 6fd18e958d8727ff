package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/candle-clicker/internal/apperror"
)

func TestWriteError_Mapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("content", "content is required"), http.StatusBadRequest, "invalid_input", "content is required"},
		{"wrapped validation", fmt.Errorf("sending: %w", apperror.ValidationFailed("x", "bad x")), http.StatusBadRequest, "invalid_input", "bad x"},
		{"unauthorized", apperror.Unauthorized("invalid username or password"), http.StatusUnauthorized, "unauthorized", "invalid username or password"},
		{"not found", apperror.NotFound("account", "abc"), http.StatusNotFound, "not_found", "account not found with id abc"},
		{"conflict", apperror.Conflict("account", "alice"), http.StatusConflict, "conflict", `account "alice" already exists`},
		{"plain error hides detail", errors.New("sqlite: no such table: accounts"), http.StatusInternalServerError, "internal_error", "an internal error occurred"},
		{"body too large", &http.MaxBytesError{Limit: maxBodyBytes}, http.StatusRequestEntityTooLarge, "payload_too_large", "request body must be 1 MiB or smaller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			writeError(rec, logger, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestWriteRawJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	writeRawJSON(rec, http.StatusOK, []byte(`{"a":1}`))

	assert.Equal(t, `{"a":1}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
