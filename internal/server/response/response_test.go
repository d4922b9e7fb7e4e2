package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pubmap/pkg/errors"
)

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"runs": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"runs":3},"error":null}`, rec.Body.String())
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		code   string
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "Not found", "/x") }, http.StatusNotFound, "NOT_FOUND"},
		{"method", func(w http.ResponseWriter) { MethodNotAllowed(w, "DELETE") }, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "starting") }, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, assert.AnError) }, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, errors.New("password=hunter2"))
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.NewAuthenticationError("imap", "login", "bad password", nil), "AUTHENTICATION_FAILED"},
		{errors.NewTransportError("sheets", "append", http.StatusTooManyRequests, nil), "RATE_LIMITED"},
		{errors.NewTransportError("sheets", "append", http.StatusBadGateway, nil), "TRANSPORT_FAILED"},
		{errors.NewStructuralError("worksheet", "map", "missing"), "STRUCTURAL_ERROR"},
		{errors.NewValidationError("hour", 25, "out of range"), "INVALID_INPUT"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err))
	}
}
