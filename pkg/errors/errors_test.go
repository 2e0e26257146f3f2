package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("record 1"), ErrorTypeNotFound, http.StatusNotFound},
		{"malformed", NewMalformedError("svc", cause), ErrorTypeMalformed, http.StatusBadGateway},
		{"internal", NewInternalError("oops"), ErrorTypeInternal, http.StatusInternalServerError},
		{"timeout", NewTimeoutError("fetch"), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"unavailable", NewUnavailableError("svc"), ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"storage", NewStorageError("put", cause), ErrorTypeStorage, http.StatusInternalServerError},
		{"network", NewNetworkError("down", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"external", NewExternalError("svc", 503), ErrorTypeExternal, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}
}

func TestAppError_Chain(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := fmt.Errorf("outer: %w", NewMalformedError("svc", sentinel))

	assert.ErrorIs(t, err, sentinel)
	assert.True(t, IsType(err, ErrorTypeMalformed))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "caused by: sentinel")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))

	plain := Wrap(errors.New("raw"), "loading")
	assert.True(t, IsType(plain, ErrorTypeInternal))

	app := Wrap(NewValidationError("bad id"), "records")
	assert.True(t, IsValidation(app))
	assert.Equal(t, "records: bad id", GetAppError(app).Message)
}

func TestErrorHandler(t *testing.T) {
	handle := func(debug bool, err error) (int, ErrorResponse) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		NewErrorHandler(zap.NewNop(), debug).Handle(rec, req, err)
		var out ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	status, out := handle(false, NewNotFoundError("record 7"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.True(t, out.Error)
	assert.Equal(t, "NOT_FOUND", out.Type)
	assert.Equal(t, "record 7 not found", out.Message)
	assert.Nil(t, out.Details)

	status, out = handle(false, errors.New("secret"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "An internal error occurred", out.Message)

	_, out = handle(true, errors.New("secret"))
	assert.Equal(t, "secret", out.Message)

	_, out = handle(true, NewNetworkError("down", errors.New("refused")))
	assert.Equal(t, "refused", out.Details["cause"])
}
