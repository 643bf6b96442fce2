package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/sidesa/desa-admin/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: apperrors.NotFound("missing"), want: http.StatusNotFound},
		{err: apperrors.New(apperrors.ErrCodeConflict, "duplicate"), want: http.StatusConflict},
		{err: apperrors.Validation("bad"), want: http.StatusBadRequest},
		{err: apperrors.Unauthorized("nope"), want: http.StatusUnauthorized},
		{err: apperrors.Unavailable("down"), want: http.StatusServiceUnavailable},
		{err: apperrors.New(apperrors.ErrCodeTimeout, "slow"), want: http.StatusGatewayTimeout},
		{err: apperrors.New(apperrors.ErrCodeInternal, "oops"), want: http.StatusInternalServerError},
		{err: fmt.Errorf("wrapped: %w", apperrors.NotFound("missing")), want: http.StatusNotFound},
		{err: errors.New("plain"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrorParams{Code: http.StatusTeapot, ErrCode: "teapot", Err: errors.New("short and stout")})
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"error":"teapot","message":"short and stout"}`, rec.Body.String())
}
