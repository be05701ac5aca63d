package apperrors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "validation",
			err:        NewValidationError("branch", "branch is required"),
			wantStatus: http.StatusBadRequest,
			wantDetail: "branch is required",
		},
		{
			name:       "validation with custom status",
			err:        &ValidationError{Field: "file", Message: "too large", Status: http.StatusRequestEntityTooLarge},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantDetail: "too large",
		},
		{
			name:       "upstream 4xx keeps status and body",
			err:        &UpstreamError{Op: "forecast", Status: 404, Body: []byte(`{"detail":"No CSVs found"}`)},
			wantStatus: 404,
			wantDetail: `{"detail":"No CSVs found"}`,
		},
		{
			name:       "upstream 5xx keeps status and body",
			err:        &UpstreamError{Op: "simulate", Status: 502, Body: []byte("bad gateway")},
			wantStatus: 502,
			wantDetail: "bad gateway",
		},
		{
			name:       "wrapped upstream",
			err:        fmt.Errorf("dashboard: %w", &UpstreamError{Op: "forecast", Status: 422, Body: []byte("invalid")}),
			wantStatus: 422,
			wantDetail: "invalid",
		},
		{
			name:       "transport",
			err:        &TransportError{Op: "forecast", Err: fmt.Errorf("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "forecast provider is unreachable",
		},
		{
			name:       "transport timeout",
			err:        &TransportError{Op: "forecast", Timeout: true, Err: context.DeadlineExceeded},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "forecast provider timed out",
		},
		{
			name:       "unknown",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ToProblem(tt.err)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantDetail, p.Detail)
		})
	}
}

func TestWriteProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteProblem(rec, &UpstreamError{Op: "forecast", Status: 400, Body: []byte("horizon_days out of range")})

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, ProblemContentType, rec.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "horizon_days out of range", p.Detail)
	assert.Equal(t, "Bad Request", p.Title)
}

func TestClassifiers(t *testing.T) {
	transport := &TransportError{Op: "x", Err: context.Canceled}
	assert.True(t, IsTransport(fmt.Errorf("wrap: %w", transport)))
	assert.False(t, IsUpstream(transport))
	assert.ErrorIs(t, transport, context.Canceled)

	assert.True(t, IsUpstream(&UpstreamError{Status: 500}))
	assert.True(t, IsValidation(NewValidationError("", "empty body")))
	assert.False(t, IsValidation(fmt.Errorf("plain")))
}
