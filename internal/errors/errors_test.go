package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorConstructors(t *testing.T) {
	tests := []struct {
		name        string
		err         *APIError
		wantStatus  int
		wantCode    string
		wantDetails interface{}
	}{
		{
			name:        "invalid request",
			err:         InvalidRequestWithError(fmt.Errorf("bad keys")),
			wantStatus:  http.StatusBadRequest,
			wantCode:    CodeInvalidRequest,
			wantDetails: "bad keys",
		},
		{
			name:        "single field",
			err:         ErrValidation("agg", "agg must be one of: day, month, year"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    CodeValidationFailed,
			wantDetails: ValidationError{Field: "agg", Message: "agg must be one of: day, month, year"},
		},
		{
			name:        "several fields",
			err:         NewValidationErrors([]ValidationError{{Field: "family", Message: "family is required"}}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    CodeValidationFailed,
			wantDetails: ValidationErrors{Errors: []ValidationError{{Field: "family", Message: "family is required"}}},
		},
		{
			name:        "series not found",
			err:         SeriesNotFound(`risk factor "Beta" is not recognised`, map[string]interface{}{"key": "Beta"}),
			wantStatus:  http.StatusNotFound,
			wantCode:    CodeSeriesNotFound,
			wantDetails: map[string]interface{}{"key": "Beta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.Equal(t, tt.wantDetails, tt.err.Details)
			assert.Equal(t, tt.err.Message, tt.err.Error())
		})
	}
}

func TestAPIError_Render(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/series/risk-factors/Beta", nil)

	require.NoError(t, render.Render(w, r, SeriesNotFound("unknown series", nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeSeriesNotFound, body["error_code"])
	assert.NotContains(t, body, "details")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusBadGateway, TypeUpstreamFailure, "Upstream Unavailable", "connection refused", "/api/v1/series/loan-fees").
		WithExtension("trace_id", "abc").
		WithExtension("status", "shadowed")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, TypeUpstreamFailure, body["type"])
	assert.EqualValues(t, http.StatusBadGateway, body["status"])
	assert.Equal(t, "connection refused", body["detail"])
	assert.Equal(t, "abc", body["trace_id"])
	assert.NotContains(t, body, "Extensions")

	bare := &ProblemDetails{Type: TypeInternal, Title: "Internal Server Error", Status: 500}
	bare.WithExtension("detail", "leaked")
	data, err = json.Marshal(bare)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"/errors/internal","title":"Internal Server Error","status":500}`, string(data))
}
