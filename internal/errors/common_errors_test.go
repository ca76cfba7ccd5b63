package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnknownSeries = errors.New("unknown series")

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{
			name:     "lookup with sentinel",
			err:      NewLookupError(`risk factor "Beta" is not recognised`, errUnknownSeries),
			wantType: ErrTypeLookup,
			wantMsg:  `risk factor "Beta" is not recognised: unknown series`,
		},
		{
			name:     "network",
			err:      NewNetworkError("download failed", fmt.Errorf("connection refused")),
			wantType: ErrTypeNetwork,
			wantMsg:  "download failed: connection refused",
		},
		{
			name:     "parsing without cause",
			err:      NewParsingError("worksheet is empty", nil),
			wantType: ErrTypeParsing,
			wantMsg:  "worksheet is empty",
		},
		{
			name:     "validation",
			err:      NewValidationError("keys are only accepted for risk-factors", nil),
			wantType: ErrTypeValidation,
			wantMsg:  "keys are only accepted for risk-factors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := fmt.Errorf("fetch SMB: %w", NewLookupError("lookup failed", errUnknownSeries))

	assert.ErrorIs(t, err, errUnknownSeries)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "lookup failed", appErr.Message)
	assert.Nil(t, NewParsingError("bad", nil).Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := NewLookupError("unknown series key", nil).
		WithContext("family", "risk-factors").
		WithContext("key", "Beta")
	assert.Equal(t, map[string]interface{}{"family": "risk-factors", "key": "Beta"}, err.Context)

	bare := &AppError{Type: ErrTypeParsing, Message: "bad date"}
	bare.WithContext("row", 4)
	assert.Equal(t, 4, bare.Context["row"])
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewNetworkError("status 503", nil))

	assert.Equal(t, ErrTypeNetwork, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrTypeNetwork))
	assert.False(t, IsType(wrapped, ErrTypeLookup))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}
