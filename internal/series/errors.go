package series

import (
	"errors"
	"fmt"

	apperrors "nefincli/internal/errors"
)

// Sentinel causes carried inside *apperrors.AppError values. Match them with
// errors.Is; classify with apperrors.TypeOf.
var (
	ErrUnknownFamily     = errors.New("unknown series family")
	ErrUnknownSeries     = errors.New("unknown series")
	ErrUnknownPeriod     = errors.New("unknown aggregation period")
	ErrUnknownAggFunc    = errors.New("unknown aggregation function")
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status")
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrEmptySheet        = errors.New("worksheet has no header row")
	ErrMissingColumn     = errors.New("missing column")
	ErrInvalidDate       = errors.New("invalid date")
	ErrDuplicateIndex    = errors.New("duplicate date in index")
)

func lookupError(cause error, format string, args ...any) *apperrors.AppError {
	return apperrors.NewLookupError(fmt.Sprintf(format, args...), cause)
}

func networkError(cause error, format string, args ...any) *apperrors.AppError {
	return apperrors.NewNetworkError(fmt.Sprintf(format, args...), cause)
}

func parsingError(cause error, format string, args ...any) *apperrors.AppError {
	return apperrors.NewParsingError(fmt.Sprintf(format, args...), cause)
}
