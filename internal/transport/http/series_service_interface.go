package http

import (
	"context"

	"nefincli/internal/services"
)

// SeriesServiceInterface defines the interface for series operations
type SeriesServiceInterface interface {
	Families(ctx context.Context) []services.FamilyInfo
	Get(ctx context.Context, q services.SeriesQuery) (*services.SeriesResult, error)
}
