package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "nefincli/internal/errors"
	"nefincli/internal/series"
)

// SeriesPipeline is the subset of *series.Pipeline the service needs.
type SeriesPipeline interface {
	Fetch(ctx context.Context, req series.Request) (*series.Table, error)
	RiskFactors(ctx context.Context, keys []string, agg, fn string) (*series.Table, error)
}

// StructValidator validates tagged request structs.
type StructValidator interface {
	Struct(s interface{}) error
}

// SeriesQuery is one retrieval request as received from a caller.
// Series names a single key; Keys is only accepted for risk factors.
type SeriesQuery struct {
	Family      string   `json:"family" validate:"required,oneof=cost-of-capital loan-fees illiquidity risk-factors"`
	Series      string   `json:"series" validate:"max=64"`
	Keys        []string `json:"keys" validate:"max=32,dive,required,max=64"`
	Aggregation string   `json:"agg" validate:"max=16"`
	Function    string   `json:"func" validate:"max=16"`
}

// SeriesResult is a resolved table plus every warning raised producing it.
type SeriesResult struct {
	Family   series.Family    `json:"family"`
	Series   string           `json:"series,omitempty"`
	Table    *series.Table    `json:"data"`
	Warnings []series.Warning `json:"warnings"`
}

// FamilyInfo describes one family's vocabulary.
type FamilyInfo struct {
	Name          series.Family `json:"name"`
	Label         string        `json:"label"`
	DateLayout    string        `json:"date_layout"`
	Keys          []string      `json:"keys"`
	CanonicalKeys []string      `json:"canonical_keys"`
	Periods       []string      `json:"periods"`
	Functions     []string      `json:"functions"`
}

// DefaultFetchTimeout bounds a shared download when no timeout is configured.
const DefaultFetchTimeout = 30 * time.Second

// SeriesService validates queries and runs them through the pipeline.
// Identical queries in flight at the same time share one download; nothing
// is kept once the call returns. The shared download is detached from the
// caller that started it and bounded by the fetch timeout instead, so one
// caller giving up does not fail the others.
type SeriesService struct {
	pipeline     SeriesPipeline
	validator    StructValidator
	group        singleflight.Group
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// SeriesServiceOption configures a SeriesService.
type SeriesServiceOption func(*SeriesService)

// WithFetchTimeout bounds each shared download. Non-positive values keep
// DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) SeriesServiceOption {
	return func(s *SeriesService) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// NewSeriesService creates a new series service
func NewSeriesService(pipeline SeriesPipeline, validator StructValidator, logger *slog.Logger, opts ...SeriesServiceOption) *SeriesService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SeriesService{
		pipeline:     pipeline,
		validator:    validator,
		fetchTimeout: DefaultFetchTimeout,
		logger:       logger.With(slog.String("component", "series_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Families lists every family with its keys, period tokens and functions.
func (s *SeriesService) Families(ctx context.Context) []FamilyInfo {
	fams := series.Families()
	out := make([]FamilyInfo, 0, len(fams))
	for _, f := range fams {
		out = append(out, FamilyInfo{
			Name:          f,
			Label:         f.Label(),
			DateLayout:    f.Layout().String(),
			Keys:          f.Keys(),
			CanonicalKeys: f.CanonicalKeys(),
			Periods:       f.PeriodTokens(),
			Functions:     series.AggFuncs(),
		})
	}
	return out
}

// Get validates q, then fetches and aggregates the series it names.
func (s *SeriesService) Get(ctx context.Context, q SeriesQuery) (*SeriesResult, error) {
	if s.validator != nil {
		if err := s.validator.Struct(q); err != nil {
			return nil, err
		}
	}

	fam, err := series.ParseFamily(q.Family)
	if err != nil {
		return nil, err
	}
	if len(q.Keys) > 0 && fam != series.FamilyRiskFactors {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("keys are only accepted for %s", series.FamilyRiskFactors), nil).
			WithContext("family", q.Family)
	}

	key := q.cacheKey()
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// Keeps trace and logging values from the first caller.
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.run(shared, fam, q)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "series request coalesced", slog.String("key", key))
		}
		return res.Val.(*SeriesResult), nil
	}
}

func (s *SeriesService) run(ctx context.Context, fam series.Family, q SeriesQuery) (*SeriesResult, error) {
	ctx, warnings := series.WithWarningLog(ctx)
	start := time.Now()

	var (
		table *series.Table
		err   error
	)
	if fam == series.FamilyRiskFactors && (len(q.Keys) > 0 || q.Series == "") {
		keys := q.Keys
		if q.Series != "" {
			keys = append([]string{q.Series}, keys...)
		}
		table, err = s.pipeline.RiskFactors(ctx, keys, q.Aggregation, q.Function)
	} else {
		table, err = s.pipeline.Fetch(ctx, series.Request{
			Family:      fam,
			Series:      q.Series,
			Aggregation: q.Aggregation,
			Function:    q.Function,
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "series request failed",
			slog.String("family", string(fam)),
			slog.String("series", q.Series),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "series request served",
		slog.String("family", string(fam)),
		slog.String("series", q.Series),
		slog.Int("rows", table.Len()),
		slog.Int("columns", table.Width()),
		slog.Int("warnings", warnings.Len()),
		slog.Duration("duration", time.Since(start)))

	ws := warnings.Warnings()
	if ws == nil {
		ws = []series.Warning{}
	}
	return &SeriesResult{Family: fam, Series: q.Series, Table: table, Warnings: ws}, nil
}

func (q SeriesQuery) cacheKey() string {
	return strings.Join([]string{
		q.Family, q.Series, strings.Join(q.Keys, ","), q.Aggregation, q.Function,
	}, "\x00")
}
