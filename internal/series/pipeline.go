package series

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the NEFIN site root every resource path is relative to.
const DefaultBaseURL = "http://nefin.com.br/"

// AllSeries selects every canonical risk factor.
const AllSeries = "all"

const tracerName = "nefincli/series"

// Request names one series and how to aggregate it.
type Request struct {
	Family      Family
	Series      string
	Aggregation string
	Function    string
}

// Pipeline resolves, downloads, normalizes and resamples NEFIN series.
// A Pipeline holds no per-call state and may be shared between goroutines.
type Pipeline struct {
	base      *url.URL
	fetcher   Fetcher
	logger    *slog.Logger
	tracer    trace.Tracer
	observers Observers
	observer  Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBaseURL overrides DefaultBaseURL. A missing trailing slash is added.
func WithBaseURL(raw string) Option {
	return func(p *Pipeline) error {
		u, err := parseBase(raw)
		if err != nil {
			return err
		}
		p.base = u
		return nil
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) error {
		if f == nil {
			return fmt.Errorf("nil fetcher")
		}
		p.fetcher = f
		return nil
	}
}

// WithObserver adds an observer. The pipeline always logs through its
// logger as well.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) error {
		if o != nil {
			p.observers = append(p.observers, o)
		}
		return nil
	}
}

// WithLogger sets the logger used for progress and warning records.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) error {
		if l != nil {
			p.logger = l
		}
		return nil
	}
}

// WithTracer sets the tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) error {
		if t != nil {
			p.tracer = t
		}
		return nil
	}
}

// NewPipeline creates a pipeline. Without options it downloads from
// DefaultBaseURL with an HTTPFetcher and logs through slog.Default.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	base, _ := parseBase(DefaultBaseURL)
	p := &Pipeline{
		base:    base,
		fetcher: NewHTTPFetcher(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("configure pipeline: %w", err)
		}
	}
	p.observer = append(Observers{NewLogObserver(p.logger)}, p.observers...)
	return p, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", raw)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u, nil
}

// BaseURL returns the root resource paths are resolved against.
func (p *Pipeline) BaseURL() string {
	return p.base.String()
}

// URLFor resolves a series key to its download location without fetching.
func (p *Pipeline) URLFor(f Family, key string) (string, error) {
	spec, err := specFor(f)
	if err != nil {
		return "", err
	}
	_, loc, err := spec.resolve(key)
	if err != nil {
		return "", err
	}
	return p.resolveURL(loc)
}

func (p *Pipeline) resolveURL(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid resource location %q: %w", location, err)
	}
	return p.base.ResolveReference(ref).String(), nil
}

// plan is a fully validated request.
type plan struct {
	spec      *familySpec
	key       string
	resource  Resource
	url       string
	period    Period
	fn        AggFunc
	defaulted bool
}

func (p *Pipeline) plan(req Request) (*plan, error) {
	spec, err := specFor(req.Family)
	if err != nil {
		return nil, err
	}
	res, loc, err := spec.resolve(req.Series)
	if err != nil {
		return nil, err
	}
	period, err := spec.parsePeriod(req.Aggregation)
	if err != nil {
		return nil, err
	}
	fn, err := ParseAggFunc(req.Function)
	if err != nil {
		return nil, err
	}
	u, err := p.resolveURL(loc)
	if err != nil {
		return nil, err
	}

	pl := &plan{spec: spec, key: req.Series, resource: res, url: u, period: period, fn: fn}
	if period != PeriodNone && fn == "" {
		pl.fn = DefaultAggFunc
		pl.defaulted = true
	}
	return pl, nil
}

// Fetch downloads one series and resamples it as requested. Every lookup
// is checked before the network is touched.
func (p *Pipeline) Fetch(ctx context.Context, req Request) (*Table, error) {
	pl, err := p.plan(req)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, pl)
}

// CostOfCapital returns a sector's cost-of-capital series.
func (p *Pipeline) CostOfCapital(ctx context.Context, sector, agg, fn string) (*Table, error) {
	return p.Fetch(ctx, Request{Family: FamilyCostOfCapital, Series: sector, Aggregation: agg, Function: fn})
}

// LoanFees returns the loan fees series.
func (p *Pipeline) LoanFees(ctx context.Context, agg, fn string) (*Table, error) {
	return p.Fetch(ctx, Request{Family: FamilyLoanFees, Aggregation: agg, Function: fn})
}

// IlliquidityIndex returns the market illiquidity index.
func (p *Pipeline) IlliquidityIndex(ctx context.Context, agg, fn string) (*Table, error) {
	return p.Fetch(ctx, Request{Family: FamilyIlliquidity, Aggregation: agg, Function: fn})
}

// RiskFactor returns a single risk factor series.
func (p *Pipeline) RiskFactor(ctx context.Context, factor, agg, fn string) (*Table, error) {
	return p.Fetch(ctx, Request{Family: FamilyRiskFactors, Series: factor, Aggregation: agg, Function: fn})
}

// RiskFactors returns several risk factors joined on date. No keys, or the
// key "all", selects every canonical factor. Keys naming the same resource
// are fetched once. The call fails as a whole if any key is unknown or any
// download fails.
func (p *Pipeline) RiskFactors(ctx context.Context, keys []string, agg, fn string) (*Table, error) {
	spec := families[FamilyRiskFactors]
	keys = expandKeys(spec, keys)

	plans := make([]*plan, 0, len(keys))
	seen := make(map[Resource]bool, len(keys))
	for _, key := range keys {
		pl, err := p.plan(Request{Family: FamilyRiskFactors, Series: key, Aggregation: agg, Function: fn})
		if err != nil {
			return nil, err
		}
		if seen[pl.resource] {
			continue
		}
		seen[pl.resource] = true
		plans = append(plans, pl)
	}

	tables := make([]*Table, 0, len(plans))
	for _, pl := range plans {
		t, err := p.run(ctx, pl)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return OuterJoin(tables...)
}

func expandKeys(spec *familySpec, keys []string) []string {
	if len(keys) == 0 {
		return spec.canonical
	}
	var out []string
	for _, k := range keys {
		if k == AllSeries {
			out = append(out, spec.canonical...)
			continue
		}
		out = append(out, k)
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, pl *plan) (_ *Table, err error) {
	ctx, span := p.tracer.Start(ctx, "series.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("series.family", string(pl.spec.family)),
			attribute.String("series.key", pl.key),
			attribute.String("series.resource", string(pl.resource)),
			attribute.String("series.period", pl.period.String()),
			attribute.String("url.full", pl.url),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ev := FetchEvent{Family: pl.spec.family, Series: pl.key, Resource: pl.resource, URL: pl.url}
	p.observer.FetchStarted(ctx, ev)

	start := time.Now()
	t, n, err := p.download(ctx, pl)
	ev.Duration = time.Since(start)
	ev.Bytes = n
	ev.Err = err
	if t != nil {
		ev.Rows = t.Len()
	}
	p.observer.FetchCompleted(ctx, ev)
	if err != nil {
		return nil, err
	}

	if pl.period == PeriodNone {
		return t, nil
	}
	if pl.defaulted {
		p.warn(ctx, Warning{
			Code:   WarningAggFuncDefaulted,
			Family: pl.spec.family,
			Series: pl.key,
			Message: fmt.Sprintf("aggregation %q requested without a function, using %q",
				pl.period.String(), string(DefaultAggFunc)),
		})
	}
	span.SetAttributes(attribute.String("series.function", string(pl.fn)))
	return Resample(t, pl.period, pl.fn)
}

func (p *Pipeline) download(ctx context.Context, pl *plan) (*Table, int, error) {
	data, err := p.fetcher.Fetch(ctx, pl.url)
	if err != nil {
		return nil, 0, err
	}
	t, err := ReadTable(data, pl.spec.layout)
	if err != nil {
		return nil, len(data), fmt.Errorf("%s: %w", pl.url, err)
	}
	t.Source = pl.resource
	return t, len(data), nil
}

func (p *Pipeline) warn(ctx context.Context, w Warning) {
	if log := warningLogFrom(ctx); log != nil {
		log.add(w)
	}
	p.observer.Warn(ctx, w)
}
