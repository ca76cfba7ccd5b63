package series

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WarningAggFuncDefaulted is raised when a period is requested without an
// aggregation function and DefaultAggFunc is used instead.
const WarningAggFuncDefaulted = "agg_func_defaulted"

// Warning is a non-fatal condition noticed while serving a request.
type Warning struct {
	Code    string `json:"code"`
	Family  Family `json:"family"`
	Series  string `json:"series,omitempty"`
	Message string `json:"message"`
}

// FetchEvent describes one download. Bytes, Rows, Duration and Err are only
// set on completion.
type FetchEvent struct {
	Family   Family
	Series   string
	Resource Resource
	URL      string
	Bytes    int
	Rows     int
	Duration time.Duration
	Err      error
}

// Observer receives progress and warning events from a Pipeline.
// Implementations must be safe for concurrent use.
type Observer interface {
	FetchStarted(ctx context.Context, ev FetchEvent)
	FetchCompleted(ctx context.Context, ev FetchEvent)
	Warn(ctx context.Context, w Warning)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) FetchStarted(context.Context, FetchEvent)   {}
func (NopObserver) FetchCompleted(context.Context, FetchEvent) {}
func (NopObserver) Warn(context.Context, Warning)              {}

// LogObserver writes events to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an observer logging through logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger.With(slog.String("component", "series"))}
}

func (o *LogObserver) FetchStarted(ctx context.Context, ev FetchEvent) {
	o.logger.InfoContext(ctx, "Downloading series",
		slog.String("family", string(ev.Family)),
		slog.String("series", ev.Series),
		slog.String("resource", string(ev.Resource)),
		slog.String("url", ev.URL))
}

func (o *LogObserver) FetchCompleted(ctx context.Context, ev FetchEvent) {
	attrs := []any{
		slog.String("family", string(ev.Family)),
		slog.String("resource", string(ev.Resource)),
		slog.Duration("duration", ev.Duration),
	}
	if ev.Err != nil {
		o.logger.ErrorContext(ctx, "Series download failed", append(attrs, slog.String("error", ev.Err.Error()))...)
		return
	}
	o.logger.InfoContext(ctx, "Series download complete",
		append(attrs, slog.Int("bytes", ev.Bytes), slog.Int("rows", ev.Rows))...)
}

func (o *LogObserver) Warn(ctx context.Context, w Warning) {
	o.logger.WarnContext(ctx, w.Message,
		slog.String("code", w.Code),
		slog.String("family", string(w.Family)),
		slog.String("series", w.Series))
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (m Observers) FetchStarted(ctx context.Context, ev FetchEvent) {
	for _, o := range m {
		o.FetchStarted(ctx, ev)
	}
}

func (m Observers) FetchCompleted(ctx context.Context, ev FetchEvent) {
	for _, o := range m {
		o.FetchCompleted(ctx, ev)
	}
}

func (m Observers) Warn(ctx context.Context, w Warning) {
	for _, o := range m {
		o.Warn(ctx, w)
	}
}

// WarningLog collects the warnings raised while a context is in use.
type WarningLog struct {
	mu       sync.Mutex
	warnings []Warning
}

type warningLogKey struct{}

// WithWarningLog returns a context whose pipeline calls record their
// warnings in the returned log.
func WithWarningLog(ctx context.Context) (context.Context, *WarningLog) {
	log := &WarningLog{}
	return context.WithValue(ctx, warningLogKey{}, log), log
}

func warningLogFrom(ctx context.Context) *WarningLog {
	log, _ := ctx.Value(warningLogKey{}).(*WarningLog)
	return log
}

func (l *WarningLog) add(w Warning) {
	l.mu.Lock()
	l.warnings = append(l.warnings, w)
	l.mu.Unlock()
}

// Warnings returns a copy of the collected warnings.
func (l *WarningLog) Warnings() []Warning {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Warning(nil), l.warnings...)
}

// Len returns the number of collected warnings.
func (l *WarningLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}
