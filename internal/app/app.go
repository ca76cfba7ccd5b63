package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"nefincli/internal/config"
	apierrors "nefincli/internal/errors"
	"nefincli/internal/infrastructure"
	customMiddleware "nefincli/internal/middleware"
	"nefincli/internal/series"
	"nefincli/internal/services"
	handlers "nefincli/internal/transport/http"
)

var (
	// Version is set at build time with -ldflags "-X nefincli/internal/app.Version=..."
	Version = config.AppVersion
	// BuildTime is set at compile time
	BuildTime = time.Now().UTC().Format(time.RFC3339)
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Services      *ServiceContainer
	Pipeline      *series.Pipeline
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	ErrorHandler  *apierrors.ErrorHandler

	fetcher series.Fetcher
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Series *services.SeriesService
	Health *services.HealthService
}

// Option customises an Application before its services are built.
type Option func(*Application)

// WithLogger replaces the global logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.Logger = l }
}

// WithFetcher replaces the HTTP fetcher used by the pipeline.
func WithFetcher(f series.Fetcher) Option {
	return func(a *Application) { a.fetcher = f }
}

// NewApplication loads configuration and builds the application.
func NewApplication(opts ...Option) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(cfg, opts...)
}

// New builds the application from cfg with dependency injection.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = logger
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	metrics, err := infrastructure.CreateMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = metrics
	a.ErrorHandler = apierrors.NewErrorHandler(a.Logger, cfg.Logging.Level == "debug")

	if err := a.initializeServices(); err != nil {
		return nil, err
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

func (a *Application) initializeServices() error {
	if a.fetcher == nil {
		a.fetcher = series.NewHTTPFetcher(
			series.WithHTTPClient(infrastructure.NewHTTPClient(a.Config.Source.Timeout)),
			series.WithUserAgent(a.Config.Source.UserAgent),
			series.WithMaxBytes(a.Config.Source.MaxBytes),
		)
	}

	pipeline, err := series.NewPipeline(
		series.WithBaseURL(a.Config.Source.BaseURL),
		series.WithFetcher(a.fetcher),
		series.WithObserver(infrastructure.NewMetricsObserver(a.Metrics)),
		series.WithLogger(a.Logger),
		series.WithTracer(a.OTelProviders.Tracer),
	)
	if err != nil {
		return fmt.Errorf("failed to create series pipeline: %w", err)
	}
	a.Pipeline = pipeline

	a.Services = &ServiceContainer{
		Series: services.NewSeriesService(pipeline, customMiddleware.NewValidator(a.Logger), a.Logger,
			services.WithFetchTimeout(a.Config.Source.Timeout)),
		Health: services.NewHealthService(Version, BuildTime, pipeline.BaseURL(), pipeline, a.Logger),
	}

	a.Logger.Info("Services initialized",
		slog.String("base_url", pipeline.BaseURL()),
		slog.Duration("source_timeout", a.Config.Source.Timeout))

	return nil
}

// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.NewTelemetry(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(a.getCORSConfig()))

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	r.Route(config.HealthEndpoint, func(r chi.Router) {
		r.Get("/", healthHandler.HealthCheck)
		r.Get("/ready", healthHandler.ReadinessCheck)
		r.Get("/live", healthHandler.LivenessCheck)
	})

	a.setupAPIRoutes(r, healthHandler)

	r.Handle(config.MetricsEndpoint, handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router, healthHandler *handlers.HealthHandler) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		r.Get("/version", healthHandler.Version)

		seriesHandler := handlers.NewSeriesHandler(a.Services.Series, a.Logger, a.ErrorHandler)
		r.Mount("/", seriesHandler.Routes())
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", customMiddleware.RequestIDHeader},
		ExposedHeaders: []string{customMiddleware.RequestIDHeader, handlers.WarningHeader, "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.Router
}

// Run serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// listener fails, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	serverErr := make(chan error, 1)
	go func() {
		defer close(serverErr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			if stopErr := a.Stop(context.Background()); stopErr != nil {
				return errors.Join(err, stopErr)
			}
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Received shutdown signal")
	}

	return a.Stop(context.Background())
}

// Stop shuts the server down, then flushes telemetry and closes the log file.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}

	return errors.Join(errs...)
}
