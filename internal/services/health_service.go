package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"time"

	"nefincli/internal/series"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	baseURL   string
	pipeline  SeriesPipeline
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildTime, baseURL string, pipeline SeriesPipeline, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health_service"))

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("base_url", baseURL))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		baseURL:   baseURL,
		pipeline:  pipeline,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the service can accept series requests.
// The upstream site is not contacted.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"pipeline": hs.checkPipeline(),
			"source":   hs.checkSource(),
		},
	}

	for name, svc := range status.Services {
		if sh, ok := svc.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"base_url":   hs.baseURL,
		"families":   series.Families(),
		"start_time": hs.startTime.Format(time.RFC3339),
		"uptime":     time.Since(hs.startTime).Seconds(),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkPipeline() ServiceHealth {
	if hs.pipeline == nil {
		return ServiceHealth{Status: "not_ready", Message: "series pipeline not initialized"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkSource() ServiceHealth {
	u, err := url.Parse(hs.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("invalid source base URL %q", hs.baseURL),
		}
	}
	return ServiceHealth{Status: "ready", Message: u.Host}
}
