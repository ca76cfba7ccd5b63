package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "nefincli"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable: NEFIN_SERVER_PORT,
	// NEFIN_SOURCE_BASE_URL, ...
	EnvPrefix = "NEFIN"

	// Data source
	DefaultBaseURL          = "http://nefin.com.br/"
	DefaultSourceTimeout    = 60 * time.Second
	DefaultMaxDownloadBytes = 32 << 20

	// Rate Limiting
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "logs/nefin.log"
)

// API endpoints
const (
	APIBasePath     = "/api/v1"
	FamiliesPath    = APIBasePath + "/families"
	SeriesPath      = APIBasePath + "/series"
	HealthEndpoint  = "/healthz"
	MetricsEndpoint = "/metrics"
)
