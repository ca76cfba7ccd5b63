// Package app wires configuration, logging, telemetry, the series
// pipeline, services and HTTP routes into a runnable server.
//
// Routes:
//
//	GET /healthz, /healthz/ready, /healthz/live
//	GET /metrics
//	GET /api/v1/version
//	GET /api/v1/families
//	GET /api/v1/series/cost-of-capital/{sector}
//	GET /api/v1/series/loan-fees
//	GET /api/v1/series/illiquidity
//	GET /api/v1/series/risk-factors
//	GET /api/v1/series/risk-factors/{factor}
//
// Usage:
//
//	a, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := a.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package app
