// Package services holds the business logic between the HTTP handlers and
// the series pipeline.
//
// # Available Services
//
//   - SeriesService: validates queries, runs them through the pipeline and
//     collects the warnings raised while doing so
//   - HealthService: liveness, readiness and version information
//
// SeriesService coalesces identical queries that are in flight at the same
// time with singleflight, so a burst of equal requests costs one download.
// Results are not retained.
//
// # Testing
//
// Services are tested by mocking the pipeline:
//
//	m := &MockSeriesPipeline{}
//	m.On("Fetch", mock.Anything, req).Return(table, nil)
//	svc := NewSeriesService(m, middleware.NewValidator(logger), logger)
package services
