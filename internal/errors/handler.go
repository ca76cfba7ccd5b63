package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs.
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"

	TypeSeriesNotFound  = "/errors/series/not-found"
	TypeUnknownToken    = "/errors/series/unknown-token"
	TypeUpstreamFailure = "/errors/upstream/unavailable"
	TypeUpstreamPayload = "/errors/upstream/malformed"
)

type problemKind struct {
	status int
	typ    string
	title  string
}

var (
	internalKind = problemKind{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}
	timeoutKind  = problemKind{http.StatusGatewayTimeout, TypeTimeout, "Request Timeout"}

	appErrorKinds = map[ErrorType]problemKind{
		ErrTypeLookup:     {http.StatusBadRequest, TypeUnknownToken, "Unknown Identifier"},
		ErrTypeValidation: {http.StatusBadRequest, TypeValidation, "Validation Failed"},
		ErrTypeNetwork:    {http.StatusBadGateway, TypeUpstreamFailure, "Upstream Unavailable"},
		ErrTypeParsing:    {http.StatusBadGateway, TypeUpstreamPayload, "Upstream Payload Malformed"},
	}

	apiErrorTypes = map[string]string{
		CodeInvalidRequest:   TypeValidation,
		CodeValidationFailed: TypeValidation,
		CodeSeriesNotFound:   TypeSeriesNotFound,
	}
)

func (k problemKind) problem(detail string, r *http.Request) *ProblemDetails {
	return NewProblemDetails(k.status, k.typ, k.title, detail, r.URL.Path)
}

// ErrorHandler renders errors as RFC 7807 problem documents and logs them.
// Every document carries the chi request ID as trace_id.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an ErrorHandler. With includeStack set, problem
// bodies also carry the goroutine stack.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError writes the problem for err. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	h.write(w, r, problem, reqID)
}

// ErrorToProblem maps err onto a problem document without writing it.
// Context cancellation wins over any AppError that wraps it.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return timeoutKind.problem("The request took too long to process and was cancelled", r)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		typ, ok := apiErrorTypes[apiErr.ErrorCode]
		if !ok {
			typ = TypeInternal
		}
		problem := NewProblemDetails(apiErr.StatusCode, typ, http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		kind, ok := appErrorKinds[appErr.Type]
		if !ok {
			return internalKind.problem("An unexpected error occurred while processing your request", r)
		}
		problem := kind.problem(appErr.Error(), r).WithExtension("error_type", string(appErr.Type))
		if len(appErr.Context) > 0 {
			problem.WithExtension("context", appErr.Context)
		}
		return problem
	}

	return internalKind.problem("An unexpected error occurred while processing your request", r)
}

// HandlePanic logs a recovered panic and answers 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())
	stack := string(debug.Stack())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", stack),
	)

	problem := internalKind.problem("An unexpected error occurred", r)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
	}
	h.write(w, r, problem, reqID)
}

func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path)
	h.write(w, r, problem, middleware.GetReqID(r.Context()))
}

func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path)
	h.write(w, r, problem, middleware.GetReqID(r.Context()))
}

func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, problem *ProblemDetails, reqID string) {
	problem.WithExtension("trace_id", reqID)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", string(debug.Stack()))
	}
	render.Render(w, r, problem)
}

// RecoveryMiddleware turns panics in next into 500 problem responses.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
