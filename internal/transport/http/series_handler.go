package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nefincli/internal/errors"
	"nefincli/internal/exporter"
	"nefincli/internal/middleware"
	"nefincli/internal/series"
	"nefincli/internal/services"
)

// Output formats accepted by the format query parameter.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// WarningHeader carries one warning code per header value on exports.
	WarningHeader = "X-Nefin-Warning"
)

var formats = []string{FormatJSON, FormatCSV, FormatXLSX}

// SeriesHandler serves the series catalog and series data.
type SeriesHandler struct {
	service      SeriesServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	query        *middleware.QueryParamValidator
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(service SeriesServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SeriesHandler {
	return &SeriesHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "series_handler")),
		errorHandler: errorHandler,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the series routes. Mount under /api/v1.
func (h *SeriesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/families", h.GetFamilies)

	r.Route("/series", func(r chi.Router) {
		r.Get("/cost-of-capital/{sector}", h.GetCostOfCapital)
		r.Get("/loan-fees", h.GetLoanFees)
		r.Get("/illiquidity", h.GetIlliquidity)
		r.Get("/risk-factors", h.GetRiskFactors)
		r.Get("/risk-factors/{factor}", h.GetRiskFactor)
	})

	return r
}

// GetFamilies handles GET /api/v1/families
func (h *SeriesHandler) GetFamilies(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"families": h.service.Families(r.Context()),
	})
}

// GetCostOfCapital handles GET /api/v1/series/cost-of-capital/{sector}
func (h *SeriesHandler) GetCostOfCapital(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SeriesQuery{
		Family: string(series.FamilyCostOfCapital),
		Series: pathParam(r, "sector"),
	})
}

// GetLoanFees handles GET /api/v1/series/loan-fees
func (h *SeriesHandler) GetLoanFees(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SeriesQuery{Family: string(series.FamilyLoanFees)})
}

// GetIlliquidity handles GET /api/v1/series/illiquidity
func (h *SeriesHandler) GetIlliquidity(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SeriesQuery{Family: string(series.FamilyIlliquidity)})
}

// GetRiskFactors handles GET /api/v1/series/risk-factors?keys=Market,SMB.
// Without keys every canonical factor is returned.
func (h *SeriesHandler) GetRiskFactors(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SeriesQuery{
		Family: string(series.FamilyRiskFactors),
		Keys:   splitList(r.URL.Query()["keys"]),
	})
}

// GetRiskFactor handles GET /api/v1/series/risk-factors/{factor}
func (h *SeriesHandler) GetRiskFactor(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, services.SeriesQuery{
		Family: string(series.FamilyRiskFactors),
		Series: pathParam(r, "factor"),
	})
}

func (h *SeriesHandler) serve(w http.ResponseWriter, r *http.Request, q services.SeriesQuery) {
	format, ok := h.query.ValidateEnum(w, r, "format", formats, FormatJSON)
	if !ok {
		return
	}

	params := r.URL.Query()
	q.Aggregation = params.Get("agg")
	q.Function = params.Get("func")

	res, err := h.service.Get(r.Context(), q)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}

	switch format {
	case FormatCSV:
		h.export(w, r, res, contentTypeCSV, func(buf *bytes.Buffer) error {
			return exporter.WriteCSV(buf, res.Table, exporter.DefaultCSVOptions())
		})
	case FormatXLSX:
		h.export(w, r, res, contentTypeXLSX, func(buf *bytes.Buffer) error {
			return exporter.WriteXLSX(buf, res.Table, exporter.DefaultSheetName)
		})
	default:
		render.JSON(w, r, res)
	}
}

// export renders into memory first so an encoding failure can still be
// reported as a problem response.
func (h *SeriesHandler) export(w http.ResponseWriter, r *http.Request, res *services.SeriesResult, contentType string, write func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("family", string(res.Family)),
			slog.String("content_type", contentType),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ext := FormatCSV
	if contentType == contentTypeXLSX {
		ext = FormatXLSX
	}

	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, exportName(res), ext))
	for _, warn := range res.Warnings {
		hdr.Add(WarningHeader, warn.Code)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// translateError turns an unknown series key into a 404; everything else
// is mapped by the error handler.
func translateError(err error) error {
	if !errors.Is(err, series.ErrUnknownSeries) {
		return err
	}
	var details interface{}
	var appErr *apierrors.AppError
	if errors.As(err, &appErr) && len(appErr.Context) > 0 {
		details = appErr.Context
	}
	return apierrors.SeriesNotFound(err.Error(), details)
}

func exportName(res *services.SeriesResult) string {
	name := string(res.Family)
	if res.Series != "" {
		name += "-" + res.Series
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// pathParam returns a decoded route parameter. Keys such as "Risk Free"
// arrive percent-encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// splitList accepts both repeated and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
