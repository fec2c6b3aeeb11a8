// internal/api/http/pipeline_handler.go
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	"github.com/DOH-JDJ0303/waphl-data/internal/metrics"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PipelineHandler serves the pipeline API. Pipeline names containing "/"
// must be sent percent-encoded, e.g. /pipelines/terra%2Fws/runs.
type PipelineHandler struct {
	service  *usecase.PipelineService
	tables   *usecase.TableService
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewPipelineHandler creates the handler. tables may be nil.
func NewPipelineHandler(service *usecase.PipelineService, tables *usecase.TableService, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		service:  service,
		tables:   tables,
		logger:   logger.With("component", "pipeline-handler"),
		validate: config.NewValidator(),
		tracer:   otel.Tracer("waphl-api"),
	}
}

type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the API routes on mux.
func (h *PipelineHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/pipelines/", h.instrument(h.handlePipelines))
	if h.tables != nil {
		mux.Handle("/tables/builds", h.instrument(h.handleBuildTables))
	}
}

func (h *PipelineHandler) instrument(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeTemplate(r.URL.EscapedPath())
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+route, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r.WithContext(ctx))

		metrics.HttpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(iw.statusCode)).Inc()
		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

// routeTemplate maps a request path to a low-cardinality label. Unknown
// segments collapse to placeholders so clients cannot mint new labels.
func routeTemplate(escapedPath string) string {
	parts := strings.Split(strings.Trim(escapedPath, "/"), "/")
	if parts[0] != "pipelines" {
		if escapedPath == "/tables/builds" || escapedPath == "/metrics" {
			return escapedPath
		}
		return "/{unknown}"
	}
	action := "{action}"
	if len(parts) > 2 {
		switch parts[2] {
		case "history", "runs", "known":
			action = parts[2]
		}
	}
	switch {
	case len(parts) == 1:
		return "/pipelines/"
	case len(parts) == 2:
		return "/pipelines/{name}"
	case len(parts) == 3:
		return "/pipelines/{name}/" + action
	default:
		return "/pipelines/{name}/" + action + "/{id}"
	}
}

// splitPath returns the unescaped segments after /pipelines/.
func splitPath(escapedPath string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimPrefix(escapedPath, "/pipelines"), "/")
	if trimmed == "" {
		return nil, nil
	}
	raw := strings.Split(trimmed, "/")
	parts := make([]string, len(raw))
	for i, p := range raw {
		s, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return parts, nil
}

func (h *PipelineHandler) handlePipelines(w http.ResponseWriter, r *http.Request) {
	parts, err := splitPath(r.URL.EscapedPath())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid path", nil)
		return
	}

	var name, action, id string
	if len(parts) > 0 {
		name = parts[0]
	}
	if len(parts) > 1 {
		action = parts[1]
	}
	if len(parts) > 2 {
		id = parts[2]
	}
	if len(parts) > 3 {
		http.NotFound(w, r)
		return
	}

	switch {
	case r.Method == http.MethodGet && name == "":
		h.handleListPipelines(w, r)
	case r.Method == http.MethodGet && action == "":
		h.handleGetPipeline(w, r, name)
	case r.Method == http.MethodGet && action == "history" && id == "":
		h.handleGetHistory(w, r, name)
	case r.Method == http.MethodGet && action == "runs" && id != "":
		h.handleGetRun(w, r, name, id)
	case r.Method == http.MethodPost && action == "runs" && id == "":
		h.handleRun(w, r, name)
	case r.Method == http.MethodPut && action == "known" && id == "":
		h.handleMarkKnown(w, r, name)
	case name != "" && (action == "" || action == "history" || action == "runs" || action == "known"):
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	default:
		http.NotFound(w, r)
	}
}

func (h *PipelineHandler) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "handler.ListPipelines")
	defer span.End()
	h.writeJSON(w, http.StatusOK, h.service.List())
}

func (h *PipelineHandler) handleGetPipeline(w http.ResponseWriter, r *http.Request, name string) {
	_, span := h.tracer.Start(r.Context(), "handler.GetPipeline")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name))

	for _, info := range h.service.List() {
		if info.Name == name {
			h.writeJSON(w, http.StatusOK, info)
			return
		}
	}
	h.writeError(w, http.StatusNotFound, domain.ErrPipelineNotFound.Error(), nil)
}

func (h *PipelineHandler) handleRun(w http.ResponseWriter, r *http.Request, name string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.RunPipeline")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name))

	var req RunRequest
	if !h.decode(w, r, &req, true, span) {
		return
	}

	report, err := h.service.Run(ctx, name, req.ToOverrides())
	if err != nil {
		span.SetStatus(codes.Error, "Failed to run pipeline")
		span.RecordError(err)
		h.logger.Error("error running pipeline", "pipeline", name, "error", err)
		switch {
		case errors.Is(err, domain.ErrPipelineNotFound):
			h.writeError(w, http.StatusNotFound, err.Error(), nil)
		case errors.Is(err, domain.ErrLockNotAcquired):
			h.writeError(w, http.StatusConflict, err.Error(), nil)
		case report != nil:
			h.writeJSON(w, http.StatusBadGateway, report)
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, report)
}

func (h *PipelineHandler) handleGetHistory(w http.ResponseWriter, r *http.Request, name string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetHistory")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name))

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	history, err := h.service.History(ctx, name, page, pageSize)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to list history")
		span.RecordError(err)
		h.logger.Error("error listing run history", "pipeline", name, "error", err)
		if errors.Is(err, domain.ErrPipelineNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

func (h *PipelineHandler) handleGetRun(w http.ResponseWriter, r *http.Request, name, runID string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetRun")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name), attribute.String("run.id", runID))

	report, err := h.service.Get(ctx, name, runID)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to get run")
		span.RecordError(err)
		if errors.Is(err, domain.ErrPipelineNotFound) || errors.Is(err, domain.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.logger.Error("error getting run", "pipeline", name, "run_id", runID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *PipelineHandler) handleMarkKnown(w http.ResponseWriter, r *http.Request, name string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.MarkKnown")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name))

	var req MarkKnownRequest
	if !h.decode(w, r, &req, false, span) {
		return
	}

	if err := h.service.MarkKnown(ctx, name, req.IDs...); err != nil {
		span.SetStatus(codes.Error, "Failed to mark ids known")
		span.RecordError(err)
		switch {
		case errors.Is(err, domain.ErrPipelineNotFound):
			h.writeError(w, http.StatusNotFound, err.Error(), nil)
		case errors.Is(err, usecase.ErrReadOnlyStore):
			h.writeError(w, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, domain.ErrMalformedItem):
			h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			h.logger.Error("error marking ids known", "pipeline", name, "error", err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PipelineHandler) handleBuildTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	ctx, span := h.tracer.Start(r.Context(), "handler.BuildTables")
	defer span.End()

	build, err := h.tables.Build(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to build tables")
		span.RecordError(err)
		h.writeError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	h.writeJSON(w, http.StatusCreated, build)
}

// decode reads and validates a JSON body. An empty body is accepted when
// optional is set.
func (h *PipelineHandler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool, span trace.Span) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !(optional && errors.Is(err, io.EOF)) {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, "Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.")
			}
		}
		h.writeError(w, http.StatusBadRequest, "Validation failed", details)
		return false
	}
	return true
}

func (h *PipelineHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *PipelineHandler) writeError(w http.ResponseWriter, status int, msg string, details []string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
