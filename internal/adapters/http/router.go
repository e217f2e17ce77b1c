package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/mailbills-assistant/internal/config"
	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
	"github.com/kirillkom/mailbills-assistant/internal/observability/metrics"
)

const (
	serviceName    = "mailbills-api"
	clientIDHeader = "X-Client-Id"
	maxFormMemory  = 8 << 20
)

type Router struct {
	cfg      config.Config
	pipeline ports.PipelineService
	exporter ports.RunExporter
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

func NewRouter(
	cfg config.Config,
	pipeline ports.PipelineService,
	exporter ports.RunExporter,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		pipeline: pipeline,
		exporter: exporter,
		metrics:  httpMetrics,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/runs", rt.submitRun)
	mux.HandleFunc("/v1/runs/current", rt.currentRun)
	mux.HandleFunc("/v1/runs/current/export.xlsx", rt.exportRun)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onRateLimited)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRateLimited(r *http.Request) {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName, r.URL.Path)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "busy": rt.pipeline.Busy()})
}

type errorResponse struct {
	Error     string              `json:"error"`
	RequestID string              `json:"request_id,omitempty"`
	Run       *domain.PipelineRun `json:"run,omitempty"`
}

type startResponse struct {
	RunID string `json:"run_id"`
}

func (rt *Router) submitRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("Upload is larger than %d MB.", rt.cfg.MaxUploadBytes>>20),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form with field 'file' is required"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files, err := readFormFiles(r.MultipartForm.File["file"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}

	sub := domain.Submission{
		Files:      files,
		TargetLang: r.FormValue("target_lang"),
		UILang:     r.FormValue("ui_lang"),
		ClientID:   clientIDFromRequest(r),
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		runID, err := rt.pipeline.Start(r.Context(), sub)
		if err != nil {
			rt.writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Location", "/v1/runs/current")
		writeJSON(w, http.StatusAccepted, startResponse{RunID: runID})
		return
	}

	run, err := rt.pipeline.Run(r.Context(), sub)
	if err != nil {
		var partial *domain.PipelineRun
		if run.ID != "" {
			partial = &run
		}
		rt.writeError(w, r, err, partial)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) currentRun(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		run, ok := rt.pipeline.Current()
		if !ok {
			rt.writeError(w, r, domain.ErrNoRun, nil)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case http.MethodDelete:
		rt.pipeline.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) exportRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.exporter == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "export is not configured"})
		return
	}

	run, ok := rt.pipeline.Current()
	if !ok {
		rt.writeError(w, r, domain.ErrNoRun, nil)
		return
	}
	if run.Stage.Busy() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "The document is still being processed."})
		return
	}

	data, err := rt.exporter.Export(run)
	if err != nil {
		rt.logger.Error("export_failed", "run_id", run.ID, "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not build the export."})
		return
	}

	w.Header().Set("Content-Type", rt.exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mailbills-%s.xlsx"`, run.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error, run *domain.PipelineRun) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     errorMessage(err),
		RequestID: requestIDFromContext(r.Context()),
		Run:       run,
	})
}

func readFormFiles(headers []*multipart.FileHeader) ([]domain.SubmittedFile, error) {
	out := make([]domain.SubmittedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SubmittedFile{
			Name:         fh.Filename,
			DeclaredMIME: fh.Header.Get("Content-Type"),
			Data:         data,
		})
	}
	return out, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	return data, nil
}

func clientIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	return remoteHost(r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
