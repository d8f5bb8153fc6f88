package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

const maxRequestBody = 64 << 10

type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Options struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	// AuthToken, when set, is required as a Bearer token on every /v1 route.
	AuthToken string
}

type Router struct {
	parser    ports.InvoiceParser
	updater   ports.Updater
	settings  ports.SettingsService
	processor ports.InvoiceProcessor
	metrics   MetricsProvider
	options   Options
}

// NewRouter accepts a nil processor (no folder ingestion over HTTP) and nil
// metrics.
func NewRouter(
	parser ports.InvoiceParser,
	updater ports.Updater,
	settings ports.SettingsService,
	processor ports.InvoiceProcessor,
	metrics MetricsProvider,
	options Options,
) *Router {
	return &Router{
		parser:    parser,
		updater:   updater,
		settings:  settings,
		processor: processor,
		metrics:   metrics,
		options:   options,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/invoices/parse", rt.parseInvoice)
	api.HandleFunc("POST /v1/invoices/process", rt.processInvoice)
	api.HandleFunc("POST /v1/update", rt.update)
	api.HandleFunc("GET /v1/settings/api-key", rt.loadSetting(rt.settings.LoadAPIKey))
	api.HandleFunc("PUT /v1/settings/api-key", rt.saveSetting(rt.settings.SaveAPIKey))
	api.HandleFunc("GET /v1/settings/api-base-url", rt.loadSetting(rt.settings.LoadAPIBaseURL))
	api.HandleFunc("PUT /v1/settings/api-base-url", rt.saveSetting(rt.settings.SaveAPIBaseURL))

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.options.MaxInFlight, rt.options.BackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.options.RateLimitRPS, rt.options.RateLimitBurst)
	guarded = authMiddleware(guarded, rt.options.AuthToken)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type filePathRequest struct {
	FilePath string `json:"file_path"`
}

type parseInvoiceResponse struct {
	Text       string            `json:"text"`
	Provenance domain.Provenance `json:"provenance"`
}

func (rt *Router) parseInvoice(w http.ResponseWriter, r *http.Request) {
	var req filePathRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := rt.parser.ParseInvoice(r.Context(), req.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parseInvoiceResponse{Text: result.Text, Provenance: result.Provenance})
}

func (rt *Router) processInvoice(w http.ResponseWriter, r *http.Request) {
	if rt.processor == nil {
		writeError(w, r, domain.WrapError(domain.ErrNotConfigured, "process invoice", errors.New("invoice folder processing is disabled")))
		return
	}
	var req filePathRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := rt.processor.ProcessFile(r.Context(), req.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (rt *Router) update(w http.ResponseWriter, r *http.Request) {
	outcome, err := rt.updater.Update(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if outcome.State == domain.UpdateRestartPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

type settingValue struct {
	Value string `json:"value"`
}

func (rt *Router) loadSetting(load func(ctx context.Context) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := load(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingValue{Value: value})
	}
}

func (rt *Router) saveSetting(save func(ctx context.Context, value string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingValue
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := save(r.Context(), req.Value); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Kind: domain.ErrInvalidInput.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed", "request_id", requestID, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     domain.PublicMessage(err),
		Kind:      errorKind(err),
		RequestID: requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
