// Package handler provides the HTTP handlers for the rental proxy API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rentsync/internal/adapter"
	"rentsync/internal/catalog"
	"rentsync/internal/clientinfo"
	"rentsync/internal/model"
	"rentsync/internal/ordering"
)

// Options carries the optional collaborators of a Handler.
type Options struct {
	// Catalog serves the project catalog. Nil answers catalog routes with 404.
	Catalog catalog.Repository
	// Resolver maps product slugs to platform ids before lines are added.
	Resolver ordering.IDResolver
	// ProxyToken authorizes order-mutating actions. Empty denies them all.
	ProxyToken string
	// Gate enforces the minimum storefront client version.
	Gate clientinfo.Gate
	// Ready reports readiness of backing stores for /healthz.
	Ready func(ctx context.Context) error
	// Location interprets calendar dates. Nil means UTC.
	Location *time.Location
	// Storefront is published to storefront clients.
	Storefront StorefrontConfig
}

// StorefrontConfig tells storefront clients where the widget and the hosted
// shop live.
type StorefrontConfig struct {
	CompanySlug      string `json:"company_slug,omitempty"`
	ShopURL          string `json:"shop_url,omitempty"`
	WidgetScriptURL  string `json:"widget_script_url,omitempty"`
	MinClientVersion string `json:"min_client_version,omitempty"`
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	adapter  adapter.Adapter
	catalog  catalog.Repository
	resolver ordering.IDResolver
	token    string
	gate     clientinfo.Gate
	ready    func(ctx context.Context) error
	loc      *time.Location
	front    StorefrontConfig
	logger   *slog.Logger
}

// New creates a Handler over the platform adapter a.
func New(a adapter.Adapter, opts Options, logger *slog.Logger) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Handler{
		adapter:  a,
		catalog:  opts.Catalog,
		resolver: opts.Resolver,
		token:    opts.ProxyToken,
		gate:     opts.Gate,
		ready:    opts.Ready,
		loc:      opts.Location,
		front:    opts.Storefront,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Action-dispatched proxy to the rental platform
	mux.HandleFunc("POST "+ordering.ActionPath, h.handleRentalAction)

	// Catalog and pricing
	mux.HandleFunc("GET /catalog/projects", h.handleListProjects)
	mux.HandleFunc("GET /catalog/projects/{slug}", h.handleGetProject)
	mux.HandleFunc("POST /quote", h.handleQuote)
	mux.HandleFunc("GET /storefront/config", h.handleStorefrontConfig)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Liveness and readiness
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleReady)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends the {error, details} envelope, taking the status from an
// APIError in the chain. Anything else is a 500 with no internals exposed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.logger.Error("internal error", slog.String("error", err.Error()))
		apiErr = model.NewInternalError(err)
	}

	h.writeJSON(w, apiErr.StatusCode, model.ErrorResponse{
		Error:   apiErr.Message,
		Details: apiErr.Details,
	})
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// handleStorefrontConfig publishes the widget and shop locations.
func (h *Handler) handleStorefrontConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.front)
}

// === Health ===

// healthResponse is the JSON structure for health checks.
type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth is the liveness probe.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleReady is the readiness probe. It fails while a backing store is down.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
