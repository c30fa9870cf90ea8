package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gamefinder/internal/domain"
	"gamefinder/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	Enrich(ctx context.Context, listing domain.Listing) (domain.EnrichedListing, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type Server struct {
	search     SearchService
	logger     *slog.Logger
	rateLimit  float64
	rateBurst  int
	imageHosts map[string]struct{}
	imageHTTP  *http.Client
}

const maxQueryLength = 200

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimit sets the global request budget. Non-positive values keep the default.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateLimit = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

// WithImageHosts replaces the set of hosts the image proxy may fetch from.
func WithImageHosts(hosts ...string) ServerOption {
	return func(s *Server) {
		s.imageHosts = make(map[string]struct{}, len(hosts))
		for _, host := range hosts {
			if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
				s.imageHosts[host] = struct{}{}
			}
		}
	}
}

func WithImageClient(client *http.Client) ServerOption {
	return func(s *Server) {
		s.imageHTTP = client
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search:    searchService,
		logger:    slog.Default(),
		rateLimit: 20,
		rateBurst: 40,
	}
	WithImageHosts(defaultImageHosts...)(server)
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	if server.imageHTTP == nil {
		server.imageHTTP = newImageProxyClient(server.imageHosts)
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search/providers", s.handleProviders)
	mux.HandleFunc("/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/search/providers/test", s.handleProviderTest)
	mux.HandleFunc("/search/enrich", s.handleEnrich)
	mux.HandleFunc("/search/image", s.handleImageProxy)
	mux.HandleFunc("/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "gamefinder",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return requestIDMiddleware(recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimit, s.rateBurst, metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("query too long (max %d characters)", maxQueryLength))
		return
	}
	providers := parseCSV(r.URL.Query().Get("providers"))
	annotateRequest(r.Context(), slog.Any("selectedProviders", providers))

	response, err := s.search.Search(r.Context(), domain.SearchRequest{
		Query:     query,
		Providers: providers,
	})
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("query", truncate(query, 80)),
			slog.Any("providers", providers),
			slog.String("error", err.Error()),
		)
		s.writeSearchError(w, err)
		return
	}
	annotateRequest(r.Context(),
		slog.String("outcome", string(response.Outcome)),
		slog.Int("items", response.TotalItems),
		slog.Any("failedProviders", response.FailedProviders()),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, search.ErrUnknownProvider),
		errors.Is(err, search.ErrInvalidListing):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, search.ErrNoProviders):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, domain.ErrAuth):
		writeError(w, http.StatusBadGateway, "auth_failed", err.Error())
	case errors.Is(err, domain.ErrLookup):
		writeError(w, http.StatusBadGateway, "lookup_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/enrich" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	var listing domain.Listing
	if err := decodeJSONBody(r, &listing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	annotateRequest(r.Context(),
		slog.String("source", listing.Source),
		slog.String("title", truncate(listing.Title, 80)),
	)
	enriched, err := s.search.Enrich(r.Context(), listing)
	if err != nil {
		s.logger.Warn("enrich request failed",
			slog.String("title", truncate(listing.Title, 80)),
			slog.String("error", err.Error()),
		)
		s.writeSearchError(w, err)
		return
	}
	annotateRequest(r.Context(), slog.Bool("metadataAvailable", enriched.MetadataAvailable))
	writeJSON(w, http.StatusOK, enriched)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.search.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.ProviderDiagnostics(),
	})
}

func (s *Server) handleProviderTest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/test" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	provider := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("provider")))
	if provider == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "provider is required")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = "elden ring"
	}

	startedAt := time.Now()
	response, err := s.search.Search(r.Context(), domain.SearchRequest{
		Query:     query,
		Providers: []string{provider},
	})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"provider":  provider,
			"query":     query,
			"ok":        false,
			"elapsedMs": time.Since(startedAt).Milliseconds(),
			"error":     err.Error(),
		})
		return
	}

	var providerStatus domain.ProviderStatus
	for _, status := range response.Providers {
		if strings.EqualFold(status.Name, provider) {
			providerStatus = status
			break
		}
	}
	sample := make([]string, 0, 3)
	for _, item := range response.Items {
		sample = append(sample, truncate(item.Title, 120))
		if len(sample) >= 3 {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":  provider,
		"query":     query,
		"ok":        providerStatus.OK,
		"count":     providerStatus.Count,
		"elapsedMs": response.ElapsedMS,
		"error":     providerStatus.Error,
		"sample":    sample,
	})
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
