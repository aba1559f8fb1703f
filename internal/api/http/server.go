package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shopscout/aggregatorservice/internal/aggregate"
	"shopscout/aggregatorservice/internal/domain"
)

const maxQueryLength = 300

// AggregatorService is the product aggregation boundary consumed by the
// HTTP layer.
type AggregatorService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	GetProduct(ctx context.Context, id string) (domain.CanonicalItem, error)
	ProductReviews(ctx context.Context, id string) ([]domain.ReviewItem, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

// ShortVideoService is the short-form video boundary.
type ShortVideoService interface {
	ProductVideos(ctx context.Context, productID, titleHint string) ([]domain.ShortVideoItem, error)
	CacheStats() domain.CacheStats
}

type Server struct {
	aggregator AggregatorService
	videos     ShortVideoService
	logger     *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithShortVideos(videos ShortVideoService) ServerOption {
	return func(s *Server) {
		s.videos = videos
	}
}

func NewServer(aggregator AggregatorService, options ...ServerOption) *Server {
	server := &Server{
		aggregator: aggregator,
		logger:     slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /search/providers", s.handleProviders)
	mux.HandleFunc("GET /search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("GET /products/{id}", s.handleProduct)
	mux.HandleFunc("GET /products/{id}/reviews", s.handleProductReviews)
	mux.HandleFunc("GET /products/{id}/videos", s.handleProductVideos)
	mux.HandleFunc("GET /videos/stats", s.handleVideoStats)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "product-aggregator",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.aggregator == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "aggregator is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_query", "query too long")
		return
	}

	request := domain.SearchRequest{
		Query:   query,
		Zipcode: strings.TrimSpace(r.URL.Query().Get("zip")),
		Limit:   parseOptionalInt(r, "limit"),
		NoCache: parseOptionalBool(r.URL.Query().Get("noCache")),
	}

	response, err := s.aggregator.Search(r.Context(), request)
	if err != nil {
		switch {
		case errors.Is(err, aggregate.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "invalid_query", "query is missing or too short")
		case errors.Is(err, aggregate.ErrNoProviders):
			writeError(w, http.StatusServiceUnavailable, "no_providers", "no providers configured")
		default:
			s.logger.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.aggregator.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.aggregator.ProviderDiagnostics(),
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := s.aggregator.GetProduct(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, aggregate.ErrInvalidProductID):
			writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be <source>:<sourceId>")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "product not found")
		default:
			s.logger.Error("product lookup failed", slog.String("id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "product lookup failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleProductReviews(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reviews, err := s.aggregator.ProductReviews(r.Context(), id)
	if err != nil {
		if errors.Is(err, aggregate.ErrInvalidProductID) {
			writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be <source>:<sourceId>")
			return
		}
		s.logger.Error("review lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "review lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId": id,
		"reviews":   reviews,
	})
}

func (s *Server) handleProductVideos(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusNotFound, "not_found", "short-video aggregation is not configured")
		return
	}
	id := r.PathValue("id")
	titleHint := strings.TrimSpace(r.URL.Query().Get("title"))
	videos, err := s.videos.ProductVideos(r.Context(), id, titleHint)
	if err != nil {
		s.logger.Error("short-video lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "short-video lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId": id,
		"videos":    videos,
	})
}

func (s *Server) handleVideoStats(w http.ResponseWriter, _ *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusNotFound, "not_found", "short-video aggregation is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.videos.CacheStats())
}

func parseOptionalInt(r *http.Request, key string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}
