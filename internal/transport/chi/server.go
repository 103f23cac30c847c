package chi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/metrics"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
)

// Config holds the HTTP surface settings.
type Config struct {
	JWTSecret      string
	APIKeys        []string
	AllowedOrigins []string
}

// Server serves the question-answering, search and indexing API.
type Server struct {
	rag      Asker
	search   Searcher
	indexing Indexer
	usage    UsageReporter
	health   HealthChecker
	cfg      Config
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	rag Asker,
	search Searcher,
	indexing Indexer,
	usage UsageReporter,
	health HealthChecker,
	cfg Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		rag:      rag,
		search:   search,
		indexing: indexing,
		usage:    usage,
		health:   health,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handler builds the chi router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID", "X-Embedding-Tokens"},
		MaxAge:         300,
	}))
	r.Use(TenantMiddleware(s.cfg.JWTSecret))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search/public", s.PublicSearch)

		r.Group(func(r chi.Router) {
			r.Use(RequireTenant)
			r.Post("/chat/ask", s.Ask)
			r.Get("/search/semantic", s.SemanticSearch)
		})

		r.Group(func(r chi.Router) {
			r.Use(APIKeyMiddleware(s.cfg.APIKeys))
			r.Get("/usage", s.GetUsage)
			r.With(RequireTenant).Put("/contents/{id}/vector", s.IndexContent)
			r.With(RequireTenant).Delete("/contents/{id}/vector", s.DeleteContent)
		})
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

type askRequest struct {
	Question string `json:"question" validate:"notblank,max=4096"`
}

// Ask handles POST /api/v1/chat/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tenant, _ := TenantFromContext(r.Context())
	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp := s.rag.Ask(ctx, strings.TrimSpace(req.Question), request.ForTenant(tenant))

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// SearchResult is one semantic search hit.
type SearchResult struct {
	ContentID  string   `json:"content_id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
	Similarity float64  `json:"similarity_score"`
}

// SearchResponse is the semantic search result list.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// SemanticSearch handles GET /api/v1/search/semantic (tenant scope).
func (s *Server) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())
	s.runSearch(w, r, request.ForTenant(tenant))
}

// PublicSearch handles GET /api/v1/search/public.
func (s *Server) PublicSearch(w http.ResponseWriter, r *http.Request) {
	s.runSearch(w, r, request.Public())
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, scope request.Scope) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "limit must be an integer")
		return
	}
	threshold, err := floatParam(q.Get("threshold"), -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "threshold must be a number")
		return
	}

	req, err := request.New(q.Get("q"), scope, limit, threshold, s.search.Limits())
	if err != nil {
		handleDomainError(w, r, s.logger, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	found := s.search.SemanticSearch(ctx, &req)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   req.Query(),
		Results: toSearchResults(found),
		Total:   len(found),
	})
}

func toSearchResults(cs []candidate.Candidate) []SearchResult {
	out := make([]SearchResult, len(cs))
	for i, c := range cs {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = SearchResult{
			ContentID:  c.ContentID,
			Title:      c.Title,
			Summary:    c.Summary,
			Tags:       tags,
			Similarity: answer.RoundScore(c.Similarity),
		}
	}
	return out
}

type indexRequest struct {
	Title    string   `json:"title" validate:"notblank,max=500"`
	Summary  string   `json:"summary" validate:"notblank"`
	Tags     []string `json:"tags" validate:"max=50,dive,notblank,max=100"`
	IsPublic bool     `json:"is_public"`
}

// IndexResponse reports the point written for a content item.
type IndexResponse struct {
	ContentID string `json:"content_id"`
	PointID   string `json:"point_id"`
}

// IndexContent handles PUT /api/v1/contents/{id}/vector.
func (s *Server) IndexContent(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tenant, _ := TenantFromContext(r.Context())
	contentID := chi.URLParam(r, "id")

	ctx, usage := domain.NewContextWithUsage(r.Context())
	pointID, err := s.indexing.IndexOwnContent(ctx, content.Payload{
		ContentID: contentID,
		OwnerID:   tenant,
		IsPublic:  req.IsPublic,
		Title:     strings.TrimSpace(req.Title),
		Summary:   strings.TrimSpace(req.Summary),
		Tags:      req.Tags,
	})
	if err != nil {
		handleDomainError(w, r, s.logger, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, IndexResponse{ContentID: contentID, PointID: pointID})
}

// DeleteContent handles DELETE /api/v1/contents/{id}/vector.
func (s *Server) DeleteContent(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())
	if err := s.indexing.DeleteOwnContent(r.Context(), tenant, chi.URLParam(r, "id")); err != nil {
		handleDomainError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UsagePeriod is the budget state of one window.
type UsagePeriod struct {
	Period          string     `json:"period"`
	TokensLimit     int        `json:"tokens_limit"`
	TokensUsed      int        `json:"tokens_used"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// UsageResponse lists the embedding budget windows.
type UsageResponse struct {
	Periods []UsagePeriod `json:"periods"`
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	reports := s.usage.Reports(r.Context())

	resp := UsageResponse{Periods: make([]UsagePeriod, len(reports))}
	for i, rep := range reports {
		b := rep.Budget()
		p := UsagePeriod{
			Period:          string(rep.Period()),
			TokensLimit:     b.TokensLimit,
			TokensUsed:      b.TokensUsed,
			TokensRemaining: b.TokensRemaining,
			IsExhausted:     b.IsExhausted,
		}
		if b.ResetsAt > 0 {
			t := time.UnixMilli(b.ResetsAt).UTC()
			p.ResetsAt = &t
		}
		resp.Periods[i] = p
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthResponse is the aggregated health report.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: report.Status, Checks: report.Checks})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err //nolint:wrapcheck // caller maps to 400
	}
	return v, nil
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err //nolint:wrapcheck // caller maps to 400
	}
	return v, nil
}
