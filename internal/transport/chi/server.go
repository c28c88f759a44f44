package chi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/answer"
	"github.com/kailas-cloud/ragd/internal/domain/query"
	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
	domwarmup "github.com/kailas-cloud/ragd/internal/domain/warmup"
	logpkg "github.com/kailas-cloud/ragd/internal/logger"
	"github.com/kailas-cloud/ragd/internal/usecase/collection"
	"github.com/kailas-cloud/ragd/internal/usecase/health"
	"github.com/kailas-cloud/ragd/internal/version"
)

// ServiceName is reported by the banner and health endpoints.
const ServiceName = "ragd"

const maxBodyBytes = 64 << 10

// QueryHandler answers one validated question. It never fails; failures live in the result.
type QueryHandler interface {
	Handle(ctx context.Context, q *query.Query) answer.Result
}

// CollectionLister reports queryable collections.
type CollectionLister interface {
	List(ctx context.Context) (collection.Listing, error)
}

// HealthChecker runs dependency checks and reports readiness.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
	Readiness() domwarmup.Readiness
}

// Warmer drives the model readiness state machine.
type Warmer interface {
	Start(ctx context.Context) domwarmup.State
	Rearm() bool
	Readiness() domwarmup.Readiness
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the question answering API.
type Server struct {
	queries       QueryHandler
	collections   CollectionLister
	health        HealthChecker
	warmer        Warmer
	previewChars  int
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. warmer can be nil when warm-up is not wired.
func NewServer(
	queries QueryHandler,
	collections CollectionLister,
	healthChecker HealthChecker,
	warmer Warmer,
	previewChars int,
	logger *zap.Logger,
) *Server {
	if previewChars <= 0 {
		previewChars = domain.DefaultSourcePreviewChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queries:      queries,
		collections:  collections,
		health:       healthChecker,
		warmer:       warmer,
		previewChars: previewChars,
		validate:     newValidator(),
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, ErrorCodeCollectionNotFound),
		sentinelHandler(domain.ErrDependencyUnavailable,
			http.StatusServiceUnavailable, ErrorCodeDependencyUnavailable),
	}
	return s
}

// Banner handles GET /.
func (s *Server) Banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "RAG question answering service",
		"version": version.Version,
		"status":  "running",
	})
}

// Query handles POST /api/v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	log := logpkg.FromContextOr(r.Context(), s.logger)

	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		fields, ok := validationFields(err)
		if !ok {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body")
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    ErrorCodeValidationFailed,
			Message: firstMessage(fields),
			Fields:  fields,
		})
		return
	}

	maxResults := 0
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}
	q, err := query.New(req.Query, req.CollectionName, maxResults, req.SimilarityThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, invalidQueryMessage(err))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.queries.Handle(ctx, &q)
	setEmbeddingHeaders(w, usage)
	if res.Failed() {
		log.Warn("query failed",
			zap.String("query_id", res.ID()),
			zap.String("kind", string(res.Kind())),
			zap.Error(res.Err()),
		)
		w.Header().Set(ErrorHeader, string(res.Kind()))
	}
	writeJSON(w, http.StatusOK, s.answerResponse(res))
}

// Collections handles GET /api/v1/collections.
func (s *Server) Collections(w http.ResponseWriter, r *http.Request) {
	listing, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{
		Collections:       listing.Collections,
		DefaultCollection: listing.Default,
	})
}

// Health handles GET /api/v1/health. It never touches dependencies.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

// HealthDeep handles GET /api/v1/health-deep.
func (s *Server) HealthDeep(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != health.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthDeepResponse{
		Status:  string(report.Status),
		Service: ServiceName,
		Version: version.Version,
		Checks:  checks,
		Warmup:  warmupResponse(report.Warmup, nil),
	})
}

// Ready handles GET /api/v1/ready.
func (s *Server) Ready(w http.ResponseWriter, _ *http.Request) {
	rd := s.health.Readiness()

	status, httpStatus := "starting", http.StatusServiceUnavailable
	switch rd.State {
	case domwarmup.Ready:
		status, httpStatus = "ready", http.StatusOK
	case domwarmup.Degraded:
		// serving, but the first generation may still hit a cold model
		status, httpStatus = "degraded", http.StatusOK
	}

	writeJSON(w, httpStatus, ReadyResponse{
		Status:         status,
		WarmupState:    rd.State.String(),
		WarmupRequired: rd.Required,
	})
}

// Warmup handles POST /api/v1/warmup. A degraded machine is re-armed and the
// sequence restarted in the background.
func (s *Server) Warmup(w http.ResponseWriter, r *http.Request) {
	if s.warmer == nil {
		writeJSON(w, http.StatusOK, warmupResponse(s.health.Readiness(), nil))
		return
	}

	rearmed := s.warmer.Rearm()
	rd := s.warmer.Readiness()
	if rearmed || rd.State == domwarmup.Cold {
		log := logpkg.FromContextOr(r.Context(), s.logger)
		log.Info("warm-up requested", zap.Bool("rearmed", rearmed))
		go s.warmer.Start(context.WithoutCancel(r.Context()))
	}

	writeJSON(w, http.StatusAccepted, warmupResponse(rd, &rearmed))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) answerResponse(res answer.Result) QueryResponse {
	docs := res.Sources().Documents()
	sources := make([]SourceResponse, 0, len(docs))
	for i, d := range docs {
		sources = append(sources, s.sourceResponse(d, i+1))
	}

	resp := QueryResponse{
		ID:                res.ID(),
		Answer:            res.Text(),
		Sources:           sources,
		Confidence:        round(res.Confidence(), 3),
		Query:             res.Query(),
		TotalSourcesFound: res.Sources().Found(),
		ProcessingTimeMS:  round(res.ProcessingTimeMS(), 2),
		Timestamp:         res.Timestamp().UTC(),
	}
	if res.Failed() {
		resp.Error = string(res.Kind())
	}
	return resp
}

func (s *Server) sourceResponse(d retrieval.Document, number int) SourceResponse {
	md := d.Metadata()
	if md == nil {
		md = map[string]any{}
	}
	src := SourceResponse{
		Content:         preview(d.Content(), s.previewChars),
		Metadata:        md,
		SimilarityScore: round(d.Similarity(), 3),
		Rank:            d.Rank(),
		SourceNumber:    number,
		Source:          d.Source(),
	}
	if page, ok := d.Page(); ok {
		src.Page = &page
	}
	return src
}

func warmupResponse(rd domwarmup.Readiness, rearmed *bool) WarmupResponse {
	return WarmupResponse{
		State:     rd.State.String(),
		Required:  rd.Required,
		Attempts:  rd.Attempts,
		LastError: rd.LastError,
		UpdatedAt: rd.UpdatedAt.UTC(),
		Rearmed:   rearmed,
	}
}

// preview cuts content to limit runes, marking the cut with "...".
func preview(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// invalidQueryMessage strips the sentinel prefix from a query validation error.
func invalidQueryMessage(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrInvalidQuery.Error()+": ")
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Embedded() {
		w.Header().Set(EmbeddingTokensHeader, strconv.Itoa(usage.Tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrCollectionNotFound,
		domain.ErrDependencyUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
