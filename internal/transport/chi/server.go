package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
	"github.com/kailas-cloud/bookrec/internal/logger"
	healthuc "github.com/kailas-cloud/bookrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/bookrec/internal/usecase/recommend"
)

const (
	maxBodyBytes      = 64 << 10
	llmRetryAfterSecs = "5"
)

// Recommender is the use case surface the API exposes.
type Recommender interface {
	Refine(ctx context.Context, userID int, request string) (recommenduc.Result, error)
	TopN(ctx context.Context, userID, limit int) (candidate.List, error)
	Users() []int
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	recommender   Recommender
	health        HealthChecker
	validator     *requestValidator
	logger        *zap.Logger
	errorHandlers []errorHandler
	refineTimeout time.Duration
}

// NewServer creates an HTTP API server.
func NewServer(recommender Recommender, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		recommender: recommender,
		health:      health,
		validator:   newRequestValidator(),
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeRequestRequired, "no request entered"),
		sentinelHandler(domain.ErrInvalidUserID, http.StatusBadRequest, ErrorCodeInvalidUserID, "invalid user id"),
		llmUnavailableHandler,
	}
	return s
}

// WithRefineTimeout bounds each refine request. It must end before the
// server's write timeout so the fallback response can still be written.
func (s *Server) WithRefineTimeout(d time.Duration) *Server {
	s.refineTimeout = max(d, 0)
	return s
}

// Routes mounts all API routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/users", s.ListUsers)
	r.Get("/users/{userID}/recommendations", s.GetRecommendations)
	r.Post("/users/{userID}/recommendations/refine", s.RefineRecommendations)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ListUsers handles GET /users.
func (s *Server) ListUsers(w http.ResponseWriter, _ *http.Request) {
	users := s.recommender.Users()
	if users == nil {
		users = []int{}
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: users})
}

// GetRecommendations handles GET /users/{userID}/recommendations.
func (s *Server) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var q topNQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "limit must be an integer")
			return
		}
		q.Limit = limit
	}
	if err := s.validator.Validate(q); err != nil {
		s.writeValidationError(w, err)
		return
	}

	items, err := s.recommender.TopN(r.Context(), userID, q.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RecommendationsResponse{UserID: userID, Items: nonNil(items)})
}

// RefineRecommendations handles POST /users/{userID}/recommendations/refine.
func (s *Server) RefineRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req RefineRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.writeValidationError(w, err)
		return
	}

	ctx := logger.WithFields(r.Context(), zap.Int("user_id", userID))
	if s.refineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.refineTimeout)
		defer cancel()
	}
	ctx, usage := domain.NewContextWithLLMUsage(ctx)
	res, err := s.recommender.Refine(ctx, userID, req.Request)
	setLLMHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := RefineResponse{
		UserID:     userID,
		Status:     string(res.Status),
		Attributes: nonNil(res.Attributes),
		Candidates: nonNil(res.Candidates),
		Ranking:    res.Ranking,
	}
	if res.RerankErr != nil {
		resp.RerankError = safeDomainMessage(res.RerankErr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidUserID, "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    ErrorCodeValidationFailed,
			Message: "validation failed",
			Fields:  ve.fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request")
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

// requestLogger prefers the per-request logger set by WideEventMiddleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if _, ok := r.Context().Value(chiMiddleware.RequestIDKey).(string); ok {
		return logger.FromContext(r.Context())
	}
	return s.logger
}

func setLLMHeaders(w http.ResponseWriter, usage *domain.LLMUsage) {
	if usage != nil && usage.Calls() > 0 {
		w.Header().Set("X-LLM-Tokens", strconv.Itoa(usage.TotalTokens()))
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
		domain.ErrCircuitOpen,
		domain.ErrLLMProviderError,
		domain.ErrInvalidRequest,
		domain.ErrInvalidUserID,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// llmUnavailableHandler maps provider failures to a retryable 503.
func llmUnavailableHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrLLMProviderError) {
		return false
	}
	w.Header().Set("Retry-After", llmRetryAfterSecs)
	writeError(w, http.StatusServiceUnavailable, ErrorCodeLLMUnavailable, safeDomainMessage(err))
	return true
}

func nonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}
