package chi

import (
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
	"github.com/kailas-cloud/bookrec/internal/domain/ranking"
)

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeRequestRequired  ErrorCode = "request_required"
	ErrorCodeInvalidUserID    ErrorCode = "invalid_user_id"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeLLMUnavailable   ErrorCode = "llm_unavailable"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsersResponse is the body of GET /users.
type UsersResponse struct {
	Users []int `json:"users"`
}

// RecommendationsResponse is the body of GET /users/{userID}/recommendations.
type RecommendationsResponse struct {
	UserID int                   `json:"user_id"`
	Items  []candidate.Candidate `json:"items"`
}

// RefineRequest is the body of POST /users/{userID}/recommendations/refine.
// Blank requests pass validation and are rejected by the service as request_required.
type RefineRequest struct {
	Request string `json:"request" validate:"max=2000"`
}

// RefineResponse is the body of a successful refinement.
type RefineResponse struct {
	UserID      int                   `json:"user_id"`
	Status      string                `json:"status"`
	Attributes  []string              `json:"attributes"`
	Candidates  []candidate.Candidate `json:"candidates"`
	Ranking     *ranking.Ranking      `json:"ranking,omitempty"`
	RerankError string                `json:"rerank_error,omitempty"`
}

// topNQuery holds GET /users/{userID}/recommendations query parameters.
type topNQuery struct {
	Limit int `json:"limit" validate:"gte=0,lte=1000"`
}
