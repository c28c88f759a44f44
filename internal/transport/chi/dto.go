package chi

import "time"

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes returned in ErrorResponse and the X-Ragd-Error header.
const (
	ErrorCodeBadRequest            ErrorCode = "bad_request"
	ErrorCodeValidationFailed      ErrorCode = "validation_failed"
	ErrorCodeUnauthorized          ErrorCode = "unauthorized"
	ErrorCodeNotFound              ErrorCode = "not_found"
	ErrorCodeCollectionNotFound    ErrorCode = "collection_not_found"
	ErrorCodeDependencyUnavailable ErrorCode = "dependency_unavailable"
	ErrorCodeInternalError         ErrorCode = "internal_error"
)

// Response headers.
const (
	// ErrorHeader carries the failure kind of a 200-shaped failed answer.
	ErrorHeader = "X-Ragd-Error"
	// EmbeddingTokensHeader reports tokens spent embedding the question (0 on a cache hit).
	EmbeddingTokensHeader = "X-Embedding-Tokens"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query               string   `json:"query" validate:"required"`
	CollectionName      string   `json:"collection_name,omitempty" validate:"omitempty,max=128,excludesall=*?[]{}"`
	MaxResults          *int     `json:"max_results,omitempty" validate:"omitempty,gte=0"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// SourceResponse is one passage the answer was grounded on.
type SourceResponse struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
	Rank            int            `json:"rank"`
	SourceNumber    int            `json:"source_number"`
	Page            *int           `json:"page,omitempty"`
	Source          string         `json:"source,omitempty"`
}

// QueryResponse is the body of POST /api/v1/query.
type QueryResponse struct {
	ID                string           `json:"id"`
	Answer            string           `json:"answer"`
	Sources           []SourceResponse `json:"sources"`
	Confidence        float64          `json:"confidence"`
	Query             string           `json:"query"`
	TotalSourcesFound int              `json:"total_sources_found"`
	ProcessingTimeMS  float64          `json:"processing_time_ms"`
	Timestamp         time.Time        `json:"timestamp"`
	Error             string           `json:"error,omitempty"`
}

// CollectionsResponse is the body of GET /api/v1/collections.
type CollectionsResponse struct {
	Collections       []string `json:"collections"`
	DefaultCollection string   `json:"default_collection"`
}

// WarmupResponse describes the readiness state machine.
type WarmupResponse struct {
	State     string    `json:"state"`
	Required  bool      `json:"required"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Rearmed   *bool     `json:"rearmed,omitempty"`
}

// HealthDeepResponse is the body of GET /api/v1/health-deep.
type HealthDeepResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Warmup  WarmupResponse    `json:"warmup"`
}

// ReadyResponse is the body of GET /api/v1/ready.
type ReadyResponse struct {
	Status         string `json:"status"`
	WarmupState    string `json:"warmup_state"`
	WarmupRequired bool   `json:"warmup_required"`
}
