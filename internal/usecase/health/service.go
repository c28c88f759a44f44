package health

import (
	"context"

	domwarmup "github.com/kailas-cloud/ragd/internal/domain/warmup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Unhealthy indicates at least one failing component.
	Unhealthy Status = "unhealthy"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "healthy"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "unhealthy"
)

// Component names used as Report.Checks keys.
const (
	ComponentDatabase   = "database"
	ComponentEmbedding  = "embeddings"
	ComponentGeneration = "generation"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Warmup domwarmup.Readiness
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	embedding  Checker
	generation Checker
	warmup     ReadinessReader
}

// New creates a Service. embedding, generation and warmup can be nil.
// A nil generation checker is reported healthy: the client was constructed.
func New(db DBPinger, embedding, generation Checker, warmup ReadinessReader) *Service {
	return &Service{db: db, embedding: embedding, generation: generation, warmup: warmup}
}

// Check runs health checks against all components.
// Warm-up state is reported but never fails the check.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentDatabase] = result(s.db.Ping(ctx))

	if s.embedding != nil {
		checks[ComponentEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	if s.generation != nil {
		checks[ComponentGeneration] = result(s.generation.HealthCheck(ctx))
	} else {
		checks[ComponentGeneration] = CheckOK
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Unhealthy
			break
		}
	}

	r := Report{Status: status, Checks: checks}
	if s.warmup != nil {
		r.Warmup = s.warmup.Readiness()
	}
	return r
}

// Readiness returns the warm-up snapshot; without a machine the service is considered ready.
func (s *Service) Readiness() domwarmup.Readiness {
	if s.warmup == nil {
		return domwarmup.Readiness{State: domwarmup.Ready}
	}
	return s.warmup.Readiness()
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
