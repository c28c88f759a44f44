package health

import (
	"context"

	domwarmup "github.com/kailas-cloud/ragd/internal/domain/warmup"
)

// DBPinger checks vector store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an external provider (embedding or language model).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessReader exposes the warm-up state.
type ReadinessReader interface {
	Readiness() domwarmup.Readiness
}
