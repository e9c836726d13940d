package domain

import (
	"context"
	"time"
)

// ArtifactStore holds raw artifact bytes addressed by an opaque handle.
type ArtifactStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, handle string) ([]byte, error)
}

type ProofRepository interface {
	Save(ctx context.Context, proof StoredProof) error
	GetByReportID(ctx context.Context, reportID string) (StoredProof, error)
	GetByHash(ctx context.Context, finalEventHash string) (StoredProof, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (GeneratedArtifact, error)
}

type GenerationPolicy interface {
	Evaluate(ctx context.Context, input PolicyInput) (PolicyEvaluation, error)
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
