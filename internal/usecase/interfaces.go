package usecase

import (
	"context"
	"time"

	"sealtrail/internal/domain"
	"sealtrail/internal/ledger"
)

type Clock func() time.Time

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByScope(ctx context.Context, scope string) ([]domain.AuditEvent, error)
}

type SessionRegistry interface {
	Start(contextID string) *ledger.Ledger
	Get(traceToken string) (*ledger.Ledger, error)
}

// Metrics receives sealing events. A nil Metrics is allowed everywhere.
type Metrics interface {
	SessionStarted()
	SnapshotSealed(source string)
	SealFailed(reason string)
	ProofFinalized(snapshots int)
	GenerationCompleted(outcome string, elapsed time.Duration)
	ProofVerified(passed bool)
}
