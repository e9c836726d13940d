// Package logmem is the in-process proof store and audit log used when no
// database is configured.
package logmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"
	"sealtrail/internal/infra/idgen"
)

type Log struct {
	mu     sync.RWMutex
	clock  func() time.Time
	proofs map[string]domain.StoredProof
	byHash map[string]string
	audit  map[string][]domain.AuditEvent
	newID  idgen.Generator
}

func New() *Log {
	return NewWithClock(time.Now)
}

func NewWithClock(clock func() time.Time) *Log {
	if clock == nil {
		clock = time.Now
	}
	return &Log{
		clock:  clock,
		proofs: make(map[string]domain.StoredProof),
		byHash: make(map[string]string),
		audit:  make(map[string][]domain.AuditEvent),
		newID:  idgen.UUIDv7(),
	}
}

func (l *Log) Save(_ context.Context, proof domain.StoredProof) error {
	if proof.Proof.ReportID == "" || proof.Proof.FinalEventHash == "" {
		return errors.New("report_id and final_event_hash are required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.proofs[proof.Proof.ReportID]; ok {
		return errors.New("proof already stored")
	}
	if proof.CreatedAt.IsZero() {
		proof.CreatedAt = l.clock().UTC()
	}
	l.proofs[proof.Proof.ReportID] = cloneStored(proof)
	l.byHash[proof.Proof.FinalEventHash] = proof.Proof.ReportID
	return nil
}

func (l *Log) GetByReportID(_ context.Context, reportID string) (domain.StoredProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stored, ok := l.proofs[reportID]
	if !ok {
		return domain.StoredProof{}, domain.ErrNotFound
	}
	return cloneStored(stored), nil
}

func (l *Log) GetByHash(ctx context.Context, finalEventHash string) (domain.StoredProof, error) {
	l.mu.RLock()
	reportID, ok := l.byHash[finalEventHash]
	l.mu.RUnlock()
	if !ok {
		return domain.StoredProof{}, domain.ErrNotFound
	}
	return l.GetByReportID(ctx, reportID)
}

// Append links event to the end of its scope's audit chain.
func (l *Log) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if err := cryptoinfra.PrepareAuditEvent(&event, l.clock()); err != nil {
		return domain.AuditEvent{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	chain := l.audit[event.Scope]
	prev := cryptoinfra.ZeroHash
	if n := len(chain); n > 0 {
		prev = chain[n-1].EventHash
	}
	if event.ID == "" {
		event.ID = l.newID()
	}
	if err := cryptoinfra.LinkAuditEvent(&event, int64(len(chain))+1, prev); err != nil {
		return domain.AuditEvent{}, err
	}
	l.audit[event.Scope] = append(chain, event)
	return event, nil
}

func (l *Log) ListByScope(_ context.Context, scope string) ([]domain.AuditEvent, error) {
	if scope == "" {
		scope = domain.AuditSystemScope
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	chain := l.audit[scope]
	out := make([]domain.AuditEvent, len(chain))
	copy(out, chain)
	return out, nil
}

func cloneStored(in domain.StoredProof) domain.StoredProof {
	out := in
	out.Proof = in.Proof.Clone()
	out.Document = append([]byte(nil), in.Document...)
	return out
}
