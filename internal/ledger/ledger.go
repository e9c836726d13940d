// Package ledger accumulates sealed snapshots for one session and reduces
// them to a proof object.
//
// A Ledger is Open until Finalize succeeds and Finalized afterwards. Seal
// and Finalize share one mutex, so version indices are assigned and
// appended in a single step and finalization never interleaves with a
// seal. Once finalized the snapshot slice is never written again and is
// read without the lock.
package ledger

import (
	"sync"
	"sync/atomic"
	"time"

	"sealtrail/internal/domain"
	"sealtrail/internal/infra/crypto"
	"sealtrail/internal/infra/idgen"
)

type Ledger struct {
	mu         sync.Mutex
	traceToken string
	startedAt  time.Time
	now        func() time.Time
	snapshots  []domain.Snapshot
	finalized  atomic.Bool
	proof      domain.ProofObject
}

type Option func(*Ledger)

// WithClock overrides the source of sealed_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTraceToken overrides the generated trace token.
func WithTraceToken(token string) Option {
	return func(l *Ledger) {
		if token != "" {
			l.traceToken = token
		}
	}
}

// Start returns a new, empty, open ledger. The next seal receives
// version_index 1.
func Start(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.traceToken == "" {
		l.traceToken = idgen.TraceToken()
	}
	l.startedAt = stamp(l.now())
	return l
}

func (l *Ledger) TraceToken() string {
	return l.traceToken
}

func (l *Ledger) StartedAt() time.Time {
	return l.startedAt
}

// Seal fingerprints artifact, assigns the next version index and appends
// the resulting snapshot. Either the snapshot is fully appended or the
// ledger is unchanged.
func (l *Ledger) Seal(artifact []byte, params domain.Parameters) (domain.Snapshot, error) {
	if l.finalized.Load() {
		return domain.Snapshot{}, domain.ErrLedgerFinalized
	}
	fp, err := crypto.Fingerprint(artifact)
	if err != nil {
		return domain.Snapshot{}, err
	}
	normalized, err := domain.NormalizeParameters(params)
	if err != nil {
		return domain.Snapshot{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalized.Load() {
		return domain.Snapshot{}, domain.ErrLedgerFinalized
	}
	snap := domain.Snapshot{
		VersionIndex:       int64(len(l.snapshots)) + 1,
		InputParameters:    normalized,
		ContentFingerprint: fp.Digest,
		SealedAt:           stamp(l.now()),
		CanonicalPayload:   fp.CanonicalPayload,
	}
	l.snapshots = append(l.snapshots, snap)
	return snap.Clone(), nil
}

// Snapshots returns a copy of the sealed snapshots in seal order.
func (l *Ledger) Snapshots() []domain.Snapshot {
	if l.finalized.Load() {
		return domain.CloneSnapshots(l.snapshots)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.CloneSnapshots(l.snapshots)
}

func (l *Ledger) Len() int {
	if l.finalized.Load() {
		return len(l.snapshots)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.snapshots)
}

func (l *Ledger) Finalized() bool {
	return l.finalized.Load()
}

// Proof returns the proof object produced by Finalize, if any.
func (l *Ledger) Proof() (domain.ProofObject, bool) {
	if !l.finalized.Load() {
		return domain.ProofObject{}, false
	}
	return l.proof.Clone(), true
}

// stamp normalizes a timestamp to UTC at microsecond precision, the
// resolution postgres keeps.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
