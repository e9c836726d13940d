package ledger

import (
	"time"

	"sealtrail/internal/domain"
	"sealtrail/internal/infra/idgen"
)

// Finalizer turns an open ledger into its proof object.
type Finalizer struct {
	NewReportID idgen.Generator
	Clock       func() time.Time
}

// Finalize freezes l and returns its proof object. A ledger with no
// snapshots is rejected with ErrEmptyLedger and stays open. A second call
// returns ErrAlreadyFinalized together with the proof from the first call.
// A zero issuedAt is replaced with the finalizer's clock.
func (f Finalizer) Finalize(l *Ledger, applicant string, issuedAt time.Time) (domain.ProofObject, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized.Load() {
		return l.proof.Clone(), domain.ErrAlreadyFinalized
	}
	if len(l.snapshots) == 0 {
		return domain.ProofObject{}, domain.ErrEmptyLedger
	}

	reportID := f.reportID()
	snapshots := domain.CloneSnapshots(l.snapshots)
	hash, err := FinalEventHash(reportID, l.traceToken, snapshots)
	if err != nil {
		return domain.ProofObject{}, err
	}
	if issuedAt.IsZero() {
		issuedAt = f.now()
	}

	l.proof = domain.ProofObject{
		ReportID:       reportID,
		TraceToken:     l.traceToken,
		Applicant:      applicant,
		IssuedAt:       stamp(issuedAt),
		Snapshots:      snapshots,
		FinalEventHash: hash,
	}
	l.finalized.Store(true)
	return l.proof.Clone(), nil
}

// Finalize uses a Finalizer with the default report id generator and clock.
func Finalize(l *Ledger, applicant string, issuedAt time.Time) (domain.ProofObject, error) {
	return Finalizer{}.Finalize(l, applicant, issuedAt)
}

func (f Finalizer) reportID() string {
	if f.NewReportID != nil {
		return f.NewReportID()
	}
	return idgen.ReportID()
}

func (f Finalizer) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now()
}
