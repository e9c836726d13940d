package ledger

import (
	"errors"
	"testing"
	"time"

	"sealtrail/internal/domain"
)

func sealTwo(t *testing.T, l *Ledger) {
	t.Helper()
	if _, err := l.Seal([]byte("cat-image-bytes"), domain.Parameters{"prompt": "a cat", "seed": 42}); err != nil {
		t.Fatalf("seal cat: %v", err)
	}
	if _, err := l.Seal([]byte("dog-image-bytes"), domain.Parameters{"prompt": "a dog", "seed": 7}); err != nil {
		t.Fatalf("seal dog: %v", err)
	}
}

func testFinalizer() Finalizer {
	return Finalizer{
		NewReportID: func() string { return "report-1" },
		Clock: func() time.Time {
			return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestFinalize_EndToEnd(t *testing.T) {
	l := Start(WithClock(fixedClock()))
	sealTwo(t, l)

	proof, err := testFinalizer().Finalize(l, "Alice", time.Time{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(proof.Snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(proof.Snapshots))
	}
	if proof.Snapshots[0].VersionIndex != 1 || proof.Snapshots[1].VersionIndex != 2 {
		t.Fatalf("unexpected indices %d, %d", proof.Snapshots[0].VersionIndex, proof.Snapshots[1].VersionIndex)
	}
	if proof.FinalEventHash == "" || len(proof.FinalEventHash) != 64 {
		t.Fatalf("expected sha256 hex final_event_hash, got %q", proof.FinalEventHash)
	}
	if proof.Snapshots[0].ContentFingerprint == proof.Snapshots[1].ContentFingerprint {
		t.Fatal("distinct artifacts must have distinct fingerprints")
	}
	if proof.Applicant != "Alice" || proof.ReportID != "report-1" || proof.TraceToken != l.TraceToken() {
		t.Fatalf("unexpected proof metadata: %+v", proof)
	}
	if !proof.IssuedAt.Equal(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("zero issued_at should fall back to the clock, got %s", proof.IssuedAt)
	}

	recomputed, err := FinalEventHash(proof.ReportID, proof.TraceToken, proof.Snapshots)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if recomputed != proof.FinalEventHash {
		t.Fatal("final_event_hash must be reproducible")
	}
}

func TestFinalize_EmptyLedger(t *testing.T) {
	l := Start()
	if _, err := Finalize(l, "Alice", time.Now()); !errors.Is(err, domain.ErrEmptyLedger) {
		t.Fatalf("expected ErrEmptyLedger, got %v", err)
	}
	if l.Finalized() {
		t.Fatal("rejected finalize must leave the ledger open")
	}
	if _, err := l.Seal([]byte("late"), nil); err != nil {
		t.Fatalf("ledger should still accept seals: %v", err)
	}
}

func TestFinalize_Twice(t *testing.T) {
	l := Start()
	sealTwo(t, l)

	ids := []string{"report-1", "report-2"}
	f := Finalizer{NewReportID: func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}}
	first, err := f.Finalize(l, "Alice", time.Now())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	second, err := f.Finalize(l, "Mallory", time.Now())
	if !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if second.ReportID != first.ReportID || second.FinalEventHash != first.FinalEventHash || second.Applicant != "Alice" {
		t.Fatal("second finalize must return the original proof unchanged")
	}
	stored, ok := l.Proof()
	if !ok || stored.FinalEventHash != first.FinalEventHash {
		t.Fatal("ledger must keep the first proof")
	}
}

func TestSeal_AfterFinalize(t *testing.T) {
	l := Start()
	sealTwo(t, l)
	if _, err := Finalize(l, "Alice", time.Now()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	before := l.Snapshots()

	if _, err := l.Seal([]byte("too late"), nil); !errors.Is(err, domain.ErrLedgerFinalized) {
		t.Fatalf("expected ErrLedgerFinalized, got %v", err)
	}
	if _, err := l.Seal(nil, nil); !errors.Is(err, domain.ErrLedgerFinalized) {
		t.Fatalf("finalized check must come first, got %v", err)
	}
	after := l.Snapshots()
	if len(after) != len(before) {
		t.Fatalf("snapshot count changed from %d to %d", len(before), len(after))
	}
}

func TestFinalize_ProofIsDetachedFromLedger(t *testing.T) {
	l := Start()
	sealTwo(t, l)
	proof, err := Finalize(l, "Alice", time.Now())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	proof.Snapshots[0].InputParameters["prompt"] = "edited"
	proof.Snapshots[1].ContentFingerprint = "edited"

	again, _ := l.Proof()
	if again.Snapshots[0].InputParameters["prompt"] != "a cat" || again.Snapshots[1].ContentFingerprint == "edited" {
		t.Fatal("caller edits must not reach the ledger's proof")
	}
	if got := l.Snapshots(); got[0].InputParameters["prompt"] != "a cat" {
		t.Fatal("finalized ledger must stay readable and unchanged")
	}
}

func TestFinalEventHash_DetectsTampering(t *testing.T) {
	l := Start(WithClock(fixedClock()))
	sealTwo(t, l)
	proof, err := testFinalizer().Finalize(l, "Alice", time.Time{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *domain.ProofObject)
	}{
		{name: "fingerprint character", mutate: func(p *domain.ProofObject) {
			b := []byte(p.Snapshots[0].ContentFingerprint)
			if b[0] == 'a' {
				b[0] = 'b'
			} else {
				b[0] = 'a'
			}
			p.Snapshots[0].ContentFingerprint = string(b)
		}},
		{name: "prompt", mutate: func(p *domain.ProofObject) {
			p.Snapshots[1].InputParameters["prompt"] = "a dog!"
		}},
		{name: "seed", mutate: func(p *domain.ProofObject) {
			p.Snapshots[0].InputParameters["seed"] = int64(43)
		}},
		{name: "sealed_at", mutate: func(p *domain.ProofObject) {
			p.Snapshots[0].SealedAt = p.Snapshots[0].SealedAt.Add(time.Microsecond)
		}},
		{name: "order", mutate: func(p *domain.ProofObject) {
			p.Snapshots[0], p.Snapshots[1] = p.Snapshots[1], p.Snapshots[0]
		}},
		{name: "report id", mutate: func(p *domain.ProofObject) {
			p.ReportID = "report-2"
		}},
		{name: "trace token", mutate: func(p *domain.ProofObject) {
			p.TraceToken = "other"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := proof.Clone()
			tt.mutate(&tampered)
			hash, err := FinalEventHash(tampered.ReportID, tampered.TraceToken, tampered.Snapshots)
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if hash == proof.FinalEventHash {
				t.Fatal("tampering must change the hash")
			}
		})
	}

	applicantOnly := proof.Clone()
	applicantOnly.Applicant = "Bob"
	hash, err := FinalEventHash(applicantOnly.ReportID, applicantOnly.TraceToken, applicantOnly.Snapshots)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash != proof.FinalEventHash {
		t.Fatal("applicant is not part of the hashed triple")
	}
}

func TestFinalEventHash_KeyOrderIndependent(t *testing.T) {
	sealedAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := []domain.Snapshot{{
		VersionIndex:       1,
		InputParameters:    domain.Parameters{"prompt": "a cat", "seed": int64(42)},
		ContentFingerprint: "abc",
		SealedAt:           sealedAt,
		CanonicalPayload:   "eA==",
	}}
	b := []domain.Snapshot{{
		VersionIndex:       1,
		InputParameters:    domain.Parameters{"seed": int64(42), "prompt": "a cat"},
		ContentFingerprint: "abc",
		SealedAt:           sealedAt,
		CanonicalPayload:   "eA==",
	}}
	ha, err := FinalEventHash("r", "t", a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := FinalEventHash("r", "t", b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Fatal("map insertion order must not affect the hash")
	}
}

func TestFinalEventHash_GoldenVector(t *testing.T) {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(time.Microsecond), base.Add(500 * time.Millisecond)}
	l := Start(WithTraceToken("trace-1"), WithClock(func() time.Time {
		now := clock[0]
		clock = clock[1:]
		return now
	}))
	sealTwo(t, l)

	proof, err := testFinalizer().Finalize(l, "Alice", time.Time{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	const expected = "916c4b6a60e2b73bdd37858ecb9e2ea744572c86bb5862e868c2462ab2b5dbae"
	if proof.FinalEventHash != expected {
		t.Fatalf("unexpected final_event_hash %s", proof.FinalEventHash)
	}
	if proof.Snapshots[0].ContentFingerprint != "fbfed7b45900c58a1a0d9cb5e2ea91b470e9d5a37dd6ef313425cdc6e815ccef" {
		t.Fatalf("unexpected fingerprint %s", proof.Snapshots[0].ContentFingerprint)
	}
}
